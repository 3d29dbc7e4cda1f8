// hook/config.go
package hook

import (
	"strings"
	"time"

	"firmboot-go/errcode"

	"github.com/andreyvit/tinyjson"
)

// LoadJSON installs fixed-value providers from an embedded JSON object of
// the form {"name": value, ...}. Value types map directly to hook types;
// integer keys with an "_ms" suffix register as durations under the key
// with the suffix stripped ("blink_interval_ms": 500 provides a 500ms
// duration hook named "blink_interval").
func LoadJSON(r *Registry, raw []byte) error {
	if len(raw) == 0 {
		return &errcode.E{C: errcode.InvalidField, Op: "load_json", Msg: "empty config"}
	}

	j := tinyjson.Raw(raw)
	val := j.Value()
	j.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return &errcode.E{C: errcode.InvalidField, Op: "load_json", Msg: "config is not a JSON object"}
	}

	for k, v := range m {
		name, typ, hv, err := coerce(k, v)
		if err != nil {
			return err
		}
		r.ProvideValue(name, typ, hv)
	}
	return nil
}

// ProvideAuto installs a fixed-value provider for one key, inferring the
// hook type from the dynamic value the way LoadJSON does. Tooling that
// sources hook values from other config formats uses this.
func ProvideAuto(r *Registry, key string, v any) error {
	name, typ, hv, err := coerce(key, v)
	if err != nil {
		return err
	}
	r.ProvideValue(name, typ, hv)
	return nil
}

func coerce(key string, v any) (name string, typ Type, out any, err error) {
	name = key
	ms, isMS := strings.CutSuffix(key, "_ms")

	switch x := v.(type) {
	case bool:
		return name, TypeBool, x, nil
	case string:
		return name, TypeString, x, nil
	case int64:
		if isMS {
			return ms, TypeDuration, time.Duration(x) * time.Millisecond, nil
		}
		return name, TypeInt, x, nil
	case int:
		if isMS {
			return ms, TypeDuration, time.Duration(x) * time.Millisecond, nil
		}
		return name, TypeInt, int64(x), nil
	case float64:
		// JSON has one number type; integral values with an _ms suffix are
		// still durations, everything else with a fraction is a float.
		if isMS && x == float64(int64(x)) {
			return ms, TypeDuration, time.Duration(int64(x)) * time.Millisecond, nil
		}
		if x == float64(int64(x)) {
			return name, TypeInt, int64(x), nil
		}
		return name, TypeFloat, x, nil
	default:
		return "", "", nil, &errcode.E{C: errcode.InvalidField, Op: "load_json", Msg: key}
	}
}
