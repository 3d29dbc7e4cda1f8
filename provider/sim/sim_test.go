// provider/sim/sim_test.go
package sim

import (
	"context"
	"testing"
	"time"

	"firmboot-go/errcode"
	"firmboot-go/periph"
	"firmboot-go/types"
)

func testPlan() types.Plan {
	return types.Plan{
		GPIO: []types.GPIOPlan{{Pin: 2}, {Pin: 3}},
		I2C:  []types.I2CPlan{{ID: "i2c0", SDA: 4, SCL: 5, Hz: 400_000}},
		UART: []types.UARTPlan{{ID: "uart0", TX: 0, RX: 1, Baud: 115_200}},
	}
}

func TestInitOnce(t *testing.T) {
	p := New()
	set, _, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	want := []periph.ID{"gpio2", "gpio3", "i2c0", "uart0"}
	for _, id := range want {
		if !set.Has(id) {
			t.Errorf("set missing %s", id)
		}
	}

	if _, _, err := p.Init(testPlan()); errcode.Of(err) != errcode.PlatformReinit {
		t.Errorf("second init err = %v, want platform_reinit", err)
	}
}

func TestInitRejectsDuplicateIDs(t *testing.T) {
	p := New()
	plan := types.Plan{GPIO: []types.GPIOPlan{{Pin: 2}, {Pin: 2}}}
	if _, _, err := p.Init(plan); errcode.Of(err) != errcode.InvalidPlan {
		t.Errorf("err = %v, want invalid_plan", err)
	}
}

func TestTokenForHandleExchange(t *testing.T) {
	p := New()
	set, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	tok := set.MustClaim("app", "gpio2")
	pin, err := claims.GPIO(tok)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if pin.Number() != 2 {
		t.Errorf("pin = %d", pin.Number())
	}

	// the exchange consumed the token
	if tok.Valid() {
		t.Error("token should be spent after exchange")
	}
}

func TestExchangeClassMismatch(t *testing.T) {
	p := New()
	set, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	bus := set.MustClaim("app", "i2c0")
	if _, err := claims.GPIO(bus); errcode.Of(err) != errcode.Unsupported {
		t.Errorf("err = %v, want unsupported", err)
	}
	// a failed exchange does not consume the token
	if !bus.Valid() {
		t.Error("token must survive a failed exchange")
	}
	if _, err := claims.I2C(bus); err != nil {
		t.Errorf("correct exchange failed: %v", err)
	}
}

func TestSimPinRecordsActivity(t *testing.T) {
	p := New()
	set, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	pin, err := claims.GPIO(set.MustClaim("app", "gpio3"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if err := pin.ConfigureOutput(true); err != nil {
		t.Fatalf("configure: %v", err)
	}
	pin.Toggle()
	pin.Toggle()

	raw, _ := p.Pin(3)
	if raw.Toggles() != 2 || !raw.Get() {
		t.Errorf("toggles=%d level=%v", raw.Toggles(), raw.Get())
	}
}

func TestSimI2CHandler(t *testing.T) {
	p := New()
	set, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	bus, err := claims.I2C(set.MustClaim("app", "i2c0"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	raw, _ := p.Bus("i2c0")
	raw.Handle(func(addr uint16, w, r []byte) error {
		for i := range r {
			r[i] = 0xA5
		}
		return nil
	})

	r := make([]byte, 2)
	if err := bus.Tx(0x38, []byte{0x01}, r); err != nil {
		t.Fatalf("tx: %v", err)
	}
	if r[0] != 0xA5 || r[1] != 0xA5 {
		t.Errorf("read = %v", r)
	}
	if txs := raw.Txs(); len(txs) != 1 || txs[0].Addr != 0x38 {
		t.Errorf("txs = %+v", txs)
	}
}

func TestSimSerialLoopback(t *testing.T) {
	p := New()
	set, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	port, err := claims.Serial(set.MustClaim("app", "uart0"))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	if _, err := port.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf := make([]byte, 8)
	n, err := port.RecvSomeContext(ctx, buf)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("read = %q", buf[:n])
	}
}

func TestUnknownTokenExchange(t *testing.T) {
	p := New()
	_, claims, err := p.Init(testPlan())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	other := periph.NewSet("spi0")
	tok := other.MustClaim("app", "spi0")
	if _, err := claims.GPIO(tok); errcode.Of(err) != errcode.UnknownToken {
		t.Errorf("err = %v, want unknown_token", err)
	}
}
