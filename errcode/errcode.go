package errcode

// Code is a stable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Token and bundle ownership.
	TokenMoved   Code = "token_moved"
	TokenClaimed Code = "token_claimed"
	UnknownToken Code = "unknown_token"
	BundleMoved  Code = "bundle_moved"

	// Definition-time composition conflicts.
	AliasedToken   Code = "aliased_token"
	DuplicateField Code = "duplicate_field"
	DuplicateEntry Code = "duplicate_entry"
	InvalidField   Code = "invalid_field"
	UnknownField   Code = "unknown_field"

	// Hooks.
	MissingHook      Code = "missing_hook"
	HookTypeMismatch Code = "hook_type_mismatch"
	DuplicateHook    Code = "duplicate_hook"

	// Platform / executor.
	PlatformReinit Code = "platform_reinit"
	ExecutorFull   Code = "executor_full"
	Unsupported    Code = "unsupported"
	InvalidPlan    Code = "invalid_plan"
	Timeout        Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
