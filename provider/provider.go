// provider/provider.go
package provider

import (
	"context"
	"sync"

	"firmboot-go/errcode"
	"firmboot-go/periph"
	"firmboot-go/types"
	"firmboot-go/x/conv"

	"tinygo.org/x/drivers"
)

// -----------------------------------------------------------------------------
// Peripheral handle contracts
// -----------------------------------------------------------------------------

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOHandle is a claimed GPIO pin.
type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(b bool)
	Get() bool
	Toggle()
}

// SerialPort is a claimed stream port (UART).
type SerialPort interface {
	Write(b []byte) (int, error)
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
	SetBaudRate(baud uint32) error
}

// Platform materializes a board plan: the one-time token set plus the
// concrete handles behind the tokens. Init may be called at most once per
// process; a second call fails with errcode.PlatformReinit.
type Platform interface {
	Name() string
	Init(plan types.Plan) (*periph.Set, *Claims, error)
}

// -----------------------------------------------------------------------------
// Token IDs
// -----------------------------------------------------------------------------

// GPIOID returns the token id for a GPIO number, e.g. GPIOID(25) == "gpio25".
func GPIOID(pin int) periph.ID {
	var buf [20]byte
	return periph.ID("gpio" + string(conv.Itoa(buf[:], int64(pin))))
}

// PlanIDs lists the token ids a plan yields, in plan order: GPIO pins first,
// then I2C buses, then UART ports.
func PlanIDs(p types.Plan) []periph.ID {
	var out []periph.ID
	for _, g := range p.GPIO {
		out = append(out, GPIOID(g.Pin))
	}
	for _, b := range p.I2C {
		out = append(out, periph.ID(b.ID))
	}
	for _, u := range p.UART {
		out = append(out, periph.ID(u.ID))
	}
	return out
}

// -----------------------------------------------------------------------------
// Claims: token-for-handle exchange
// -----------------------------------------------------------------------------

// Claims maps token ids to the concrete peripheral handles a platform
// built. Exchanging a token for its handle consumes the token, so the
// handle inherits the token's exclusivity: only the owner that claimed the
// peripheral at boot can ever reach its hardware.
type Claims struct {
	mu     sync.Mutex
	gpio   map[periph.ID]GPIOHandle
	i2c    map[periph.ID]drivers.I2C
	serial map[periph.ID]SerialPort
}

// NewClaims is used by platform implementations while wiring a board.
func NewClaims() *Claims {
	return &Claims{
		gpio:   make(map[periph.ID]GPIOHandle),
		i2c:    make(map[periph.ID]drivers.I2C),
		serial: make(map[periph.ID]SerialPort),
	}
}

// AddGPIO, AddI2C and AddSerial register handles during platform init.
func (c *Claims) AddGPIO(id periph.ID, h GPIOHandle) { c.mu.Lock(); c.gpio[id] = h; c.mu.Unlock() }
func (c *Claims) AddI2C(id periph.ID, h drivers.I2C) { c.mu.Lock(); c.i2c[id] = h; c.mu.Unlock() }
func (c *Claims) AddSerial(id periph.ID, h SerialPort) {
	c.mu.Lock()
	c.serial[id] = h
	c.mu.Unlock()
}

// GPIO exchanges a token for the pin handle it names. The token is
// consumed; a token of another peripheral class is errcode.Unsupported.
func (c *Claims) GPIO(tok periph.Token) (GPIOHandle, error) {
	id := tok.ID()
	c.mu.Lock()
	h, ok := c.gpio[id]
	c.mu.Unlock()
	if !ok {
		return nil, classErr(c, id, "gpio")
	}
	tok.Move()
	return h, nil
}

// I2C exchanges a token for its transactional bus handle.
func (c *Claims) I2C(tok periph.Token) (drivers.I2C, error) {
	id := tok.ID()
	c.mu.Lock()
	h, ok := c.i2c[id]
	c.mu.Unlock()
	if !ok {
		return nil, classErr(c, id, "i2c")
	}
	tok.Move()
	return h, nil
}

// Serial exchanges a token for its stream port handle.
func (c *Claims) Serial(tok periph.Token) (SerialPort, error) {
	id := tok.ID()
	c.mu.Lock()
	h, ok := c.serial[id]
	c.mu.Unlock()
	if !ok {
		return nil, classErr(c, id, "serial")
	}
	tok.Move()
	return h, nil
}

func classErr(c *Claims, id periph.ID, want string) error {
	c.mu.Lock()
	_, g := c.gpio[id]
	_, i := c.i2c[id]
	_, s := c.serial[id]
	c.mu.Unlock()
	if g || i || s {
		return &errcode.E{C: errcode.Unsupported, Op: want, Msg: string(id)}
	}
	return &errcode.E{C: errcode.UnknownToken, Op: want, Msg: string(id)}
}
