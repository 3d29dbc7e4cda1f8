//go:build rp2040

// provider/rp2040.go
package provider

import (
	"context"
	"sync"
	"time"

	"firmboot-go/errcode"
	"firmboot-go/periph"
	"firmboot-go/types"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// RP2040 materializes a plan on the Raspberry Pi RP2040. The hardware is a
// process-wide singleton, so Init is guarded once per process.
type RP2040 struct{}

var rp2Inited bool
var rp2Mu sync.Mutex

func NewRP2040() *RP2040 { return &RP2040{} }

func (*RP2040) Name() string { return "rp2040" }

func (*RP2040) Init(plan types.Plan) (*periph.Set, *Claims, error) {
	rp2Mu.Lock()
	defer rp2Mu.Unlock()
	if rp2Inited {
		return nil, nil, errcode.PlatformReinit
	}

	claims := NewClaims()

	for _, g := range plan.GPIO {
		claims.AddGPIO(GPIOID(g.Pin), &rp2GPIO{p: machine.Pin(g.Pin), n: g.Pin})
	}

	for _, b := range plan.I2C {
		var hw *machine.I2C
		switch b.ID {
		case "i2c0":
			hw = machine.I2C0
		case "i2c1":
			hw = machine.I2C1
		default:
			return nil, nil, &errcode.E{C: errcode.InvalidPlan, Op: "init", Msg: b.ID}
		}
		sda := machine.Pin(b.SDA)
		scl := machine.Pin(b.SCL)
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		if err := hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: b.Hz}); err != nil {
			return nil, nil, err
		}
		claims.AddI2C(periph.ID(b.ID), newI2CPort(hw))
	}

	for _, u := range plan.UART {
		var hw *uartx.UART
		switch u.ID {
		case "uart0":
			hw = uartx.UART0
		case "uart1":
			hw = uartx.UART1
		default:
			return nil, nil, &errcode.E{C: errcode.InvalidPlan, Op: "init", Msg: u.ID}
		}
		_ = hw.Configure(uartx.UARTConfig{
			BaudRate: u.Baud,
			TX:       machine.Pin(u.TX),
			RX:       machine.Pin(u.RX),
		})
		claims.AddSerial(periph.ID(u.ID), &rp2SerialPort{u: hw})
	}

	rp2Inited = true
	return periph.NewSet(PlanIDs(plan)...), claims, nil
}

// -----------------------------------------------------------------------------
// GPIO handle
// -----------------------------------------------------------------------------

type rp2GPIO struct {
	p machine.Pin
	n int
}

func (r *rp2GPIO) Number() int { return r.n }

func (r *rp2GPIO) ConfigureInput(pull Pull) error {
	var mode machine.PinMode
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2GPIO) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2GPIO) Set(b bool) { r.p.Set(b) }
func (r *rp2GPIO) Get() bool  { return r.p.Get() }
func (r *rp2GPIO) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

// -----------------------------------------------------------------------------
// I2C port (single worker per bus)
// -----------------------------------------------------------------------------

// The bus token already guarantees a single owner, but driver code may call
// Tx from more than one goroutine of the same task; a per-bus worker keeps
// transactions serialized and bounded in time.

type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

type i2cPort struct {
	reqs    chan i2cReq
	timeout time.Duration
}

// Ensure compile-time conformance with drivers.I2C.
var _ drivers.I2C = (*i2cPort)(nil)

func newI2CPort(hw *machine.I2C) *i2cPort {
	p := &i2cPort{reqs: make(chan i2cReq, 16), timeout: 250 * time.Millisecond}
	go func() {
		for req := range p.reqs {
			err := hw.Tx(req.addr, req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		}
	}()
	return p
}

func (p *i2cPort) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	t := time.NewTimer(p.timeout)
	select {
	case p.reqs <- req:
		if !t.Stop() {
			<-t.C
		}
	case <-t.C:
		return errcode.Timeout
	}

	t = time.NewTimer(p.timeout)
	defer t.Stop()
	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}

// -----------------------------------------------------------------------------
// Serial port
// -----------------------------------------------------------------------------

type rp2SerialPort struct{ u *uartx.UART }

func (p *rp2SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
func (p *rp2SerialPort) SetBaudRate(baud uint32) error { p.u.SetBaudRate(baud); return nil }
