// provider/sim/sim.go
package sim

import (
	"context"
	"sync"

	"firmboot-go/errcode"
	"firmboot-go/periph"
	"firmboot-go/provider"
	"firmboot-go/types"
)

// Platform is the host simulator: it materializes a plan into in-memory
// peripherals so the boot layer, tests and host demos run without hardware.
type Platform struct {
	mu     sync.Mutex
	inited bool
	pins   map[int]*Pin
	buses  map[string]*I2CBus
	ports  map[string]*Port
}

func New() *Platform {
	return &Platform{
		pins:  make(map[int]*Pin),
		buses: make(map[string]*I2CBus),
		ports: make(map[string]*Port),
	}
}

func (p *Platform) Name() string { return "sim" }

// Init materializes the token set and handles. Like a real platform it runs
// once; a second call fails with errcode.PlatformReinit.
func (p *Platform) Init(plan types.Plan) (*periph.Set, *provider.Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inited {
		return nil, nil, errcode.PlatformReinit
	}

	ids := provider.PlanIDs(plan)
	seen := make(map[periph.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, nil, &errcode.E{C: errcode.InvalidPlan, Op: "init", Msg: string(id)}
		}
		seen[id] = struct{}{}
	}

	claims := provider.NewClaims()
	for _, g := range plan.GPIO {
		pin := &Pin{n: g.Pin}
		p.pins[g.Pin] = pin
		claims.AddGPIO(provider.GPIOID(g.Pin), pin)
	}
	for _, b := range plan.I2C {
		bus := &I2CBus{}
		p.buses[b.ID] = bus
		claims.AddI2C(periph.ID(b.ID), bus)
	}
	for _, u := range plan.UART {
		port := &Port{ch: make(chan byte, 256), baud: u.Baud}
		p.ports[u.ID] = port
		claims.AddSerial(periph.ID(u.ID), port)
	}

	p.inited = true
	return periph.NewSet(ids...), claims, nil
}

// Pin returns the simulated pin for inspection in tests.
func (p *Platform) Pin(n int) (*Pin, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[n]
	return pin, ok
}

// Bus returns the simulated I2C bus for inspection in tests.
func (p *Platform) Bus(id string) (*I2CBus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buses[id]
	return b, ok
}

// Port returns the simulated serial port for inspection in tests.
func (p *Platform) Port(id string) (*Port, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	port, ok := p.ports[id]
	return port, ok
}

// -----------------------------------------------------------------------------
// Pin
// -----------------------------------------------------------------------------

// Pin records configuration and level changes.
type Pin struct {
	mu      sync.Mutex
	n       int
	output  bool
	pull    provider.Pull
	level   bool
	toggles int
}

func (p *Pin) Number() int { return p.n }

func (p *Pin) ConfigureInput(pull provider.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = false
	p.pull = pull
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = true
	p.level = initial
	return nil
}

func (p *Pin) Set(b bool) {
	p.mu.Lock()
	p.level = b
	p.mu.Unlock()
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *Pin) Toggle() {
	p.mu.Lock()
	p.level = !p.level
	p.toggles++
	p.mu.Unlock()
}

// Toggles reports how many times the pin has been toggled.
func (p *Pin) Toggles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toggles
}

// Output reports whether the pin is configured as an output.
func (p *Pin) Output() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// -----------------------------------------------------------------------------
// I2C bus
// -----------------------------------------------------------------------------

// I2CTx records one transaction on the simulated bus.
type I2CTx struct {
	Addr uint16
	W    []byte
	RLen int
}

// I2CBus satisfies tinygo.org/x/drivers.I2C. Reads return zeroes unless a
// handler is installed.
type I2CBus struct {
	mu      sync.Mutex
	txs     []I2CTx
	handler func(addr uint16, w, r []byte) error
}

// Handle installs a transaction handler (e.g. a fake device).
func (b *I2CBus) Handle(fn func(addr uint16, w, r []byte) error) {
	b.mu.Lock()
	b.handler = fn
	b.mu.Unlock()
}

func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs = append(b.txs, I2CTx{Addr: addr, W: append([]byte(nil), w...), RLen: len(r)})
	if b.handler != nil {
		return b.handler(addr, w, r)
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

// Txs returns the recorded transactions.
func (b *I2CBus) Txs() []I2CTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]I2CTx, len(b.txs))
	copy(out, b.txs)
	return out
}

// -----------------------------------------------------------------------------
// Serial port (loopback)
// -----------------------------------------------------------------------------

// Port loops written bytes back to the reader through a bounded buffer.
type Port struct {
	ch   chan byte
	mu   sync.Mutex
	baud uint32
}

func (p *Port) Write(b []byte) (int, error) {
	for i, c := range b {
		select {
		case p.ch <- c:
		default:
			return i, errcode.Timeout
		}
	}
	return len(b), nil
}

func (p *Port) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case c := <-p.ch:
		buf[0] = c
	}
	n := 1
	for n < len(buf) {
		select {
		case c := <-p.ch:
			buf[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (p *Port) SetBaudRate(baud uint32) error {
	p.mu.Lock()
	p.baud = baud
	p.mu.Unlock()
	return nil
}

// Baud returns the last configured baud rate.
func (p *Port) Baud() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baud
}
