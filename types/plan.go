package types

// ------------------------
// Board resource plans
// ------------------------

// Plan specifies the physical peripheral complement of a board: which pins,
// buses and ports exist and how they are wired. The platform initializer
// consumes a plan to materialize the one-time token set and the concrete
// peripheral handles behind it.
type Plan struct {
	GPIO []GPIOPlan `json:"gpio,omitempty" toml:"gpio"`
	I2C  []I2CPlan  `json:"i2c,omitempty" toml:"i2c"`
	UART []UARTPlan `json:"uart,omitempty" toml:"uart"`
}

type GPIOPlan struct {
	Pin  int    `json:"pin" toml:"pin"`                       // GPIO number; token id "gpio<pin>"
	Name string `json:"name,omitempty" toml:"name,omitempty"` // optional label for tooling
}

type I2CPlan struct {
	ID  string `json:"id" toml:"id"` // e.g. "i2c0"; doubles as token id
	SDA int    `json:"sda" toml:"sda"`
	SCL int    `json:"scl" toml:"scl"`
	Hz  uint32 `json:"hz" toml:"hz"`
}

type UARTPlan struct {
	ID   string `json:"id" toml:"id"` // e.g. "uart0"; doubles as token id
	TX   int    `json:"tx" toml:"tx"`
	RX   int    `json:"rx" toml:"rx"`
	Baud uint32 `json:"baud" toml:"baud"`
}
