// periph/token.go
package periph

import (
	"firmboot-go/errcode"
)

// ID names one physical peripheral instance, e.g. "gpio25", "i2c0", "uart1".
type ID string

// -----------------------------------------------------------------------------
// Token
// -----------------------------------------------------------------------------

// cell is the shared ownership record behind a token. Every copy of a Token
// points at the same cell; spending the cell invalidates all copies at once.
type cell struct {
	id    ID
	spent bool
}

// Token is exclusive ownership of one peripheral instance. It carries no
// payload beyond its ID. The only source of a token is Set.Claim; from there
// ownership transfers by Move, which invalidates every prior copy. Using a
// moved (or zero) token panics with errcode.TokenMoved.
type Token struct {
	c *cell
}

// ID returns the peripheral this token owns.
func (t Token) ID() ID {
	t.check()
	return t.c.id
}

// Valid reports whether the token is live (not zero, not moved).
func (t Token) Valid() bool {
	return t.c != nil && !t.c.spent
}

// Move transfers ownership: it returns the single live token for the
// peripheral and invalidates the receiver and every other copy of it.
// Bundle composition and handle exchange consume tokens through Move.
func (t Token) Move() Token {
	t.check()
	t.c.spent = true
	return Token{c: &cell{id: t.c.id}}
}

func (t Token) check() {
	if t.c == nil || t.c.spent {
		panic(errcode.TokenMoved)
	}
}
