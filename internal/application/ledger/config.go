package ledger

import (
	"time"

	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/shopspring/decimal"
)

// Config parámetros del ledger.
type Config struct {
	Tolerance   decimal.Decimal
	OverrideTTL time.Duration
	// Now reloj inyectable; nil usa time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Tolerance.IsZero() {
		c.Tolerance = fuel.DefaultTolerance
	}
	if c.OverrideTTL <= 0 {
		c.OverrideTTL = 300 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
