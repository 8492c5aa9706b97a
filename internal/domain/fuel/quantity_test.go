package fuel_test

import (
	"testing"

	"github.com/jhoicas/fuel-ledger/internal/domain/fuel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFitsScale(t *testing.T) {
	cases := map[string]bool{
		"1000":     true,
		"0.001":    true,
		"12.5":     true,
		"1.5000":   true, // ceros a la derecha no agregan precisión
		"-3.125":   true,
		"0.0004":   false,
		"100.0001": false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, fuel.FitsScale(decimal.RequireFromString(raw)), raw)
	}
}
