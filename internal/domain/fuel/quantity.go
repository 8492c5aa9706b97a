package fuel

import "github.com/shopspring/decimal"

// QuantityScale decimales con que se persisten los litros (columnas NUMERIC(14,3)).
const QuantityScale int32 = 3

// FitsScale true si q no tiene más decimales de los que se persisten.
func FitsScale(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale))
}
