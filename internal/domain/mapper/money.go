package mapper

import (
	"github.com/cockroachdb/apd/v3"
)

// rowTotal multiplies in decimal space so 19.99 * 3 stays 59.97.
func rowTotal(price float64, qty int64) float64 {
	var p, q, res apd.Decimal
	if _, err := p.SetFloat64(price); err != nil {
		return price * float64(qty)
	}
	q.SetInt64(qty)

	ctx := apd.BaseContext.WithPrecision(34)
	if _, err := ctx.Mul(&res, &p, &q); err != nil {
		return price * float64(qty)
	}

	f, err := res.Float64()
	if err != nil {
		return price * float64(qty)
	}
	return f
}
