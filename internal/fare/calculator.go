package fare

import (
	"fmt"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

// DefaultMinimumTotal is one currency unit.
var DefaultMinimumTotal = decimal.NewFromInt(1)

type Calculator struct {
	minimumTotal decimal.Decimal
}

func NewCalculator(minimumTotal decimal.Decimal) *Calculator {
	if !minimumTotal.IsPositive() {
		minimumTotal = DefaultMinimumTotal
	}
	return &Calculator{minimumTotal: minimumTotal}
}

// Total is the authoritative charge for the given line items.
func (c *Calculator) Total(items []domain.LineItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no line items", domain.ErrInvalidAmount)
	}

	total := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("%w: line item %d has non-positive quantity", domain.ErrInvalidAmount, i)
		}
		if !item.UnitFare.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: line item %d has non-positive fare", domain.ErrInvalidAmount, i)
		}
		total = total.Add(item.UnitFare.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if total.LessThan(c.minimumTotal) {
		return decimal.Zero, fmt.Errorf("%w: total %s is below minimum %s", domain.ErrInvalidAmount, total, c.minimumTotal)
	}
	return total, nil
}
