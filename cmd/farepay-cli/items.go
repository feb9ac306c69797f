package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

// parseItem reads id:description:fare:qty. The description may itself contain colons.
func parseItem(s string) (domain.LineItem, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return domain.LineItem{}, fmt.Errorf("item %q: want id:description:fare:qty", s)
	}
	n := len(parts)
	fare, err := decimal.NewFromString(parts[n-2])
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("item %q: bad fare: %w", s, err)
	}
	qty, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("item %q: bad quantity: %w", s, err)
	}
	return domain.LineItem{
		ItemID:      parts[0],
		Description: strings.Join(parts[1:n-2], ":"),
		UnitFare:    fare,
		Quantity:    qty,
	}, nil
}

func parseItems(raw []string) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(raw))
	for _, s := range raw {
		item, err := parseItem(s)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
