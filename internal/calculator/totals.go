package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/billdesk/internal/models"
)

// ComputeTotals computes subtotal, round-off and net amount for items.
//
// The subtotal is the exact sum of quantity x rate, kept to the cent.
// The net amount is the subtotal rounded to the nearest whole unit with
// ties going away from zero (125.50 -> 126), and the round-off is
// net amount - subtotal, so it is positive when the subtotal rounds up.
//
// Inactive rows are not filtered here; callers pass active items.
func ComputeTotals(items []models.LineItem) models.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}
	subtotal = subtotal.Round(2)
	net := subtotal.Round(0)

	return models.Totals{
		Subtotal:  subtotal,
		RoundOff:  net.Sub(subtotal),
		NetAmount: net,
	}
}

// TotalQuantity sums the quantities of items, as printed under the item table.
func TotalQuantity(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Quantity)
	}
	return total
}
