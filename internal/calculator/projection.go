package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/billdesk/internal/models"
)

// RemainingItems subtracts returned quantities from the invoice items and
// returns what the customer keeps, in invoice order.
//
// Returned rows are matched to invoice rows by Key. When a key appears on
// several invoice rows the returned quantity is consumed in order. Rows
// whose remaining quantity is zero or less are dropped; a returned quantity
// larger than the invoiced one simply empties the row.
func RemainingItems(invoiceItems, returned []models.LineItem) []models.LineItem {
	pending := make(map[string]decimal.Decimal, len(returned))
	for _, r := range returned {
		pending[r.Key()] = pending[r.Key()].Add(r.Quantity)
	}

	remaining := make([]models.LineItem, 0, len(invoiceItems))
	for _, item := range invoiceItems {
		key := item.Key()
		take := decimal.Min(pending[key], item.Quantity)
		if take.IsPositive() {
			pending[key] = pending[key].Sub(take)
		} else {
			take = decimal.Zero
		}

		left := item.Quantity.Sub(take)
		if !left.IsPositive() {
			continue
		}
		item.Quantity = left
		remaining = append(remaining, item)
	}
	return remaining
}

// UpdatedBill builds the final state of invoice once note is applied.
// The caller assigns the id.
func UpdatedBill(invoice, note *models.Document) *models.Document {
	items := RemainingItems(invoice.Items, note.Items)
	return &models.Document{
		Kind:        models.KindUpdatedBill,
		InvoiceID:   invoice.ID,
		ReturnID:    note.ID,
		Date:        note.Date,
		Client:      invoice.Client,
		Items:       items,
		Totals:      ComputeTotals(items),
		PaymentMode: models.KindUpdatedBill.PaymentMode(),
	}
}
