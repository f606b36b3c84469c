package models

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItem is a single row of a document.
// A row with a blank description is inactive: it is neither totalled nor stored.
type LineItem struct {
	// ID is assigned by the ledger when an invoice is first stored.
	// Return note items keep the ID of the invoice item they came from.
	ID string `json:"id,omitempty"`

	Category    string `json:"category" validate:"max=64"`
	Description string `json:"description" validate:"required,max=128"`

	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate" validate:"gte=0"`

	// Unit is the unit of measure, e.g. "Pcs" or "Kg".
	Unit string `json:"unit" validate:"max=16"`
}

// Amount is Quantity x Rate.
func (i LineItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.Rate)
}

// Key identifies the item within a document: its ID, or its description
// for items that were never stored.
func (i LineItem) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return strings.TrimSpace(i.Description)
}

// IsActive reports whether the row carries a description.
func (i LineItem) IsActive() bool {
	return strings.TrimSpace(i.Description) != ""
}

// MarshalJSON adds the derived amount.
func (i LineItem) MarshalJSON() ([]byte, error) {
	type plain LineItem
	return json.Marshal(struct {
		plain
		Amount decimal.Decimal `json:"amount"`
	}{plain(i), i.Amount()})
}

// ActiveItems drops inactive rows.
func ActiveItems(items []LineItem) []LineItem {
	return lo.Filter(items, func(item LineItem, _ int) bool {
		return item.IsActive()
	})
}

// CloneItems copies items into a new slice.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
