package models

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The catalog is refreshed with the latest
// rate and unit every time an invoice is saved.
type Product struct {
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit"`
}

// ProductCategory groups products for the item pickers.
type ProductCategory struct {
	Category string    `json:"category"`
	Items    []Product `json:"items"`
}

// GroupProducts groups products by category, both levels sorted by name.
func GroupProducts(products []Product) []ProductCategory {
	grouped := lo.GroupBy(products, func(p Product) string { return p.Category })
	categories := lo.Keys(grouped)
	sort.Strings(categories)

	out := make([]ProductCategory, 0, len(categories))
	for _, c := range categories {
		items := grouped[c]
		sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
		out = append(out, ProductCategory{Category: c, Items: items})
	}
	return out
}

// SalesStats sums invoice net amounts over three windows.
type SalesStats struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}
