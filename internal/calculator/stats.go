package calculator

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billdesk/internal/models"
)

// CalculateSalesStats sums invoice net amounts for the day of now, the
// seven days ending on that day, and its calendar month. Dates are read in
// now's location. Documents of other kinds and undated invoices are skipped.
func CalculateSalesStats(invoices []*models.Document, now time.Time) models.SalesStats {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := today.AddDate(0, 0, -6)

	stats := models.SalesStats{
		Daily:   decimal.Zero,
		Weekly:  decimal.Zero,
		Monthly: decimal.Zero,
	}
	for _, inv := range invoices {
		if inv.Kind != models.KindInvoice {
			continue
		}
		day, err := time.ParseInLocation(models.DateLayout, inv.Date, now.Location())
		if err != nil {
			slog.Debug("Skipping invoice with unreadable date", "invoice_id", inv.ID, "date", inv.Date)
			continue
		}

		net := inv.Totals.NetAmount
		if day.Equal(today) {
			stats.Daily = stats.Daily.Add(net)
		}
		if !day.Before(weekStart) && !day.After(today) {
			stats.Weekly = stats.Weekly.Add(net)
		}
		if day.Year() == today.Year() && day.Month() == today.Month() {
			stats.Monthly = stats.Monthly.Add(net)
		}
	}
	return stats
}
