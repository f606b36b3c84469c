// Package docid holds the identifier rules linking invoices, return notes
// and updated bills. An invoice NB007 has return note RB007 and updated
// bill UB007; the numeric suffix is shared by the whole lineage.
package docid

import (
	"fmt"
	"strconv"
	"strings"

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
)

const (
	InvoicePrefix     = "NB"
	ReturnPrefix      = "RB"
	UpdatedBillPrefix = "UB"

	// sequenceWidth is the zero-padded width of issued sequences.
	sequenceWidth = 3
)

// FormatInvoiceID renders an invoice sequence number as NB<seq>.
func FormatInvoiceID(seq int64) string {
	return fmt.Sprintf("%s%0*d", InvoicePrefix, sequenceWidth, seq)
}

// Sequence returns the numeric part of a canonical invoice id.
func Sequence(invoiceID string) (int64, error) {
	suffix, err := invoiceSuffix(invoiceID)
	if err != nil {
		return 0, err
	}
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, invalidID(invoiceID)
	}
	return seq, nil
}

// NormalizeInvoiceID turns a user-supplied search key into the canonical
// invoice id. "7", "007", "nb7" and "NB007" all give "NB007".
func NormalizeInvoiceID(key string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(key))
	s = strings.TrimPrefix(s, InvoicePrefix)
	if !isDigits(s) {
		return "", ierr.NewErrorf("cannot read invoice number %q", key).
			WithHint("Enter a bill number like 7 or NB007.").
			Mark(ierr.ErrInvalidIDFormat)
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Bill number is too long.").
			Mark(ierr.ErrInvalidIDFormat)
	}
	return FormatInvoiceID(seq), nil
}

// DeriveReturnID replaces the NB prefix of an invoice id with RB,
// keeping the suffix exactly: NB007 -> RB007.
func DeriveReturnID(invoiceID string) (string, error) {
	suffix, err := invoiceSuffix(invoiceID)
	if err != nil {
		return "", err
	}
	return ReturnPrefix + suffix, nil
}

// DeriveUpdatedBillID replaces the NB prefix of an invoice id with UB.
func DeriveUpdatedBillID(invoiceID string) (string, error) {
	suffix, err := invoiceSuffix(invoiceID)
	if err != nil {
		return "", err
	}
	return UpdatedBillPrefix + suffix, nil
}

// KindOf resolves the document kind an id belongs to.
func KindOf(id string) (models.Kind, error) {
	var kind models.Kind
	switch {
	case strings.HasPrefix(id, InvoicePrefix):
		kind = models.KindInvoice
	case strings.HasPrefix(id, ReturnPrefix):
		kind = models.KindReturnNote
	case strings.HasPrefix(id, UpdatedBillPrefix):
		kind = models.KindUpdatedBill
	default:
		return "", invalidID(id)
	}
	if !isDigits(id[2:]) {
		return "", invalidID(id)
	}
	return kind, nil
}

func invoiceSuffix(invoiceID string) (string, error) {
	suffix, ok := strings.CutPrefix(invoiceID, InvoicePrefix)
	if !ok || !isDigits(suffix) {
		return "", invalidID(invoiceID)
	}
	return suffix, nil
}

func invalidID(id string) error {
	return ierr.NewErrorf("malformed document id %q", id).
		WithHintf("%q is not a valid bill number. Bill numbers look like NB007.", id).
		Mark(ierr.ErrInvalidIDFormat)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
