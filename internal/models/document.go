package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout of Document.Date.
const DateLayout = "2006-01-02"

// Kind discriminates the three document kinds.
type Kind string

const (
	KindInvoice     Kind = "invoice"
	KindReturnNote  Kind = "return_note"
	KindUpdatedBill Kind = "updated_bill"
)

// Label is the title printed on the document.
func (k Kind) Label() string {
	switch k {
	case KindInvoice:
		return "Invoice"
	case KindReturnNote:
		return "Return Note"
	case KindUpdatedBill:
		return "Updated Bill"
	}
	return string(k)
}

// PaymentMode is the default payment mode printed for the kind.
func (k Kind) PaymentMode() string {
	switch k {
	case KindInvoice:
		return "Credit"
	case KindReturnNote:
		return "Return Note"
	case KindUpdatedBill:
		return "Final Bill"
	}
	return ""
}

// Client is the customer a document is issued to.
type Client struct {
	Name    string `json:"name" validate:"max=128"`
	Mobile  string `json:"mobile" validate:"omitempty,max=20"`
	Address string `json:"address" validate:"max=256"`
}

// Totals is the result of the totals calculation.
// NetAmount is integer-valued and RoundOff = NetAmount - Subtotal.
type Totals struct {
	Subtotal  decimal.Decimal
	RoundOff  decimal.Decimal
	NetAmount decimal.Decimal
}

type totalsJSON struct {
	Subtotal  string `json:"subtotal"`
	RoundOff  string `json:"roundOff"`
	NetAmount string `json:"netAmount"`
}

// MarshalJSON encodes every value in its canonical two-decimal form.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(totalsJSON{
		Subtotal:  t.Subtotal.StringFixed(2),
		RoundOff:  t.RoundOff.StringFixed(2),
		NetAmount: t.NetAmount.StringFixed(2),
	})
}

func (t *Totals) UnmarshalJSON(data []byte) error {
	var raw totalsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if t.Subtotal, err = parseDecimal(raw.Subtotal); err != nil {
		return fmt.Errorf("subtotal: %w", err)
	}
	if t.RoundOff, err = parseDecimal(raw.RoundOff); err != nil {
		return fmt.Errorf("roundOff: %w", err)
	}
	if t.NetAmount, err = parseDecimal(raw.NetAmount); err != nil {
		return fmt.Errorf("netAmount: %w", err)
	}
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Document is an invoice, a return note or an updated bill.
type Document struct {
	// Kind is set by the ledger when the document is stored or loaded.
	Kind Kind `json:"kind"`

	// ID is NB<seq>, RB<seq> or UB<seq> depending on Kind.
	ID string `json:"id"`

	// InvoiceID is the originating invoice of a return note or updated bill.
	InvoiceID string `json:"invoiceId,omitempty"`

	// ReturnID is the return note an updated bill was derived from.
	ReturnID string `json:"returnId,omitempty"`

	// Date is the document date, YYYY-MM-DD.
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`

	Client Client `json:"client"`

	// Items holds active line items only.
	Items []LineItem `json:"items" validate:"dive"`

	Totals Totals `json:"totals"`

	PaymentMode string `json:"paymentMode,omitempty" validate:"max=32"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = CloneItems(d.Items)
	return &c
}
