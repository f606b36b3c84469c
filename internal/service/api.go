package service

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billdesk/internal/calculator"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/reconcile"
)

// DocumentView is a document as shown to the user: the stored document
// plus its label, total quantity and amount in words.
type DocumentView struct {
	*models.Document
	Label         string          `json:"label"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	AmountInWords string          `json:"amountInWords"`
}

func newDocumentView(doc *models.Document) *DocumentView {
	if doc == nil {
		return nil
	}
	words, err := calculator.AmountInWords(doc.Totals.NetAmount)
	if err != nil {
		slog.Warn("Cannot spell amount", "document_id", doc.ID, "net_amount", doc.Totals.NetAmount, "error", err)
	}
	return &DocumentView{
		Document:      doc,
		Label:         doc.Kind.Label(),
		TotalQuantity: calculator.TotalQuantity(doc.Items),
		AmountInWords: words,
	}
}

func newDocumentViews(docs []*models.Document) []*DocumentView {
	views := make([]*DocumentView, len(docs))
	for i, d := range docs {
		views[i] = newDocumentView(d)
	}
	return views
}

// DocumentRef names a document by id.
type DocumentRef struct {
	ID string `json:"id"`
}

// ListRequest bounds a list; Limit <= 0 means everything.
type ListRequest struct {
	Limit int `json:"limit"`
}

type ListDocumentsResponse struct {
	Documents []*DocumentView `json:"documents"`
}

type Empty struct{}

// Invoice service

type NextInvoiceNumberResponse struct {
	ID string `json:"id"`
}

// SaveInvoiceRequest creates the invoice, or updates it when Invoice.ID is set.
// Inactive rows are dropped and totals are recomputed.
type SaveInvoiceRequest struct {
	Invoice models.Document `json:"invoice"`
}

type PreviewTotalsRequest struct {
	Items []models.LineItem `json:"items"`
}

type PreviewTotalsResponse struct {
	Totals        models.Totals   `json:"totals"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	AmountInWords string          `json:"amountInWords"`
}

type ListProductsResponse struct {
	Categories []models.ProductCategory `json:"categories"`
}

// Return service

type CheckReturnRequest struct {
	InvoiceID string `json:"invoiceId"`
}

type CheckReturnResponse struct {
	Exists bool          `json:"exists"`
	Return *DocumentView `json:"returnBill,omitempty"`
}

type DashboardResponse struct {
	Invoices     []*DocumentView          `json:"invoices"`
	Returns      []*DocumentView          `json:"returns"`
	UpdatedBills []*DocumentView          `json:"updatedBills"`
	Products     []models.ProductCategory `json:"products"`
	Stats        models.SalesStats        `json:"stats"`
}

// Return session service

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type SearchRequest struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
}

type SearchResponse struct {
	Outcome reconcile.Outcome `json:"outcome"`
	Session *SessionView      `json:"session"`
}

// ResumeRequest resumes ReturnID, or the return note found by the last
// search when ReturnID is empty.
type ResumeRequest struct {
	SessionID string `json:"sessionId"`
	ReturnID  string `json:"returnId,omitempty"`
}

type ItemRequest struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
}

type UpdateItemRequest struct {
	SessionID string          `json:"sessionId"`
	Key       string          `json:"key"`
	Quantity  decimal.Decimal `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
}

// UpdateHeaderRequest changes the client and/or date; nil and empty fields
// are left alone.
type UpdateHeaderRequest struct {
	SessionID string         `json:"sessionId"`
	Client    *models.Client `json:"client,omitempty"`
	Date      string         `json:"date,omitempty"`
}

type SubmitResponse struct {
	Return  *DocumentView `json:"returnBill"`
	Session *SessionView  `json:"session"`
}

// SessionView is the state of a return session.
type SessionView struct {
	ID          string            `json:"id"`
	State       reconcile.State   `json:"state"`
	SearchKey   string            `json:"searchKey,omitempty"`
	Draft       *DocumentView     `json:"draft,omitempty"`
	RestorePool []models.LineItem `json:"restorePool"`
	Existing    *DocumentView     `json:"existing,omitempty"`
	Saved       *DocumentView     `json:"saved,omitempty"`
}

func newSessionView(snap reconcile.Snapshot) *SessionView {
	return &SessionView{
		ID:          snap.ID,
		State:       snap.State,
		SearchKey:   snap.SearchKey,
		Draft:       newDocumentView(snap.Draft),
		RestorePool: snap.RestorePool,
		Existing:    newDocumentView(snap.Existing),
		Saved:       newDocumentView(snap.Saved),
	}
}
