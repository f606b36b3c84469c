// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/billdesk/internal/models"
)

// ReturnCheck answers "does a return note already exist for this invoice?".
type ReturnCheck struct {
	Exists bool             `json:"exists"`
	Return *models.Document `json:"returnBill,omitempty"`
}

// Store defines the ledger operations.
// Lookups that miss return an error marked ierr.ErrDocumentNotFound.
// Documents returned by the store always have Kind set.
type Store interface {
	// NextInvoiceID returns the id the next created invoice will get,
	// without reserving it.
	NextInvoiceID(ctx context.Context) (string, error)

	// CreateInvoice persists a new invoice. An empty doc.ID is filled with
	// the next sequence; item IDs are assigned where missing.
	CreateInvoice(ctx context.Context, doc *models.Document) error

	// UpdateInvoice replaces the client, date, payment mode, items and totals
	// of an existing invoice. If the invoice has a return note its updated
	// bill is rebuilt.
	UpdateInvoice(ctx context.Context, doc *models.Document) error

	GetInvoice(ctx context.Context, id string) (*models.Document, error)

	// ListInvoices returns invoices newest first; limit <= 0 means all.
	ListInvoices(ctx context.Context, limit int) ([]*models.Document, error)

	// DeleteInvoice removes an invoice. It fails with ierr.ErrInvalidOperation
	// while a return note references the invoice.
	DeleteInvoice(ctx context.Context, id string) error

	// CheckReturn reports the return note of an invoice, if any.
	CheckReturn(ctx context.Context, invoiceID string) (ReturnCheck, error)

	// CreateReturn persists a new return note and materializes the invoice's
	// updated bill in the same transaction. It fails with
	// ierr.ErrDuplicateReturn if the invoice already has a return note.
	CreateReturn(ctx context.Context, doc *models.Document) error

	// UpdateReturn replaces an existing return note and rebuilds the updated bill.
	UpdateReturn(ctx context.Context, doc *models.Document) error

	GetReturn(ctx context.Context, id string) (*models.Document, error)
	ListReturns(ctx context.Context, limit int) ([]*models.Document, error)

	// DeleteReturn removes a return note together with its updated bill.
	DeleteReturn(ctx context.Context, id string) error

	GetUpdatedBill(ctx context.Context, id string) (*models.Document, error)
	ListUpdatedBills(ctx context.Context, limit int) ([]*models.Document, error)

	// GetDocument loads a document of any kind by id.
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// ListProducts returns the catalog.
	ListProducts(ctx context.Context) ([]models.Product, error)

	// UpsertProducts records the category, rate and unit of each item in
	// the catalog.
	UpsertProducts(ctx context.Context, items []models.LineItem) error

	// Close releases any resources held by the store.
	Close() error
}
