package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/billdesk/internal/calculator"
	"github.com/mmynk/billdesk/internal/docid"
	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
	"github.com/mmynk/billdesk/internal/validator"
)

// InvoiceService implements billdesk.v1.InvoiceService.
type InvoiceService struct {
	store   storage.Store
	metrics *Metrics
	loc     *time.Location
	now     func() time.Time
}

// NewInvoiceService creates a new InvoiceService. Sales statistics are
// bucketed by calendar day in loc.
func NewInvoiceService(store storage.Store, metrics *Metrics, loc *time.Location) *InvoiceService {
	if loc == nil {
		loc = time.Local
	}
	return &InvoiceService{store: store, metrics: metrics, loc: loc, now: time.Now}
}

// NextInvoiceNumber reports the id the next new invoice will get.
func (s *InvoiceService) NextInvoiceNumber(ctx context.Context, _ *Empty) (*NextInvoiceNumberResponse, error) {
	id, err := s.store.NextInvoiceID(ctx)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &NextInvoiceNumberResponse{ID: id}, nil
}

// SaveInvoice creates or updates an invoice and refreshes the catalog from
// its items.
func (s *InvoiceService) SaveInvoice(ctx context.Context, req *SaveInvoiceRequest) (*DocumentView, error) {
	doc := req.Invoice.Clone()
	doc.Items = models.ActiveItems(doc.Items)
	if err := validator.ValidateDocument(doc); err != nil {
		return nil, err
	}
	doc.Totals = calculator.ComputeTotals(doc.Items)

	op := "create"
	var err error
	if doc.ID == "" {
		err = s.store.CreateInvoice(ctx, doc)
	} else {
		op = "update"
		if doc.ID, err = docid.NormalizeInvoiceID(doc.ID); err != nil {
			return nil, err
		}
		err = s.store.UpdateInvoice(ctx, doc)
	}
	if err != nil {
		slog.Error("Failed to save invoice", "invoice_id", doc.ID, "op", op, "error", err)
		return nil, ierr.Unavailable(err)
	}
	s.metrics.invoiceSaved(op)
	slog.Info("Invoice saved",
		"invoice_id", doc.ID,
		"op", op,
		"items", len(doc.Items),
		"net_amount", doc.Totals.NetAmount.StringFixed(2),
	)

	// Catalog failures do not fail the save.
	if err := s.store.UpsertProducts(ctx, doc.Items); err != nil {
		slog.Warn("Failed to update product catalog", "invoice_id", doc.ID, "error", err)
	}
	return newDocumentView(doc), nil
}

// GetInvoice loads an invoice. The id may be given as "7", "NB7" or "NB007".
func (s *InvoiceService) GetInvoice(ctx context.Context, req *DocumentRef) (*DocumentView, error) {
	id, err := docid.NormalizeInvoiceID(req.ID)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return newDocumentView(doc), nil
}

// ListInvoices returns invoices newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context, req *ListRequest) (*ListDocumentsResponse, error) {
	docs, err := s.store.ListInvoices(ctx, req.Limit)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &ListDocumentsResponse{Documents: newDocumentViews(docs)}, nil
}

// DeleteInvoice removes an invoice without a return note.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, req *DocumentRef) (*Empty, error) {
	id, err := docid.NormalizeInvoiceID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return nil, ierr.Unavailable(err)
	}
	slog.Info("Invoice deleted", "invoice_id", id)
	return &Empty{}, nil
}

// PreviewTotals computes totals for a bill being edited without storing it.
func (s *InvoiceService) PreviewTotals(_ context.Context, req *PreviewTotalsRequest) (*PreviewTotalsResponse, error) {
	items := models.ActiveItems(req.Items)
	totals := calculator.ComputeTotals(items)
	words, err := calculator.AmountInWords(totals.NetAmount)
	if err != nil {
		return nil, err
	}
	return &PreviewTotalsResponse{
		Totals:        totals,
		TotalQuantity: calculator.TotalQuantity(items),
		AmountInWords: words,
	}, nil
}

// GetSalesStats sums invoice net amounts for today, the last seven days and
// this month.
func (s *InvoiceService) GetSalesStats(ctx context.Context, _ *Empty) (*models.SalesStats, error) {
	invoices, err := s.store.ListInvoices(ctx, 0)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	stats := calculator.CalculateSalesStats(invoices, s.now().In(s.loc))
	return &stats, nil
}

// ListProducts returns the catalog grouped by category.
func (s *InvoiceService) ListProducts(ctx context.Context, _ *Empty) (*ListProductsResponse, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &ListProductsResponse{Categories: models.GroupProducts(products)}, nil
}
