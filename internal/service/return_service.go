package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/billdesk/internal/calculator"
	"github.com/mmynk/billdesk/internal/docid"
	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
)

// dashboardLimit is how many documents of each kind the dashboard shows
// when the request does not say.
const dashboardLimit = 20

// ReturnService implements billdesk.v1.ReturnService: read access to return
// notes and updated bills, plus the dashboard.
type ReturnService struct {
	store storage.Store
	loc   *time.Location
	now   func() time.Time
}

// NewReturnService creates a new ReturnService.
func NewReturnService(store storage.Store, loc *time.Location) *ReturnService {
	if loc == nil {
		loc = time.Local
	}
	return &ReturnService{store: store, loc: loc, now: time.Now}
}

// CheckReturn reports whether an invoice already has a return note.
func (s *ReturnService) CheckReturn(ctx context.Context, req *CheckReturnRequest) (*CheckReturnResponse, error) {
	invoiceID, err := docid.NormalizeInvoiceID(req.InvoiceID)
	if err != nil {
		return nil, err
	}
	check, err := s.store.CheckReturn(ctx, invoiceID)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &CheckReturnResponse{Exists: check.Exists, Return: newDocumentView(check.Return)}, nil
}

func (s *ReturnService) GetReturn(ctx context.Context, req *DocumentRef) (*DocumentView, error) {
	doc, err := s.store.GetReturn(ctx, canonicalID(req.ID))
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return newDocumentView(doc), nil
}

func (s *ReturnService) ListReturns(ctx context.Context, req *ListRequest) (*ListDocumentsResponse, error) {
	docs, err := s.store.ListReturns(ctx, req.Limit)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &ListDocumentsResponse{Documents: newDocumentViews(docs)}, nil
}

// DeleteReturn removes a return note and its updated bill.
func (s *ReturnService) DeleteReturn(ctx context.Context, req *DocumentRef) (*Empty, error) {
	id := canonicalID(req.ID)
	if err := s.store.DeleteReturn(ctx, id); err != nil {
		return nil, ierr.Unavailable(err)
	}
	slog.Info("Return note deleted", "return_id", id)
	return &Empty{}, nil
}

func (s *ReturnService) GetUpdatedBill(ctx context.Context, req *DocumentRef) (*DocumentView, error) {
	doc, err := s.store.GetUpdatedBill(ctx, canonicalID(req.ID))
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return newDocumentView(doc), nil
}

func (s *ReturnService) ListUpdatedBills(ctx context.Context, req *ListRequest) (*ListDocumentsResponse, error) {
	docs, err := s.store.ListUpdatedBills(ctx, req.Limit)
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return &ListDocumentsResponse{Documents: newDocumentViews(docs)}, nil
}

// GetDocument loads a document of any kind; the kind follows from the id prefix.
func (s *ReturnService) GetDocument(ctx context.Context, req *DocumentRef) (*DocumentView, error) {
	doc, err := s.store.GetDocument(ctx, canonicalID(req.ID))
	if err != nil {
		return nil, ierr.Unavailable(err)
	}
	return newDocumentView(doc), nil
}

// GetDashboard loads recent documents of every kind, the catalog and the
// sales statistics concurrently.
func (s *ReturnService) GetDashboard(ctx context.Context, req *ListRequest) (*DashboardResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = dashboardLimit
	}

	var (
		invoices, returns, bills, all []*models.Document
		products                      []models.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invoices, err = s.store.ListInvoices(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		returns, err = s.store.ListReturns(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		bills, err = s.store.ListUpdatedBills(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.store.ListProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		all, err = s.store.ListInvoices(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, ierr.Unavailable(err)
	}

	return &DashboardResponse{
		Invoices:     newDocumentViews(invoices),
		Returns:      newDocumentViews(returns),
		UpdatedBills: newDocumentViews(bills),
		Products:     models.GroupProducts(products),
		Stats:        calculator.CalculateSalesStats(all, s.now().In(s.loc)),
	}, nil
}

func canonicalID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
