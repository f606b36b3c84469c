package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/billdesk/internal/docid"
	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
)

// CheckReturn reports whether invoiceID already has a return note.
func (s *SQLiteStore) CheckReturn(ctx context.Context, invoiceID string) (storage.ReturnCheck, error) {
	returnID, found, err := findReturnID(ctx, s.db, invoiceID)
	if err != nil || !found {
		return storage.ReturnCheck{}, err
	}
	note, err := getDocument(ctx, s.db, models.KindReturnNote, returnID)
	if err != nil {
		return storage.ReturnCheck{}, err
	}
	return storage.ReturnCheck{Exists: true, Return: note}, nil
}

// CreateReturn persists a return note and its updated bill atomically.
func (s *SQLiteStore) CreateReturn(ctx context.Context, doc *models.Document) error {
	if doc.InvoiceID == "" {
		return ierr.NewError("return note without invoice").
			WithHint("A return note must reference an invoice.").
			Mark(ierr.ErrInvalidOperation)
	}
	id, err := docid.DeriveReturnID(doc.InvoiceID)
	if err != nil {
		return err
	}
	if doc.ID != "" && doc.ID != id {
		return ierr.NewErrorf("return id %s does not match invoice %s", doc.ID, doc.InvoiceID).
			WithHintf("The return note of %s must be numbered %s.", doc.InvoiceID, id).
			Mark(ierr.ErrInvalidIDFormat)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	invoice, err := getDocument(ctx, tx, models.KindInvoice, doc.InvoiceID)
	if err != nil {
		return err
	}
	if existingID, found, err := findReturnID(ctx, tx, doc.InvoiceID); err != nil {
		return err
	} else if found {
		return duplicateReturn(doc.InvoiceID, existingID)
	}

	now := s.now()
	doc.ID = id
	doc.Kind = models.KindReturnNote
	doc.ReturnID = ""
	if doc.Date == "" {
		doc.Date = now.Format(models.DateLayout)
	}
	if doc.PaymentMode == "" {
		doc.PaymentMode = models.KindReturnNote.PaymentMode()
	}
	doc.CreatedAt = now.Unix()
	doc.UpdatedAt = doc.CreatedAt

	if err := insertDocument(ctx, tx, doc); err != nil {
		if isUniqueViolation(err) {
			return duplicateReturn(doc.InvoiceID, id)
		}
		return err
	}
	if err := s.materializeUpdatedBill(ctx, tx, invoice, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateReturn replaces an existing return note and rebuilds the updated bill.
func (s *SQLiteStore) UpdateReturn(ctx context.Context, doc *models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getDocument(ctx, tx, models.KindReturnNote, doc.ID)
	if err != nil {
		return err
	}

	doc.Kind = models.KindReturnNote
	doc.InvoiceID = existing.InvoiceID
	doc.ReturnID = ""
	if doc.Date == "" {
		doc.Date = existing.Date
	}
	if doc.PaymentMode == "" {
		doc.PaymentMode = existing.PaymentMode
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = s.now().Unix()

	if err := replaceDocument(ctx, tx, doc); err != nil {
		return err
	}

	invoice, err := getDocument(ctx, tx, models.KindInvoice, doc.InvoiceID)
	if err != nil {
		return err
	}
	if err := s.materializeUpdatedBill(ctx, tx, invoice, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReturn retrieves a return note by ID.
func (s *SQLiteStore) GetReturn(ctx context.Context, id string) (*models.Document, error) {
	return getDocument(ctx, s.db, models.KindReturnNote, id)
}

// ListReturns returns return notes newest first.
func (s *SQLiteStore) ListReturns(ctx context.Context, limit int) ([]*models.Document, error) {
	return listDocuments(ctx, s.db, models.KindReturnNote, limit)
}

// DeleteReturn removes a return note. The updated bill goes with it.
func (s *SQLiteStore) DeleteReturn(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND kind = ?", id, string(models.KindReturnNote),
	)
	if err != nil {
		return fmt.Errorf("failed to delete return note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(models.KindReturnNote, id)
	}
	return nil
}

// GetUpdatedBill retrieves an updated bill by ID.
func (s *SQLiteStore) GetUpdatedBill(ctx context.Context, id string) (*models.Document, error) {
	return getDocument(ctx, s.db, models.KindUpdatedBill, id)
}

// ListUpdatedBills returns updated bills newest first.
func (s *SQLiteStore) ListUpdatedBills(ctx context.Context, limit int) ([]*models.Document, error) {
	return listDocuments(ctx, s.db, models.KindUpdatedBill, limit)
}

// GetDocument loads a document of any kind, resolving the kind from the id prefix.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	kind, err := docid.KindOf(id)
	if err != nil {
		return nil, err
	}
	return getDocument(ctx, s.db, kind, id)
}

func findReturnID(ctx context.Context, q queryer, invoiceID string) (string, bool, error) {
	var id string
	err := q.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE invoice_id = ? AND kind = ?",
		invoiceID, string(models.KindReturnNote),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to check return note: %w", err)
	}
	return id, true, nil
}

func duplicateReturn(invoiceID, returnID string) error {
	return ierr.NewErrorf("invoice %s already has return note %s", invoiceID, returnID).
		WithHintf("A return note (%s) already exists for invoice %s.", returnID, invoiceID).
		Mark(ierr.ErrDuplicateReturn)
}
