package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/billdesk/internal/calculator"
	"github.com/mmynk/billdesk/internal/docid"
	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
)

const invoiceSequence = "invoice"

// NextInvoiceID returns the id the next invoice will receive.
func (s *SQLiteStore) NextInvoiceID(ctx context.Context) (string, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM sequences WHERE name = ?", invoiceSequence,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("failed to read invoice sequence: %w", err)
	}
	return docid.FormatInvoiceID(value + 1), nil
}

// CreateInvoice persists a new invoice with all its items.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, doc *models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if doc.ID == "" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE sequences SET value = value + 1 WHERE name = ?", invoiceSequence,
		); err != nil {
			return fmt.Errorf("failed to advance invoice sequence: %w", err)
		}
		var seq int64
		if err := tx.QueryRowContext(ctx,
			"SELECT value FROM sequences WHERE name = ?", invoiceSequence,
		).Scan(&seq); err != nil {
			return fmt.Errorf("failed to read invoice sequence: %w", err)
		}
		doc.ID = docid.FormatInvoiceID(seq)
	} else {
		seq, err := docid.Sequence(doc.ID)
		if err != nil {
			return err
		}
		// Keep the counter ahead of explicitly numbered invoices.
		if _, err := tx.ExecContext(ctx,
			"UPDATE sequences SET value = MAX(value, ?) WHERE name = ?", seq, invoiceSequence,
		); err != nil {
			return fmt.Errorf("failed to advance invoice sequence: %w", err)
		}
	}

	now := s.now()
	doc.Kind = models.KindInvoice
	doc.InvoiceID = ""
	doc.ReturnID = ""
	if doc.Date == "" {
		doc.Date = now.Format(models.DateLayout)
	}
	if doc.PaymentMode == "" {
		doc.PaymentMode = models.KindInvoice.PaymentMode()
	}
	doc.CreatedAt = now.Unix()
	doc.UpdatedAt = doc.CreatedAt
	if err := assignItemIDs(nil, doc.Items); err != nil {
		return err
	}

	if err := insertDocument(ctx, tx, doc); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("Invoice %s already exists.", doc.ID).
				Mark(ierr.ErrInvalidOperation)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateInvoice replaces an invoice's contents. The updated bill is rebuilt
// when the invoice already has a return note.
func (s *SQLiteStore) UpdateInvoice(ctx context.Context, doc *models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getDocument(ctx, tx, models.KindInvoice, doc.ID)
	if err != nil {
		return err
	}

	doc.Kind = models.KindInvoice
	doc.InvoiceID = ""
	doc.ReturnID = ""
	if doc.Date == "" {
		doc.Date = existing.Date
	}
	if doc.PaymentMode == "" {
		doc.PaymentMode = existing.PaymentMode
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = s.now().Unix()
	if err := assignItemIDs(existing.Items, doc.Items); err != nil {
		return err
	}

	if err := replaceDocument(ctx, tx, doc); err != nil {
		return err
	}

	returnID, found, err := findReturnID(ctx, tx, doc.ID)
	if err != nil {
		return err
	}
	if found {
		note, err := getDocument(ctx, tx, models.KindReturnNote, returnID)
		if err != nil {
			return err
		}
		if err := s.materializeUpdatedBill(ctx, tx, doc, note); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID, including all its items.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*models.Document, error) {
	return getDocument(ctx, s.db, models.KindInvoice, id)
}

// ListInvoices returns invoices newest first.
func (s *SQLiteStore) ListInvoices(ctx context.Context, limit int) ([]*models.Document, error) {
	return listDocuments(ctx, s.db, models.KindInvoice, limit)
}

// DeleteInvoice removes an invoice that has no return note.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	returnID, found, err := findReturnID(ctx, tx, id)
	if err != nil {
		return err
	}
	if found {
		return ierr.NewErrorf("invoice %s has return note %s", id, returnID).
			WithHintf("Delete return note %s before deleting invoice %s.", returnID, id).
			Mark(ierr.ErrInvalidOperation)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND kind = ?", id, string(models.KindInvoice),
	)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(models.KindInvoice, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// materializeUpdatedBill writes the updated bill of invoice after note,
// replacing any previous version and keeping its creation time.
func (s *SQLiteStore) materializeUpdatedBill(ctx context.Context, q queryer, invoice, note *models.Document) error {
	bill := calculator.UpdatedBill(invoice, note)
	id, err := docid.DeriveUpdatedBillID(invoice.ID)
	if err != nil {
		return err
	}
	bill.ID = id

	now := s.now().Unix()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	var createdAt int64
	err = q.QueryRowContext(ctx, "SELECT created_at FROM documents WHERE id = ?", id).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read updated bill: %w", err)
	default:
		bill.CreatedAt = createdAt
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to replace updated bill: %w", err)
	}
	return insertDocument(ctx, q, bill)
}
