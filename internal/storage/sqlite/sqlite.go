// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas are applied per connection by the driver.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time keeps sequence issuance and the return guard serial.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const documentColumns = `id, kind, invoice_id, return_id, doc_date, client_name, client_mobile,
	client_address, payment_mode, subtotal, round_off, net_amount, created_at, updated_at`

// insertDocument writes the document row and its items.
func insertDocument(ctx context.Context, q queryer, doc *models.Document) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, string(doc.Kind), nullable(doc.InvoiceID), nullable(doc.ReturnID), doc.Date,
		doc.Client.Name, doc.Client.Mobile, doc.Client.Address, doc.PaymentMode,
		doc.Totals.Subtotal, doc.Totals.RoundOff, doc.Totals.NetAmount,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", doc.Kind, doc.ID, err)
	}
	return insertItems(ctx, q, doc.ID, doc.Items)
}

// replaceDocument rewrites the mutable columns and the items of a document.
func replaceDocument(ctx context.Context, q queryer, doc *models.Document) error {
	res, err := q.ExecContext(ctx,
		`UPDATE documents SET doc_date = ?, client_name = ?, client_mobile = ?, client_address = ?,
		 payment_mode = ?, subtotal = ?, round_off = ?, net_amount = ?, updated_at = ?
		 WHERE id = ? AND kind = ?`,
		doc.Date, doc.Client.Name, doc.Client.Mobile, doc.Client.Address, doc.PaymentMode,
		doc.Totals.Subtotal, doc.Totals.RoundOff, doc.Totals.NetAmount, doc.UpdatedAt,
		doc.ID, string(doc.Kind),
	)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", doc.Kind, doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(doc.Kind, doc.ID)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM document_items WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to clear items of %s: %w", doc.ID, err)
	}
	return insertItems(ctx, q, doc.ID, doc.Items)
}

func insertItems(ctx context.Context, q queryer, documentID string, items []models.LineItem) error {
	for i, item := range items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO document_items (document_id, position, item_id, category, description, quantity, rate, unit)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			documentID, i, item.ID, item.Category, strings.TrimSpace(item.Description),
			item.Quantity, item.Rate, item.Unit,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

// assignItemIDs gives the invoice items their ledger ids. An item keeps an
// id only when it names a stored item; an item without one takes the id of
// the first unclaimed stored item with the same description. Everything
// else gets a fresh id. Repeated ids are rejected.
func assignItemIDs(stored, items []models.LineItem) error {
	known := lo.SliceToMap(stored, func(it models.LineItem) (string, bool) { return it.ID, true })
	claimed := make(map[string]bool, len(items))
	for i := range items {
		id := items[i].ID
		if id == "" {
			continue
		}
		if claimed[id] {
			return ierr.NewErrorf("item id %q repeated", id).
				WithHintf("%q appears more than once on the bill.", strings.TrimSpace(items[i].Description)).
				Mark(ierr.ErrInvalidItem, ierr.ErrValidation)
		}
		claimed[id] = true
		if !known[id] {
			items[i].ID = ""
		}
	}

	for i := range items {
		if items[i].ID != "" {
			continue
		}
		desc := strings.TrimSpace(items[i].Description)
		match, ok := lo.Find(stored, func(it models.LineItem) bool {
			return it.ID != "" && !claimed[it.ID] && strings.TrimSpace(it.Description) == desc
		})
		if ok {
			items[i].ID = match.ID
		} else {
			items[i].ID = uuid.New().String()
		}
		claimed[items[i].ID] = true
	}
	return nil
}

// getDocument loads one document of the given kind, items included.
func getDocument(ctx context.Context, q queryer, kind models.Kind, id string) (*models.Document, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ? AND kind = ?",
		id, string(kind),
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}

	items, err := loadItems(ctx, q, []string{doc.ID})
	if err != nil {
		return nil, err
	}
	doc.Items = items[doc.ID]
	return doc, nil
}

// listDocuments loads documents of a kind, newest first.
func listDocuments(ctx context.Context, q queryer, kind models.Kind, limit int) ([]*models.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE kind = ? ORDER BY created_at DESC, id DESC"
	args := []any{string(kind)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", kind, err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	rows.Close()

	if len(docs) == 0 {
		return docs, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.Items = items[d.ID]
	}
	return docs, nil
}

// loadItems returns the items of each document, in stored order.
func loadItems(ctx context.Context, q queryer, documentIDs []string) (map[string][]models.LineItem, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")
	args := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT document_id, item_id, category, description, quantity, rate, unit
		 FROM document_items WHERE document_id IN (`+placeholders+`)
		 ORDER BY document_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]models.LineItem, len(documentIDs))
	for rows.Next() {
		var docID string
		var item models.LineItem
		if err := rows.Scan(&docID, &item.ID, &item.Category, &item.Description,
			&item.Quantity, &item.Rate, &item.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items[docID] = append(items[docID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc                 models.Document
		kind                string
		invoiceID, returnID sql.NullString
	)
	err := row.Scan(&doc.ID, &kind, &invoiceID, &returnID, &doc.Date,
		&doc.Client.Name, &doc.Client.Mobile, &doc.Client.Address, &doc.PaymentMode,
		&doc.Totals.Subtotal, &doc.Totals.RoundOff, &doc.Totals.NetAmount,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Kind = models.Kind(kind)
	doc.InvoiceID = invoiceID.String
	doc.ReturnID = returnID.String
	return &doc, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func notFound(kind models.Kind, id string) error {
	return ierr.NewErrorf("%s %s not found", kind, id).
		WithHintf("%s %s was not found.", kind.Label(), id).
		Mark(ierr.ErrDocumentNotFound)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
