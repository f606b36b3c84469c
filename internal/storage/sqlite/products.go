package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/billdesk/internal/models"
)

// ListProducts returns the catalog ordered by category and name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, name, price, unit FROM products ORDER BY category, name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.Category, &p.Name, &p.Price, &p.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// UpsertProducts records the latest rate and unit of each active item.
func (s *SQLiteStore) UpsertProducts(ctx context.Context, items []models.LineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	for _, item := range models.ActiveItems(items) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (category, name, price, unit, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (category, name) DO UPDATE SET
			     price = excluded.price, unit = excluded.unit, updated_at = excluded.updated_at`,
			strings.TrimSpace(item.Category), strings.TrimSpace(item.Description),
			item.Rate, item.Unit, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert product %q: %w", item.Description, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
