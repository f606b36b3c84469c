package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
//
// All three document kinds live in documents. At most one return note and
// one updated bill may exist per invoice; the partial unique indexes back
// the duplicate-return guard. Deleting a return note cascades to the
// updated bill derived from it.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('invoice', 'return_note', 'updated_bill')),
    invoice_id TEXT,
    return_id TEXT,
    doc_date TEXT NOT NULL,
    client_name TEXT NOT NULL DEFAULT '',
    client_mobile TEXT NOT NULL DEFAULT '',
    client_address TEXT NOT NULL DEFAULT '',
    payment_mode TEXT NOT NULL DEFAULT '',
    subtotal TEXT NOT NULL,
    round_off TEXT NOT NULL,
    net_amount TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (invoice_id) REFERENCES documents(id),
    FOREIGN KEY (return_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS document_items (
    document_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_id TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    quantity TEXT NOT NULL,
    rate TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (document_id, position),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sequences (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    category TEXT NOT NULL,
    name TEXT NOT NULL,
    price TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (category, name)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_one_return_per_invoice
    ON documents(invoice_id) WHERE kind = 'return_note';
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_one_updated_per_invoice
    ON documents(invoice_id) WHERE kind = 'updated_bill';
CREATE INDEX IF NOT EXISTS idx_documents_kind_created ON documents(kind, created_at);
CREATE INDEX IF NOT EXISTS idx_document_items_document_id ON document_items(document_id);

INSERT OR IGNORE INTO sequences (name, value) VALUES ('invoice', 0);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
