package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

// CatalogRepository issues the two read-only lookups of the cascade.
// The catalog itself is populated out of band; this process never
// writes to it.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS identifier_entries (
	drug_code TEXT NOT NULL,
	name TEXT NOT NULL,
	image_key TEXT,
	material TEXT,
	class_code TEXT,
	appearance TEXT
);

CREATE INDEX IF NOT EXISTS idx_identifier_entries_drug_code ON identifier_entries(drug_code);

CREATE TABLE IF NOT EXISTS catalog_entries (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	company TEXT,
	category TEXT,
	appearance TEXT,
	ingredients TEXT,
	efficacy TEXT,
	dosage TEXT,
	precautions TEXT,
	storage TEXT,
	expiry TEXT,
	image_key TEXT,
	mark_front TEXT,
	mark_back TEXT,
	color_front TEXT,
	color_back TEXT,
	shape TEXT,
	score_line_front TEXT,
	score_line_back TEXT,
	size_long TEXT,
	size_short TEXT,
	size_thick TEXT,
	form_code_name TEXT
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_display_name ON catalog_entries(display_name);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// LookupIdentifiers fuzzy-matches a predicted tag against the compact
// identifier table.
func (r *CatalogRepository) LookupIdentifiers(ctx context.Context, tag string) ([]domain.IdentifierEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, COALESCE(image_key, ''), COALESCE(material, ''), COALESCE(class_code, ''), COALESCE(appearance, '')
FROM identifier_entries
WHERE drug_code ILIKE '%' || $1 || '%'
`, tag)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLookup, "query identifier entries", err)
	}
	defer rows.Close()

	var entries []domain.IdentifierEntry
	for rows.Next() {
		var e domain.IdentifierEntry
		if err := rows.Scan(&e.Name, &e.ImageKey, &e.Material, &e.ClassCode, &e.Appearance); err != nil {
			return nil, domain.WrapError(domain.ErrLookup, "scan identifier entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrLookup, "iterate identifier entries", err)
	}
	return entries, nil
}

// LookupCatalog fuzzy-matches a normalized product name against the
// full catalog table. Only the columns feeding the published candidate
// record are selected; the remaining columns serve the read API that
// shares this database.
func (r *CatalogRepository) LookupCatalog(ctx context.Context, name string) ([]domain.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, display_name, COALESCE(company, ''), COALESCE(appearance, ''), COALESCE(form_code_name, ''), COALESCE(image_key, '')
FROM catalog_entries
WHERE display_name ILIKE '%' || $1 || '%'
`, name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLookup, "query catalog entries", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var e domain.CatalogEntry
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.Company, &e.Appearance, &e.FormCodeName, &e.ImageKey); err != nil {
			return nil, domain.WrapError(domain.ErrLookup, "scan catalog entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrLookup, "iterate catalog entries", err)
	}
	return entries, nil
}
