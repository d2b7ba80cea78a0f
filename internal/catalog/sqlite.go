// Package catalog is a SQLite-backed product catalog. It feeds the product
// index, answers eligibility lookups, and persists the invalidation buster
// so separate processes observe each other's mutations.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/catalogsearch/internal/cache"
	"github.com/Aman-CERP/catalogsearch/internal/corpus"
	"github.com/Aman-CERP/catalogsearch/internal/errors"
)

// busterKey is the state row holding the invalidation counter.
const busterKey = "catalog:buster"

// Store is a product catalog in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ corpus.ProductSource     = (*Store)(nil)
	_ corpus.EligibilitySource = (*Store)(nil)
	_ cache.Buster             = (*Store)(nil)
)

// Open opens (creating if needed) the catalog at path. An empty path opens
// a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Single connection: writers never contend and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id          INTEGER PRIMARY KEY,
		slug        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		is_active   INTEGER NOT NULL DEFAULT 1,
		stock       INTEGER NOT NULL DEFAULT 0,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListProducts implements corpus.ProductSource. Products come back in id order.
func (s *Store) ListProducts(ctx context.Context) ([]corpus.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, description, category, is_active, stock
		FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "list products", err)
	}
	defer rows.Close()

	var out []corpus.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "list products", err)
	}
	return out, nil
}

// Eligibility implements corpus.EligibilitySource.
func (s *Store) Eligibility(ctx context.Context, ids []int64) (map[int64]corpus.ProductState, error) {
	out := make(map[int64]corpus.ProductState, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	// Chunked to stay under SQLite's bound-parameter limit.
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT id, category, is_active, stock FROM products WHERE id IN (` +
			strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + `)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "query eligibility", err)
		}
		for rows.Next() {
			var (
				id       int64
				category string
				active   bool
				stock    int
			)
			if err := rows.Scan(&id, &category, &active, &stock); err != nil {
				rows.Close()
				return nil, errors.New(errors.ErrCodeCatalogUnavailable, "scan eligibility", err)
			}
			out[id] = corpus.ProductState{Eligible: active && stock > 0, Category: category}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "query eligibility", err)
		}
	}
	return out, nil
}

// Get returns a product by id.
func (s *Store) Get(ctx context.Context, id int64) (*corpus.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, category, is_active, stock
		FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeProductNotFound, fmt.Sprintf("product %d not found", id), err)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "get product", err)
	}
	return &p, nil
}

// IDsBySlug resolves slugs to product ids. Unknown slugs are omitted.
func (s *Store) IDsBySlug(ctx context.Context, slugs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(slugs))
	stmt, err := s.db.PrepareContext(ctx, `SELECT id FROM products WHERE slug = ?`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCatalogUnavailable, "prepare slug lookup", err)
	}
	defer stmt.Close()

	for _, slug := range slugs {
		var id int64
		err := stmt.QueryRowContext(ctx, slug).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, errors.New(errors.ErrCodeCatalogUnavailable, "lookup slug", err)
		}
		out[slug] = id
	}
	return out, nil
}

// Upsert inserts or replaces products and bumps the buster once.
// Products with a zero id get one assigned.
func (s *Store) Upsert(ctx context.Context, products ...corpus.Product) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			return errors.ValidationError("product name is required", nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := s.now().UTC().Format(time.RFC3339)
	for _, p := range products {
		var id any
		if p.ID != 0 {
			id = p.ID
		}
		slug := p.Slug
		if slug == "" {
			slug = Slugify(p.Name)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, slug, name, description, category, is_active, stock, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				slug = excluded.slug,
				name = excluded.name,
				description = excluded.description,
				category = excluded.category,
				is_active = excluded.is_active,
				stock = excluded.stock,
				updated_at = excluded.updated_at`,
			id, slug, p.Name, p.Description, p.Category, p.IsActive, p.Stock, stamp)
		if err != nil {
			return errors.New(errors.ErrCodeCatalogUnavailable, fmt.Sprintf("upsert product %q", p.Name), err)
		}
	}
	if err := s.bumpTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "commit upsert", err)
	}

	slog.Info("catalog_upsert", slog.Int("count", len(products)))
	return nil
}

// Delete removes a product and bumps the buster.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "delete product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeProductNotFound, fmt.Sprintf("product %d not found", id), nil)
	}
	if err := s.bumpTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "commit delete", err)
	}

	slog.Info("catalog_delete", slog.Int64("id", id))
	return nil
}

// Bump implements cache.Buster.
func (s *Store) Bump(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "begin buster bump", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.bumpTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "commit buster bump", err)
	}
	return nil
}

// Value implements cache.Buster.
func (s *Store) Value(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, busterKey).Scan(&v)
	if err == sql.ErrNoRows {
		return cache.DefaultBuster, nil
	}
	if err != nil {
		return "", errors.New(errors.ErrCodeCatalogUnavailable, "read buster", err)
	}
	return v, nil
}

func (s *Store) bumpTx(ctx context.Context, tx *sql.Tx) error {
	prev := cache.DefaultBuster
	err := tx.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, busterKey).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return errors.New(errors.ErrCodeCatalogUnavailable, "read buster", err)
	}

	next := cache.NextBuster(prev, s.now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, busterKey, next); err != nil {
		return errors.New(errors.ErrCodeCatalogUnavailable, "write buster", err)
	}
	slog.Debug("buster_bumped", slog.String("value", next))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (corpus.Product, error) {
	var p corpus.Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Category, &p.IsActive, &p.Stock)
	return p, err
}
