/*
Package sqlite provides a SQLite-backed document store.

PURPOSE:
  Alternative backend for deployments that prefer a single database file
  over a directory of JSON documents. The logical layout is identical:
  four named documents, each stored as a JSON body in a documents table.

SCHEMA:
  documents(name TEXT PRIMARY KEY, body TEXT NOT NULL, updated_at TEXT)

  One row per document. Save replaces the row; load of a missing row
  yields the empty default, matching the Store contract.

WAL MODE:
  Opened with WAL so reads don't block the single writer and crash
  recovery is cheap.

CONCURRENCY:
  sync.RWMutex on top of database/sql. The ledger serializes its own
  read-modify-write cycles; the mutex here only keeps individual document
  reads and writes coherent.

SEE ALSO:
  - store/store.go: interface contract
  - store/jsonfile: file-per-document backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/storefront/store"
)

// Store implements store.Store on a single SQLite database.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name       TEXT PRIMARY KEY,
		body       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GENERIC LOAD / SAVE
// =============================================================================

func (s *Store) load(ctx context.Context, doc string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE name = ?`, doc).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // empty default
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", doc, err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode %s: %w", doc, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, doc string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		doc, string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %s: %w", doc, err)
	}
	return nil
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (s *Store) LoadUsers(ctx context.Context) (store.Users, error) {
	users := store.Users{}
	if err := s.load(ctx, store.DocUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SaveUsers(ctx context.Context, users store.Users) error {
	return s.save(ctx, store.DocUsers, users)
}

func (s *Store) LoadProducts(ctx context.Context) (store.Products, error) {
	products := store.Products{}
	if err := s.load(ctx, store.DocProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) SaveProducts(ctx context.Context, products store.Products) error {
	return s.save(ctx, store.DocProducts, products)
}

func (s *Store) LoadSales(ctx context.Context) (store.Sales, error) {
	sales := store.Sales{}
	if err := s.load(ctx, store.DocSales, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SaveSales(ctx context.Context, sales store.Sales) error {
	return s.save(ctx, store.DocSales, sales)
}

func (s *Store) LoadRecharges(ctx context.Context) (store.Recharges, error) {
	recharges := store.Recharges{}
	if err := s.load(ctx, store.DocRecharges, &recharges); err != nil {
		return nil, err
	}
	return recharges, nil
}

func (s *Store) SaveRecharges(ctx context.Context, recharges store.Recharges) error {
	return s.save(ctx, store.DocRecharges, recharges)
}
