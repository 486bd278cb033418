/*
Package jsonfile persists the storefront documents as JSON files.

PURPOSE:
  The production-default backend: one pretty-printed UTF-8 JSON file per
  document under a data directory (users.json, products.json, sales.json,
  recharge_requests.json). Matches the on-disk layout operators already
  inspect and edit by hand.

DURABILITY:
  Writes go to a temp file in the same directory and are renamed into
  place, so a crash mid-write leaves the previous version intact. Before
  each overwrite the old file is copied to a timestamped .backup_ sibling;
  only the most recent backups are retained.

MISSING FILES:
  A missing or empty file loads as an empty document. First run against an
  empty directory is valid.

CONCURRENCY:
  A single RWMutex guards all file access. Multi-process access is out of
  scope (single-writer deployment).

SEE ALSO:
  - store/store.go: interface contract
  - store/sqlite: alternative backend with the same logical layout
*/
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/storefront/store"
)

const backupKeep = 5

// Store persists each document as <dataDir>/<name>.json.
type Store struct {
	mu      sync.RWMutex
	dataDir string
}

// New creates the data directory if needed and returns a file-backed store.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) path(doc string) string {
	return filepath.Join(s.dataDir, doc+".json")
}

// =============================================================================
// GENERIC LOAD / SAVE
// =============================================================================

func (s *Store) load(doc string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(doc))
	if os.IsNotExist(err) {
		return nil // empty default
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", doc, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", doc, err)
	}
	return nil
}

func (s *Store) save(doc string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc, err)
	}

	target := s.path(doc)
	s.backup(target)

	tmp, err := os.CreateTemp(s.dataDir, doc+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", doc, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", doc, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", doc, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", doc, err)
	}
	return nil
}

// backup copies the current file aside and prunes old copies. Best effort:
// a failed backup never blocks the save.
func (s *Store) backup(target string) {
	src, err := os.Open(target)
	if err != nil {
		return
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup_%s", target, time.Now().Format("20060102_150405"))
	dst, err := os.Create(name)
	if err != nil {
		return
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(name)
		return
	}
	s.pruneBackups(target)
}

func (s *Store) pruneBackups(target string) {
	matches, err := filepath.Glob(target + ".backup_*")
	if err != nil || len(matches) <= backupKeep {
		return
	}
	// Timestamp suffix sorts lexicographically; oldest first.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-backupKeep] {
		if strings.HasPrefix(filepath.Base(old), filepath.Base(target)+".backup_") {
			os.Remove(old)
		}
	}
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (s *Store) LoadUsers(_ context.Context) (store.Users, error) {
	users := store.Users{}
	if err := s.load(store.DocUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SaveUsers(_ context.Context, users store.Users) error {
	return s.save(store.DocUsers, users)
}

func (s *Store) LoadProducts(_ context.Context) (store.Products, error) {
	products := store.Products{}
	if err := s.load(store.DocProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) SaveProducts(_ context.Context, products store.Products) error {
	return s.save(store.DocProducts, products)
}

func (s *Store) LoadSales(_ context.Context) (store.Sales, error) {
	sales := store.Sales{}
	if err := s.load(store.DocSales, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SaveSales(_ context.Context, sales store.Sales) error {
	return s.save(store.DocSales, sales)
}

func (s *Store) LoadRecharges(_ context.Context) (store.Recharges, error) {
	recharges := store.Recharges{}
	if err := s.load(store.DocRecharges, &recharges); err != nil {
		return nil, err
	}
	return recharges, nil
}

func (s *Store) SaveRecharges(_ context.Context, recharges store.Recharges) error {
	return s.save(store.DocRecharges, recharges)
}
