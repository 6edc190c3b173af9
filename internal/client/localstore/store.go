// Package localstore is the always-writable local store of the sync engine.
//
// Mutations are staged in a pending changeset and become durable only when
// Save commits them in one SQLite transaction. Reads see staged changes, so a
// record that was just touched reads back immediately even before it is
// saved.
//
// A Store has a single writer. Write and Read hold the store lock for the
// duration of the callback; callers must not call back into the Store from
// inside it.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/commissionsync/internal/client/migrations"
	"github.com/dmitrijs2005/commissionsync/internal/client/models"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/commissionsync/internal/logging"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database and the pending changeset.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	pending *changeset
	logger  logging.Logger
	// saves counts successful commits that wrote at least one change.
	saves int
}

// Open opens (creating if needed) the SQLite database at path and migrates it.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger logging.Logger) *Store {
	return &Store{
		db:      db,
		pending: newChangeset(),
		logger:  logger.With("module", "localstore"),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Metadata exposes the key/value table. It bypasses the changeset and writes
// immediately.
func (s *Store) Metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// Write runs fn with exclusive access to the store. Changes staged by fn stay
// pending until a Save, whether or not fn returns an error.
func (s *Store) Write(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &Tx{s: s})
}

// Atomic is Write for all-or-nothing batches: when fn fails, everything it
// staged is dropped and the changes staged before the call are restored.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.pending.clone()
	if err := fn(ctx, &Tx{s: s}); err != nil {
		s.pending = before
		return err
	}
	return nil
}

// Read is Write for callers that only look.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return s.Write(ctx, fn)
}

// Save commits pending changes.
func (s *Store) Save(ctx context.Context) error {
	return s.Write(ctx, func(ctx context.Context, tx *Tx) error { return tx.Save(ctx) })
}

// HasChanges reports whether anything is staged.
func (s *Store) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pending.empty()
}

// SaveCount returns the number of commits that wrote changes.
func (s *Store) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Project(ctx context.Context, id string) (p *models.Project, err error) {
	err = s.Read(ctx, func(ctx context.Context, tx *Tx) error {
		p, err = tx.Project(ctx, id)
		return err
	})
	return p, err
}

func (s *Store) Projects(ctx context.Context) (list []*models.Project, err error) {
	err = s.Read(ctx, func(ctx context.Context, tx *Tx) error {
		list, err = tx.Projects(ctx)
		return err
	})
	return list, err
}

func (s *Store) Fixture(ctx context.Context, id string) (f *models.Fixture, err error) {
	err = s.Read(ctx, func(ctx context.Context, tx *Tx) error {
		f, err = tx.Fixture(ctx, id)
		return err
	})
	return f, err
}

func (s *Store) Fixtures(ctx context.Context, projectID string) (list []*models.Fixture, err error) {
	err = s.Read(ctx, func(ctx context.Context, tx *Tx) error {
		list, err = tx.Fixtures(ctx, projectID)
		return err
	})
	return list, err
}

func (s *Store) Organizations(ctx context.Context) (list []*models.Organization, err error) {
	err = s.Read(ctx, func(ctx context.Context, tx *Tx) error {
		list, err = tx.Organizations(ctx)
		return err
	})
	return list, err
}
