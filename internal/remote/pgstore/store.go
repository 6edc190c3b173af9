// Package pgstore is a remote.Store over a single PostgreSQL JSONB table.
//
// Documents are stored with their fields encoded by remote.EncodeFields.
// Writes publish a NOTIFY on the documents channel inside the writing
// transaction; Listen turns those notifications into subscription signals,
// so every server process sharing the database sees every change.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"github.com/dmitrijs2005/commissionsync/internal/remote/pgstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// NotifyChannel is the LISTEN/NOTIFY channel used for change signals.
const NotifyChannel = "documents"

var gooseUp = goose.UpContext

type Option func(*Store)

// WithClock overrides the clock used to resolve remote.ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	db        *sql.DB
	hub       *remote.Hub
	logger    logging.Logger
	now       func() time.Time
	listening atomic.Bool
}

var _ remote.Store = (*Store)(nil)

// Open connects with the pgx driver, checks the connection and migrates.
func Open(ctx context.Context, dsn string, logger logging.Logger, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, logger, opts...)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return s, nil
}

func New(db *sql.DB, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		hub:    remote.NewHub(),
		logger: logger.With("module", "pgstore"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUp(ctx, s.db, ".")
}

func (s *Store) Close() error {
	s.hub.CloseAll()
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return nil
}

func scanDocuments(rows *sql.Rows) ([]remote.Document, error) {
	defer rows.Close()

	var out []remote.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		out = append(out, remote.Document{ID: id, Data: data})
	}
	return out, rows.Err()
}

func decodeData(raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return remote.DecodeFields(data), nil
}

func encodeData(data map[string]any) ([]byte, error) {
	enc, err := remote.EncodeFields(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// Query uses JSONB containment for the filter, so a numeric filter matches
// numbers only and a timestamp filter matches its encoded form.
func (s *Store) Query(ctx context.Context, collection string, filter remote.Filter) ([]remote.Document, error) {
	if filter.Field == "" {
		rows, err := s.db.QueryContext(ctx,
			`SELECT doc_id, data FROM documents WHERE collection = $1 ORDER BY doc_id`, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", err)
		}
		return scanDocuments(rows)
	}

	cond, err := encodeData(map[string]any{filter.Field: filter.Value})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY doc_id`,
		collection, string(cond))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	return scanDocuments(rows)
}

// Get returns one document or remote.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, docID string) (remote.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`, collection, docID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Document{}, remote.ErrNotFound
	}
	if err != nil {
		return remote.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	data, err := decodeData(raw)
	if err != nil {
		return remote.Document{}, err
	}
	return remote.Document{ID: docID, Data: data}, nil
}

func owner(data map[string]any) string {
	o, _ := data[common.OwnerField].(string)
	return o
}

// SetFields reads the current document under a row lock, applies the write
// with remote.Merge and upserts the result.
func (s *Store) SetFields(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	if docID == "" {
		return remote.ErrInvalidArgument
	}

	var before, after map[string]any
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2 FOR UPDATE`,
			collection, docID).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to lock document: %w", err)
		default:
			if before, err = decodeData(raw); err != nil {
				return err
			}
		}

		after = remote.Merge(before, fields, merge, s.now())
		enc, err := encodeData(after)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, doc_id, owner_uid, data, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, now())
			ON CONFLICT (collection, doc_id)
			DO UPDATE SET owner_uid = EXCLUDED.owner_uid, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
			collection, docID, owner(after), string(enc)); err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
		return s.publish(ctx, tx, collection, owner(before), owner(after))
	})
	if err != nil {
		return err
	}

	s.localNotify(collection, before, after)
	return nil
}

// Delete removes the document. A missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	var prevOwner string
	deleted := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND doc_id = $2 RETURNING owner_uid`,
			collection, docID).Scan(&prevOwner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		deleted = true
		return s.publish(ctx, tx, collection, prevOwner, "")
	})
	if err != nil || !deleted {
		return err
	}

	s.localNotify(collection, map[string]any{common.OwnerField: prevOwner}, nil)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter remote.Filter) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hub.Add(collection, filter), nil
}

// Subscribers is the number of open subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.Len()
}
