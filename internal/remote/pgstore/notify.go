package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/dbx"
	"github.com/jackc/pgx/v5"
)

// change is the NOTIFY payload. Only owners travel, which keeps payloads
// far below the NOTIFY size limit; subscriptions therefore can filter on the
// owner field only.
type change struct {
	Collection string `json:"c"`
	Before     string `json:"b,omitempty"`
	After      string `json:"a,omitempty"`
}

func (s *Store) publish(ctx context.Context, tx dbx.DBTX, collection, before, after string) error {
	payload, err := json.Marshal(change{Collection: collection, Before: before, After: after})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// localNotify signals subscribers directly while no listener is running.
func (s *Store) localNotify(collection string, before, after map[string]any) {
	if s.listening.Load() {
		return
	}
	s.hub.Notify(collection, before, after)
}

func (s *Store) dispatch(payload string) error {
	var c change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return err
	}
	var before, after map[string]any
	if c.Before != "" {
		before = map[string]any{common.OwnerField: c.Before}
	}
	if c.After != "" {
		after = map[string]any{common.OwnerField: c.After}
	}
	s.hub.Notify(c.Collection, before, after)
	return nil
}

// Listen holds a dedicated connection on the notify channel and feeds the
// subscription hub until ctx is cancelled. When the connection breaks every
// open subscription is closed, so clients notice and resubscribe.
func (s *Store) Listen(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("listen connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listening.Store(true)
	defer s.listening.Store(false)
	s.logger.Info(ctx, "listening for document changes", "channel", NotifyChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.hub.CloseAll()
			return fmt.Errorf("wait for notification: %w", err)
		}
		if err := s.dispatch(n.Payload); err != nil {
			s.logger.Warn(ctx, "bad change payload", "payload", n.Payload, "error", err)
		}
	}
}
