// Package identity tells the sync engine who is signed in.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/commissionsync/internal/auth"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/metadata"
)

// Provider exposes the current identity. ok is false when nobody is signed in.
type Provider interface {
	CurrentUID() (uid string, ok bool)
}

// Static is a fixed identity. The empty string means signed out.
type Static string

func (s Static) CurrentUID() (string, bool) {
	return string(s), s != ""
}

// Session is the identity of the user holding an access token. The token is
// persisted in the local metadata table so a restart stays signed in.
type Session struct {
	mu    sync.RWMutex
	repo  metadata.Repository
	token string
	uid   string
	email string
}

func NewSession(repo metadata.Repository) *Session {
	return &Session{repo: repo}
}

func (s *Session) CurrentUID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid, s.uid != ""
}

// Token returns the raw access token, "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Email returns the e-mail claim of the token, if any.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Login adopts token as the current identity and persists it. The signature
// is not checked here; the server rejects tokens it did not issue.
func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return err
	}

	if err := s.repo.Set(ctx, metadata.KeyAccessToken, []byte(token)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.token, s.uid, s.email = token, claims.UID(), claims.Email
	s.mu.Unlock()
	return nil
}

// Restore loads a previously persisted token. It reports whether a usable one
// was found; an unreadable token is dropped.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	token, err := metadata.GetString(ctx, s.repo, metadata.KeyAccessToken)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return false, s.repo.Delete(ctx, metadata.KeyAccessToken)
	}

	s.mu.Lock()
	s.token, s.uid, s.email = token, claims.UID(), claims.Email
	s.mu.Unlock()
	return true, nil
}

// Logout forgets the identity and the persisted token.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token, s.uid, s.email = "", "", ""
	s.mu.Unlock()

	return s.repo.Delete(ctx, metadata.KeyAccessToken)
}
