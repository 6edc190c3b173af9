package identity

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/auth"
	"github.com/dmitrijs2005/commissionsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMeta struct {
	data map[string][]byte
}

func newMemMeta() *memMeta { return &memMeta{data: map[string][]byte{}} }

func (m *memMeta) Get(_ context.Context, key string) ([]byte, error) { return m.data[key], nil }
func (m *memMeta) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}
func (m *memMeta) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}
func (m *memMeta) List(context.Context) (map[string][]byte, error) { return m.data, nil }
func (m *memMeta) Clear(context.Context) error {
	m.data = map[string][]byte{}
	return nil
}

var _ metadata.Repository = (*memMeta)(nil)

func token(t *testing.T, uid, email string) string {
	t.Helper()
	tok, err := auth.GenerateToken(uid, email, []byte("k"), time.Hour)
	require.NoError(t, err)
	return tok
}

func TestStatic(t *testing.T) {
	uid, ok := Static("u1").CurrentUID()
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)

	_, ok = Static("").CurrentUID()
	assert.False(t, ok)
}

func TestSession_LoginRestoreLogout(t *testing.T) {
	ctx := context.Background()
	meta := newMemMeta()

	s := NewSession(meta)
	_, ok := s.CurrentUID()
	assert.False(t, ok)

	tok := token(t, "u42", "ann@example.com")
	require.NoError(t, s.Login(ctx, tok+"\n"))

	uid, ok := s.CurrentUID()
	require.True(t, ok)
	assert.Equal(t, "u42", uid)
	assert.Equal(t, "ann@example.com", s.Email())
	assert.Equal(t, tok, s.Token())
	assert.Equal(t, tok, string(meta.data[metadata.KeyAccessToken]))

	restored := NewSession(meta)
	found, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, found)
	uid, _ = restored.CurrentUID()
	assert.Equal(t, "u42", uid)

	require.NoError(t, restored.Logout(ctx))
	_, ok = restored.CurrentUID()
	assert.False(t, ok)
	assert.Empty(t, restored.Token())
	assert.NotContains(t, meta.data, metadata.KeyAccessToken)
}

func TestSession_LoginRejectsGarbage(t *testing.T) {
	meta := newMemMeta()
	s := NewSession(meta)

	err := s.Login(context.Background(), "not-a-token")
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Empty(t, meta.data)
}

func TestSession_RestoreDropsUnreadableToken(t *testing.T) {
	ctx := context.Background()
	meta := newMemMeta()
	meta.data[metadata.KeyAccessToken] = []byte("junk")

	s := NewSession(meta)
	found, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NotContains(t, meta.data, metadata.KeyAccessToken)

	found, err = s.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
