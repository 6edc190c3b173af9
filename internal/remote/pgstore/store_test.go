package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

var fixedNow = time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return New(db, nopLogger{}, WithClock(func() time.Time { return fixedNow })), mock, db
}

const (
	lockQuery   = `SELECT data FROM documents WHERE collection = \$1 AND doc_id = \$2 FOR UPDATE`
	upsertQuery = `INSERT INTO documents \(collection, doc_id, owner_uid, data, updated_at\).*ON CONFLICT \(collection, doc_id\).*DO UPDATE SET`
	notifyQuery = `SELECT pg_notify\(\$1, \$2\)`
	deleteQuery = `DELETE FROM documents WHERE collection = \$1 AND doc_id = \$2 RETURNING owner_uid`
)

func TestQuery_WithFilter(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"doc_id", "data"}).
		AddRow("p1", []byte(`{"ownerUid":"u1","n":3,"updatedAt":{"$ts":"2025-09-05T12:00:00Z"}}`)).
		AddRow("p2", []byte(`{"ownerUid":"u1","title":"B"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc_id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY doc_id`)).
		WithArgs("projects", `{"ownerUid":"u1"}`).
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), "projects", remote.Where("ownerUid", "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0].ID)

	n, ok := remote.IntField(docs[0].Data, "n")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, fixedNow, docs[0].Data["updatedAt"])
	assert.Equal(t, "B", docs[1].Data["title"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_NoFilter(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doc_id, data FROM documents WHERE collection = $1 ORDER BY doc_id`)).
		WithArgs("orgs").
		WillReturnRows(sqlmock.NewRows([]string{"doc_id", "data"}))

	docs, err := s.Query(context.Background(), "orgs", remote.Filter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT doc_id, data FROM documents`).WillReturnError(errors.New("boom"))

	_, err := s.Query(context.Background(), "projects", remote.Where("ownerUid", "u1"))
	require.Error(t, err)
}

func TestSetFields_InsertNew(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	sub, err := s.Subscribe(context.Background(), "projects", remote.Where("ownerUid", "u1"))
	require.NoError(t, err)
	<-sub.Changes()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("projects", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectExec(upsertQuery).
		WithArgs("projects", "p1", "u1", `{"ownerUid":"u1","title":"A","updatedAt":{"$ts":"2025-09-05T12:00:00Z"}}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(notifyQuery).WithArgs("documents", `{"c":"projects","a":"u1"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = s.SetFields(context.Background(), "projects", "p1", map[string]any{
		"ownerUid":  "u1",
		"title":     "A",
		"updatedAt": remote.ServerTimestamp,
		"gone":      remote.DeleteField,
	}, true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	select {
	case <-sub.Changes():
	default:
		t.Fatal("subscriber was not signalled")
	}
}

func TestSetFields_MergesExisting(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs("fixtures", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"ownerUid":"u1","label":"old","room":"Hall"}`)))
	mock.ExpectExec(upsertQuery).
		WithArgs("fixtures", "f1", "u1", `{"label":"new","ownerUid":"u1","shortAddress":3}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(notifyQuery).WithArgs("documents", `{"c":"fixtures","b":"u1","a":"u1"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.SetFields(context.Background(), "fixtures", "f1", map[string]any{
		"label":        "new",
		"shortAddress": 3,
		"room":         remote.DeleteField,
	}, true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFields_RollsBackOnError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectExec(upsertQuery).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SetFields(context.Background(), "projects", "p1", map[string]any{"ownerUid": "u1"}, true)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFields_RejectsEmptyID(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	err := s.SetFields(context.Background(), "projects", "", map[string]any{}, true)
	require.ErrorIs(t, err, remote.ErrInvalidArgument)
}

func TestSetFields_RejectsUnsupportedValue(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectRollback()

	err := s.SetFields(context.Background(), "projects", "p1", map[string]any{"ch": make(chan int)}, true)
	require.ErrorIs(t, err, remote.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_Existing(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(deleteQuery).WithArgs("fixtures", "f1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_uid"}).AddRow("u1"))
	mock.ExpectExec(notifyQuery).WithArgs("documents", `{"c":"fixtures","b":"u1"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.Delete(context.Background(), "fixtures", "f1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_MissingIsNotAnError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(deleteQuery).WithArgs("fixtures", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"owner_uid"}))
	mock.ExpectCommit()

	require.NoError(t, s.Delete(context.Background(), "fixtures", "nope"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := regexp.QuoteMeta(`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`)
	mock.ExpectQuery(q).WithArgs("orgs", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"name":"Acme"}`)))
	mock.ExpectQuery(q).WithArgs("orgs", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	doc, err := s.Get(context.Background(), "orgs", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", doc.Data["name"])

	_, err = s.Get(context.Background(), "orgs", "u2")
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	s := New(db, nopLogger{})

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorIs(t, s.Ping(context.Background()), remote.ErrUnavailable)
}

func TestRunMigrations_UsesEmbeddedFS(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, s.RunMigrations(context.Background()))
	assert.Equal(t, ".", gotDir)
}

func TestDispatch(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	mine, _ := s.Subscribe(context.Background(), "fixtures", remote.Where("ownerUid", "u1"))
	theirs, _ := s.Subscribe(context.Background(), "fixtures", remote.Where("ownerUid", "u2"))
	<-mine.Changes()
	<-theirs.Changes()

	require.NoError(t, s.dispatch(`{"c":"fixtures","b":"u1"}`))
	require.Error(t, s.dispatch(`not json`))

	select {
	case <-mine.Changes():
	default:
		t.Fatal("owner was not signalled")
	}
	select {
	case <-theirs.Changes():
		t.Fatal("other owner was signalled")
	default:
	}
	assert.Equal(t, 2, s.Subscribers())
}
