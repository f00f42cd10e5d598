package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLStore{db: db, driver: "sqlite3"}, mock
}

func TestSQLStoreRecord(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO run_history").
		WithArgs("$[0]", "$", true, "", "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.Record(context.Background(), RunRecord{
		Source:   "$[0]",
		Selector: "$",
		Success:  true,
		Output:   []string{"hello"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreList(t *testing.T) {
	store, mock := newTestStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "source", "selector", "success", "error", "output", "created_at"}).
		AddRow(int64(2), "$", "$", true, "", "a\nb", now).
		AddRow(int64(1), "$", "$", false, "boom", "", now)

	mock.ExpectQuery("SELECT id, source, selector, success, error, output, created_at").
		WithArgs(10).
		WillReturnRows(rows)

	recs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, []string{"a", "b"}, recs[0].Output)
	require.False(t, recs[1].Success)
	require.NoError(t, mock.ExpectationsWereMet())
}
