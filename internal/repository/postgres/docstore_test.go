package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/repository"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestDocStore_Save_AssignsRef(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.InventoryItem](db, repository.KindItems)
	ctx := context.Background()
	it := model.InventoryItem{ID: uuid.Must(uuid.NewV4()), SKU: "SKU-1", Name: "bolt", Quantity: 3}

	mock.ExpectQuery(`INSERT INTO documents \(kind, key, body, updated_at\) VALUES \(\$1, \$2, \$3, now\(\)\) ON CONFLICT \(kind, key\)`).
		WithArgs(repository.KindItems, it.ID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	saved, err := s.Save(ctx, it)
	require.NoError(t, err)
	require.Equal(t, int64(7), saved.Ref())
	require.Equal(t, it.ID, saved.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_Save_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.Account](db, repository.KindAccounts)
	a := model.Account{ID: uuid.Must(uuid.NewV4()), Email: "a@b.c"}

	mock.ExpectQuery(`INSERT INTO documents`).
		WithArgs(repository.KindAccounts, a.ID, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.Save(context.Background(), a)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestDocStore_FindByKey(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.Device](db, repository.KindDevices)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 AND key=\$2`).
		WithArgs(repository.KindDevices, id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "body"}).
			AddRow(int64(3), []byte(`{"id":"`+id.String()+`","serial":"S-1","model":"M","active":true}`)))
	d, err := s.FindByKey(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(3), d.Ref())
	require.Equal(t, "S-1", d.Serial)
	require.True(t, d.Active)

	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 AND key=\$2`).
		WithArgs(repository.KindDevices, id).
		WillReturnError(pgx.ErrNoRows)
	_, err = s.FindByKey(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDocStore_FindByRef_DecodeAndDriverErrors(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.Shift](db, repository.KindShifts)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 AND id=\$2`).
		WithArgs(repository.KindShifts, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "body"}).AddRow(int64(9), []byte(`{not json`)))
	_, err := s.FindByRef(ctx, 9)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 AND id=\$2`).
		WithArgs(repository.KindShifts, int64(9)).
		WillReturnError(boom)
	_, err = s.FindByRef(ctx, 9)
	require.ErrorIs(t, err, boom)
}

func TestDocStore_FindAll(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.Order](db, repository.KindOrders)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 ORDER BY id`).
		WithArgs(repository.KindOrders).
		WillReturnRows(pgxmock.NewRows([]string{"id", "body"}))
	out, err := s.FindAll(ctx)
	require.NoError(t, err)
	require.Empty(t, out)

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT id, body FROM documents WHERE kind=\$1 ORDER BY id`).
		WithArgs(repository.KindOrders).
		WillReturnRows(pgxmock.NewRows([]string{"id", "body"}).
			AddRow(int64(1), []byte(`{"id":"`+a.String()+`","finalized":false}`)).
			AddRow(int64(2), []byte(`{"id":"`+b.String()+`","finalized":true}`)))
	out, err = s.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, a, out[0].ID)
	require.Equal(t, int64(2), out[1].Ref())
	require.True(t, out[1].Finalized)
}

func TestDocStore_DeleteByRef(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.WorkItem](db, repository.KindWorkItems)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM documents WHERE kind=\$1 AND id=\$2`).
		WithArgs(repository.KindWorkItems, int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.DeleteByRef(ctx, 4))

	mock.ExpectExec(`DELETE FROM documents WHERE kind=\$1 AND id=\$2`).
		WithArgs(repository.KindWorkItems, int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, s.DeleteByRef(ctx, 4), errs.ErrNotFound)
}

func TestDocStore_UpdateByRef(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore[model.Order](db, repository.KindOrders)
	ctx := context.Background()
	o := model.Order{ID: uuid.Must(uuid.NewV4()), Finalized: true}

	mock.ExpectExec(`UPDATE documents SET body=\$3, updated_at=now\(\) WHERE kind=\$1 AND id=\$2`).
		WithArgs(repository.KindOrders, int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	upd, err := s.UpdateByRef(ctx, 5, o)
	require.NoError(t, err)
	require.Equal(t, int64(5), upd.Ref())

	mock.ExpectExec(`UPDATE documents`).
		WithArgs(repository.KindOrders, int64(5), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	_, err = s.UpdateByRef(ctx, 5, o)
	require.ErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("conn reset")
	mock.ExpectExec(`UPDATE documents`).
		WithArgs(repository.KindOrders, int64(5), pgxmock.AnyArg()).
		WillReturnError(boom)
	_, err = s.UpdateByRef(ctx, 5, o)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
