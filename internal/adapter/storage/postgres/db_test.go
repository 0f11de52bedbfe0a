package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mobile-money-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapWriteErr(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	err := mapWriteErr("insert user", unique)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.ErrorIs(t, err, unique)
	assert.Contains(t, err.Error(), "insert user")

	fk := &pgconn.PgError{Code: "23503"}
	err = mapWriteErr("insert ledger entry", fk)
	assert.False(t, errors.Is(err, ports.ErrDuplicate))
	assert.ErrorIs(t, err, fk)

	plain := fmt.Errorf("conn reset")
	assert.ErrorIs(t, mapWriteErr("x", plain), plain)
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1 FROM accounts").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
