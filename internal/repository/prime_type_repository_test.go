package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/primes-api/internal/models"
)

func TestPrimeTypeRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPrimeTypeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"code", "label", "amount", "icon", "active", "updated_at"}).
		AddRow("J", "Jour férié", 40.5, "🎉", true, now).
		AddRow("N", "Nuit", 25.0, "", true, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, label, amount, icon, active, updated_at FROM prime_types WHERE active = TRUE ORDER BY code ASC")).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 40.5, items[0].Amount)
	assert.Equal(t, models.DefaultPrimeIcon, items[1].DisplayIcon())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrimeTypeRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPrimeTypeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (code) DO UPDATE")).WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.PrimeType{Code: "N", Label: "Nuit", Amount: 25, Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrimeTypeRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPrimeTypeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE prime_types SET active = $2")).
		WithArgs("N", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE prime_types SET active = $2")).
		WithArgs("ZZ", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetActive(context.Background(), "N", false))
	err := repo.SetActive(context.Background(), "ZZ", false)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
