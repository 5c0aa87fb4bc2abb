package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

func TestAssignmentRepositoryListRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := isoweek.MustParseDate("2024-03-04")
	to := isoweek.MustParseDate("2024-03-11")
	now := time.Now()
	rows := sqlmock.NewRows([]string{"agent_id", "day", "codes", "updated_by", "updated_at"}).
		AddRow("a1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "{N,J}", "admin", now).
		AddRow("a1", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), "{N}", "admin", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM prime_assignments WHERE day >= $1 AND day < $2 AND agent_id = ANY($3) ORDER BY agent_id ASC, day ASC")).
		WithArgs(from, to, pq.Array([]string{"a1"})).
		WillReturnRows(rows)

	items, err := repo.ListRange(context.Background(), models.AssignmentFilter{AgentIDs: []string{"a1"}, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2024-03-04", items[0].Day.String())
	assert.Equal(t, []string{"N", "J"}, []string(items[0].Codes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryReplaceRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := isoweek.MustParseDate("2024-03-04")
	to := from.AddDays(7)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prime_assignments WHERE agent_id = ANY($1) AND day >= $2 AND day < $3")).
		WithArgs(pq.Array([]string{"a1", "a2"}), from, to).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO prime_assignments").
		WithArgs("a1", from, pq.Array([]string{"N"}), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO prime_assignments").
		WithArgs("a1", from.AddDays(2), pq.Array([]string{"N", "J"}), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	written, err := repo.ReplaceRange(context.Background(), ReplaceRangeParams{
		From:  from,
		To:    to,
		Actor: "admin",
		Plans: map[string]map[isoweek.Date][]string{
			"a1": {
				from.AddDays(2): {"N", "J"},
				from:            {"N"},
				from.AddDays(1): {},
			},
			"a2": {},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryReplaceRangeRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := isoweek.MustParseDate("2024-03-04")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM prime_assignments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO prime_assignments").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	_, err := repo.ReplaceRange(context.Background(), ReplaceRangeParams{
		From:  from,
		To:    from.AddDays(7),
		Plans: map[string]map[isoweek.Date][]string{"ghost": {from: {"N"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert assignment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := isoweek.MustParseDate("2024-03-04")
	to := from.AddDays(7)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prime_assignments WHERE day >= $1 AND day < $2")).
		WithArgs(from, to).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := repo.DeleteRange(context.Background(), from, to, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
