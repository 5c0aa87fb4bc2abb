package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

// AssignmentRepository persists daily prime assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListRange returns assignments with day in [filter.From, filter.To), ordered by agent then day.
func (r *AssignmentRepository) ListRange(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT agent_id, day, codes, updated_by, updated_at FROM prime_assignments WHERE day >= $1 AND day < $2`)
	args := []interface{}{filter.From, filter.To}
	if len(filter.AgentIDs) > 0 {
		args = append(args, pq.Array(filter.AgentIDs))
		fmt.Fprintf(&query, " AND agent_id = ANY($%d)", len(args))
	}
	query.WriteString(" ORDER BY agent_id ASC, day ASC")

	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// ReplaceRangeParams describes a replacement of every listed agent's days in [From, To).
type ReplaceRangeParams struct {
	From  isoweek.Date
	To    isoweek.Date
	Actor string
	// Plans maps agent id to day to codes. Days absent or with no codes end up empty.
	Plans map[string]map[isoweek.Date][]string
}

// ReplaceRange deletes then re-inserts the listed agents' assignments in one transaction.
// It returns the number of rows written.
func (r *AssignmentRepository) ReplaceRange(ctx context.Context, params ReplaceRangeParams) (written int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	agentIDs := make([]string, 0, len(params.Plans))
	for id := range params.Plans {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	const deleteQuery = `DELETE FROM prime_assignments WHERE agent_id = ANY($1) AND day >= $2 AND day < $3`
	if _, err = tx.ExecContext(ctx, deleteQuery, pq.Array(agentIDs), params.From, params.To); err != nil {
		return 0, fmt.Errorf("clear assignments: %w", err)
	}

	const insertQuery = `INSERT INTO prime_assignments (agent_id, day, codes, updated_by, updated_at) VALUES ($1, $2, $3, $4, $5)`
	now := time.Now().UTC()
	for _, agentID := range agentIDs {
		days := params.Plans[agentID]
		ordered := make([]isoweek.Date, 0, len(days))
		for day := range days {
			ordered = append(ordered, day)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })
		for _, day := range ordered {
			codes := days[day]
			if len(codes) == 0 {
				continue
			}
			if _, err = tx.ExecContext(ctx, insertQuery, agentID, day, pq.Array(codes), params.Actor, now); err != nil {
				return 0, fmt.Errorf("insert assignment: %w", err)
			}
			written++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit assignments: %w", err)
	}
	return written, nil
}

// DeleteRange removes assignments in [from, to), restricted to agentIDs when non-empty.
func (r *AssignmentRepository) DeleteRange(ctx context.Context, from, to isoweek.Date, agentIDs []string) (int64, error) {
	query := `DELETE FROM prime_assignments WHERE day >= $1 AND day < $2`
	args := []interface{}{from, to}
	if len(agentIDs) > 0 {
		query += ` AND agent_id = ANY($3)`
		args = append(args, pq.Array(agentIDs))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete assignments: %w", err)
	}
	return affected, nil
}
