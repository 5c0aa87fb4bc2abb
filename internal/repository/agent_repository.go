package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/primes-api/internal/models"
)

const agentColumns = `id, name, position, active, created_at, updated_at`

// AgentRepository provides database access for agents.
type AgentRepository struct {
	db *sqlx.DB
}

// NewAgentRepository creates a new instance of AgentRepository.
func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// List returns agents in display order.
func (r *AgentRepository) List(ctx context.Context, filter models.AgentFilter) ([]models.Agent, error) {
	query := strings.Builder{}
	query.WriteString("SELECT " + agentColumns + " FROM agents WHERE 1=1")
	var args []interface{}
	if filter.ActiveOnly {
		query.WriteString(" AND active = TRUE")
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		fmt.Fprintf(&query, " AND id = ANY($%d)", len(args))
	}
	query.WriteString(" ORDER BY position ASC, name ASC")

	var agents []models.Agent
	if err := r.db.SelectContext(ctx, &agents, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// FindByID returns an agent by identifier. sql.ErrNoRows is returned unwrapped.
func (r *AgentRepository) FindByID(ctx context.Context, id string) (*models.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE id = $1 LIMIT 1`
	var agent models.Agent
	if err := r.db.GetContext(ctx, &agent, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find agent by id: %w", err)
	}
	return &agent, nil
}

// FindByName returns an agent by its unique name. sql.ErrNoRows is returned unwrapped.
func (r *AgentRepository) FindByName(ctx context.Context, name string) (*models.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE name = $1 LIMIT 1`
	var agent models.Agent
	if err := r.db.GetContext(ctx, &agent, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find agent by name: %w", err)
	}
	return &agent, nil
}

// Create inserts a new agent, assigning an id when missing.
func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	const query = `INSERT INTO agents (id, name, position, active, created_at, updated_at)
VALUES (:id, :name, :position, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, agent); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// Update persists name, position and active flag.
func (r *AgentRepository) Update(ctx context.Context, agent *models.Agent) error {
	agent.UpdatedAt = time.Now().UTC()
	const query = `UPDATE agents SET name = :name, position = :position, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, agent)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
