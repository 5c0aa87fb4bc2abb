package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/primes-api/pkg/isoweek"
)

// Assignment lists the prime codes an agent earned on a given day.
type Assignment struct {
	AgentID   string         `db:"agent_id" json:"agent_id"`
	Day       isoweek.Date   `db:"day" json:"day"`
	Codes     pq.StringArray `db:"codes" json:"codes"`
	UpdatedBy string         `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter selects assignments in the half-open range [From, To).
type AssignmentFilter struct {
	AgentIDs []string
	From     isoweek.Date
	To       isoweek.Date
}

