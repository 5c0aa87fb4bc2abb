package models

import "time"

// Agent is a person primes are assigned to. Name is unique and is what the legacy
// macro uses to identify agents.
type Agent struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Position  int       `db:"position" json:"position"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AgentFilter narrows agent listings.
type AgentFilter struct {
	ActiveOnly bool
	IDs        []string
}
