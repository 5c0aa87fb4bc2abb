package dto

// PrimeTypeView is the public catalog entry, keyed by code in Bootstrap.
type PrimeTypeView struct {
	Label  string  `json:"label"`
	Amount float64 `json:"montant"`
	Icon   string  `json:"icon"`
}

// AgentView is an agent as listed to readers.
type AgentView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bootstrap is the payload a client loads once: agents in display order and the prime catalog.
type Bootstrap struct {
	Agents     []AgentView              `json:"agents"`
	AgentNames []string                 `json:"agentNames"`
	PrimeTypes map[string]PrimeTypeView `json:"primeTypes"`
	Icons      map[string]string        `json:"icons"`
}

// UpsertPrimeTypeRequest creates or replaces a catalog entry.
type UpsertPrimeTypeRequest struct {
	Label  string  `json:"label" validate:"required,max=80"`
	Amount float64 `json:"amount" validate:"gte=0,lte=99999999"`
	Icon   string  `json:"icon" validate:"omitempty,max=16"`
	Active *bool   `json:"active"`
}

// AgentRequest creates or updates an agent.
type AgentRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Position int    `json:"position" validate:"gte=0"`
	Active   *bool  `json:"active"`
}
