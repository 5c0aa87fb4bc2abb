package dto

import "github.com/noah-isme/primes-api/pkg/isoweek"

// WeekExportRequest asks for the admin grid of a week as a file.
type WeekExportRequest struct {
	Year   int    `json:"year" validate:"required,min=1,max=9999"`
	Week   int    `json:"week" validate:"required,min=1,max=53"`
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// Key returns the requested week.
func (r WeekExportRequest) Key() isoweek.WeekKey {
	return isoweek.WeekKey{Year: r.Year, Week: r.Week}
}

// RecapExportRequest asks for an agent's month recap as a file.
type RecapExportRequest struct {
	AgentID string `json:"agentId" validate:"required,uuid"`
	Year    int    `json:"year" validate:"required,min=1,max=9999"`
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
}
