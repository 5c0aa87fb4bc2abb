package dto

import "github.com/noah-isme/primes-api/pkg/isoweek"

// WeekPlan maps YYYY-MM-DD to the prime codes of that day. Days without primes are absent.
type WeekPlan map[string][]string

// Chip is one prime shown on a day.
type Chip struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Icon   string  `json:"icon"`
	Amount float64 `json:"amount"`
}

// DayView is one column of the week grid.
type DayView struct {
	Date      isoweek.Date `json:"date"`
	DayName   string       `json:"dayName"`
	DateLabel string       `json:"dateLabel"`
	Chips     []Chip       `json:"chips"`
	Total     float64      `json:"total"`
	// Unknown lists stored codes missing from the catalog. They do not count towards totals.
	Unknown []string `json:"unknown,omitempty"`
}

// WeekView is an agent's week rendered for display.
type WeekView struct {
	Agent      AgentView       `json:"agent"`
	Week       isoweek.WeekKey `json:"week"`
	WeekLabel  string          `json:"weekLabel"`
	RangeLabel string          `json:"rangeLabel"`
	Start      isoweek.Date    `json:"start"`
	End        isoweek.Date    `json:"end"`
	Days       []DayView       `json:"days"`
	Total      float64         `json:"total"`
	TotalLabel string          `json:"totalLabel"`
	Previous   isoweek.WeekKey `json:"previous"`
	Next       isoweek.WeekKey `json:"next"`
}

// MonthRecap holds an agent's totals per calendar month of a year.
type MonthRecap struct {
	Agent      AgentView   `json:"agent"`
	Year       int         `json:"year"`
	Months     [12]float64 `json:"months"`
	Labels     [12]string  `json:"labels"`
	Total      float64     `json:"total"`
	TotalLabel string      `json:"totalLabel"`
}

// AdminWeek is the admin grid: every active agent's plan for one week.
type AdminWeek struct {
	Week   isoweek.WeekKey     `json:"week"`
	Start  isoweek.Date        `json:"start"`
	End    isoweek.Date        `json:"end"`
	Dates  []isoweek.Date      `json:"dates"`
	Agents []AgentView         `json:"agents"`
	Plans  map[string]WeekPlan `json:"plans"`
}

// BulkWeekEntry is one agent's replacement plan. Agent is an id or, for legacy callers, a name.
type BulkWeekEntry struct {
	Agent string              `json:"agent" validate:"required"`
	Days  map[string][]string `json:"days"`
}

// BulkWeekRequest replaces the listed agents' assignments for [Start, End).
type BulkWeekRequest struct {
	Start   isoweek.Date    `json:"start"`
	End     isoweek.Date    `json:"end"`
	Entries []BulkWeekEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkWeekResult summarises a bulk save.
type BulkWeekResult struct {
	Week    isoweek.WeekKey `json:"week"`
	Agents  int             `json:"agents"`
	Days    int             `json:"days"`
	Cleared int             `json:"cleared"`
}

// ResetWeekResult reports how many assignment rows were deleted.
type ResetWeekResult struct {
	Week    isoweek.WeekKey `json:"week"`
	Deleted int64           `json:"deleted"`
}
