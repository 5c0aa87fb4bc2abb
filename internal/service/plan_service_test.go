package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

type planFixture struct {
	svc         *PlanService
	agents      *agentStoreStub
	primes      *primeStoreStub
	assignments *assignmentStoreStub
	cache       *memoryCache
	audit       *auditLoggerStub
	metrics     *MetricsService
	rewarm      *schedulerStub
}

func newPlanFixture(rows ...models.Assignment) *planFixture {
	f := &planFixture{
		agents:      newAgentStore(),
		primes:      newPrimeStore(),
		assignments: &assignmentStoreStub{rows: rows},
		cache:       newMemoryCache(),
		audit:       &auditLoggerStub{},
		metrics:     NewMetricsService(),
		rewarm:      &schedulerStub{},
	}
	cacheSvc := NewCacheService(f.cache, f.metrics, time.Minute, zap.NewNop(), true)
	f.svc = NewPlanService(f.agents, f.primes, f.assignments, cacheSvc, f.audit, f.metrics, nil, zap.NewNop(), PlanConfig{}).
		WithRewarm(f.rewarm)
	return f
}

func week(year, w int) isoweek.WeekKey {
	return isoweek.WeekKey{Year: year, Week: w}
}

func TestPlanServiceWeekView(t *testing.T) {
	f := newPlanFixture(
		assignment(aliceID, "2024-03-04", "J", "N"),
		assignment(aliceID, "2024-03-06", "Z"),
		assignment(aliceID, "2024-03-10", "X"),
		assignment(brunoID, "2024-03-05", "N"),
	)

	view, hit, err := f.svc.WeekView(context.Background(), aliceID, week(2024, 10))
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, "Alice", view.Agent.Name)
	assert.Equal(t, "Semaine 10 — 2024", view.WeekLabel)
	assert.Equal(t, "04/03/2024 → 10/03/2024", view.RangeLabel)
	require.Len(t, view.Days, 7)
	assert.Equal(t, "Lundi", view.Days[0].DayName)
	assert.Equal(t, "04/03/2024", view.Days[0].DateLabel)
	assert.Equal(t, 65.5, view.Days[0].Total)
	require.Len(t, view.Days[0].Chips, 2)
	assert.Equal(t, "🎉", view.Days[0].Chips[0].Icon)
	assert.Equal(t, models.DefaultPrimeIcon, view.Days[0].Chips[1].Icon)
	assert.Equal(t, "Mercredi", view.Days[2].DayName)
	assert.Equal(t, []string{"Z"}, view.Days[2].Unknown)
	assert.Zero(t, view.Days[2].Total)
	assert.Equal(t, "Dimanche", view.Days[6].DayName)
	assert.Equal(t, 10.0, view.Days[6].Total, "inactive types keep counting for stored days")
	assert.Equal(t, 75.5, view.Total)
	assert.Equal(t, "Total semaine : 75.50€", view.TotalLabel)
	assert.Equal(t, week(2024, 9), view.Previous)
	assert.Equal(t, week(2024, 11), view.Next)

	calls := f.assignments.listCalls
	cached, hit, err := f.svc.WeekView(context.Background(), "Alice", week(2024, 10))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, calls, f.assignments.listCalls)
	assert.Equal(t, view.TotalLabel, cached.TotalLabel)
	assert.True(t, f.cache.has("primes:week:"+aliceID+":2024-W10"))
}

func TestPlanServiceWeekViewNavigationAcrossYears(t *testing.T) {
	f := newPlanFixture()

	view, _, err := f.svc.WeekView(context.Background(), aliceID, week(2021, 1))
	require.NoError(t, err)
	assert.Equal(t, week(2020, 53), view.Previous)
	assert.Equal(t, "04/01/2021 → 10/01/2021", view.RangeLabel)

	view, _, err = f.svc.WeekView(context.Background(), aliceID, week(2020, 53))
	require.NoError(t, err)
	assert.Equal(t, "28/12/2020 → 03/01/2021", view.RangeLabel)
	assert.Equal(t, week(2021, 1), view.Next)
	assert.Equal(t, week(2020, 52), view.Previous)
}

func TestPlanServiceWeekViewErrors(t *testing.T) {
	f := newPlanFixture()

	_, _, err := f.svc.WeekView(context.Background(), aliceID, week(2021, 53))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidArgument))

	_, _, err = f.svc.WeekView(context.Background(), "Nobody", week(2024, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = f.svc.WeekView(context.Background(), "7f1c9a52-3c1e-4a0e-9d8a-0b8f2f6a1aff", week(2024, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPlanServiceWeekPlan(t *testing.T) {
	f := newPlanFixture(
		assignment(aliceID, "2024-03-04", "J"),
		assignment(aliceID, "2024-03-05"),
		assignment(aliceID, "2024-03-11", "N"),
	)

	plan, err := f.svc.WeekPlan(context.Background(), "Alice", isoweek.MustParseDate("2024-03-04"), isoweek.MustParseDate("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, dto.WeekPlan{"2024-03-04": {"J"}}, plan)

	plan, err = f.svc.WeekPlan(context.Background(), brunoID, isoweek.MustParseDate("2024-03-04"), isoweek.MustParseDate("2024-03-11"))
	require.NoError(t, err)
	assert.Empty(t, plan)
	assert.NotNil(t, plan)

	_, err = f.svc.WeekPlan(context.Background(), "Alice", isoweek.MustParseDate("2024-03-04"), isoweek.MustParseDate("2024-03-04"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidArgument))

	_, err = f.svc.WeekPlan(context.Background(), "Alice", isoweek.MustParseDate("2024-01-01"), isoweek.MustParseDate("2024-03-01"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidArgument))
}

func TestPlanServiceMonthRecap(t *testing.T) {
	f := newPlanFixture(
		assignment(aliceID, "2023-12-31", "N"),
		assignment(aliceID, "2024-01-15", "J"),
		assignment(aliceID, "2024-03-04", "N"),
		assignment(aliceID, "2024-03-05", "J", "N"),
		assignment(aliceID, "2024-12-31", "X", "Z"),
		assignment(brunoID, "2024-03-05", "J"),
	)

	recap, hit, err := f.svc.MonthRecap(context.Background(), "Alice", 2024)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2024, recap.Year)
	assert.Equal(t, 40.5, recap.Months[0])
	assert.Equal(t, 0.0, recap.Months[1])
	assert.Equal(t, 90.5, recap.Months[2])
	assert.Equal(t, 10.0, recap.Months[11])
	assert.Equal(t, 141.0, recap.Total)
	assert.Equal(t, "Total année : 141.00€", recap.TotalLabel)
	assert.Equal(t, "Janv", recap.Labels[0])
	assert.Equal(t, "Déc", recap.Labels[11])

	_, hit, err = f.svc.MonthRecap(context.Background(), aliceID, 2024)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = f.svc.MonthRecap(context.Background(), aliceID, 0)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidArgument))
}

func TestPlanServiceAdminWeek(t *testing.T) {
	f := newPlanFixture(
		assignment(aliceID, "2024-03-04", "J"),
		assignment(brunoID, "2024-03-08", "N", "J"),
	)
	f.agents.agents = append(f.agents.agents, models.Agent{ID: "inactive", Name: "Zoé", Active: false})

	grid, err := f.svc.AdminWeek(context.Background(), week(2024, 10))
	require.NoError(t, err)
	require.Len(t, grid.Agents, 2)
	assert.Equal(t, "Alice", grid.Agents[0].Name)
	require.Len(t, grid.Dates, 7)
	assert.Equal(t, "2024-03-04", grid.Dates[0].String())
	assert.Equal(t, "2024-03-11", grid.End.String())
	assert.Equal(t, dto.WeekPlan{"2024-03-04": {"J"}}, grid.Plans[aliceID])
	assert.Equal(t, dto.WeekPlan{"2024-03-08": {"N", "J"}}, grid.Plans[brunoID])
}

func TestPlanServiceSaveWeekBulk(t *testing.T) {
	f := newPlanFixture()
	f.cache.entries["primes:week:"+aliceID+":2024-W10"] = []byte(`{}`)
	f.cache.entries["primes:recap:"+aliceID+":2024"] = []byte(`{}`)
	f.cache.entries["primes:bootstrap"] = []byte(`{}`)

	result, err := f.svc.SaveWeekBulk(context.Background(), "chef", dto.BulkWeekRequest{
		Start: isoweek.MustParseDate("2024-03-04"),
		End:   isoweek.MustParseDate("2024-03-11"),
		Entries: []dto.BulkWeekEntry{
			{Agent: "Alice", Days: map[string][]string{"2024-03-04": {"J", " J", "N", ""}, "2024-03-05": {}}},
			{Agent: brunoID, Days: map[string][]string{"2024-03-10": {"N"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &dto.BulkWeekResult{Week: week(2024, 10), Agents: 2, Days: 2, Cleared: 1}, result)

	require.Len(t, f.assignments.replaced, 1)
	params := f.assignments.replaced[0]
	assert.Equal(t, "chef", params.Actor)
	assert.Equal(t, "2024-03-04", params.From.String())
	assert.Equal(t, []string{"J", "N"}, params.Plans[aliceID][isoweek.MustParseDate("2024-03-04")])
	assert.Empty(t, params.Plans[aliceID][isoweek.MustParseDate("2024-03-05")])
	assert.Equal(t, []string{"N"}, params.Plans[brunoID][isoweek.MustParseDate("2024-03-10")])

	assert.False(t, f.cache.has("primes:week:"+aliceID+":2024-W10"))
	assert.False(t, f.cache.has("primes:recap:"+aliceID+":2024"))
	assert.True(t, f.cache.has("primes:bootstrap"))

	assert.Equal(t, 1, f.rewarm.calls)
	assert.Equal(t, []string{aliceID, brunoID}, f.rewarm.agentIDs)
	assert.Equal(t, []int{2024}, f.rewarm.years)

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionWeekSave, f.audit.logs[0].Action)
	assert.Equal(t, "2024-W10", *f.audit.logs[0].ResourceID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.weekSaves.WithLabelValues("save", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.assignmentRows))
}

func TestPlanServiceSaveWeekBulkAcrossYearsSchedulesBothYears(t *testing.T) {
	f := newPlanFixture()

	_, err := f.svc.SaveWeekBulk(context.Background(), "chef", dto.BulkWeekRequest{
		Start:   isoweek.MustParseDate("2024-12-30"),
		End:     isoweek.MustParseDate("2025-01-06"),
		Entries: []dto.BulkWeekEntry{{Agent: "Alice", Days: map[string][]string{"2025-01-01": {"J"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, f.rewarm.years)
	assert.Contains(t, f.cache.deleted, "primes:week:"+aliceID+":2025-W01")
}

func TestPlanServiceSaveWeekBulkValidation(t *testing.T) {
	monday := isoweek.MustParseDate("2024-03-04")
	next := isoweek.MustParseDate("2024-03-11")
	entry := func(agent, day string, codes ...string) []dto.BulkWeekEntry {
		return []dto.BulkWeekEntry{{Agent: agent, Days: map[string][]string{day: codes}}}
	}

	tests := []struct {
		name string
		req  dto.BulkWeekRequest
		want *appErrors.Error
	}{
		{"no entries", dto.BulkWeekRequest{Start: monday, End: next}, appErrors.ErrValidation},
		{"missing range", dto.BulkWeekRequest{Entries: entry("Alice", "2024-03-04", "J")}, appErrors.ErrInvalidArgument},
		{"start not monday", dto.BulkWeekRequest{Start: monday.AddDays(1), End: next.AddDays(1), Entries: entry("Alice", "2024-03-05", "J")}, appErrors.ErrInvalidArgument},
		{"span not a week", dto.BulkWeekRequest{Start: monday, End: next.AddDays(7), Entries: entry("Alice", "2024-03-04", "J")}, appErrors.ErrInvalidArgument},
		{"date outside week", dto.BulkWeekRequest{Start: monday, End: next, Entries: entry("Alice", "2024-03-11", "J")}, appErrors.ErrInvalidArgument},
		{"malformed date", dto.BulkWeekRequest{Start: monday, End: next, Entries: entry("Alice", "04/03/2024", "J")}, appErrors.ErrInvalidArgument},
		{"unknown code", dto.BulkWeekRequest{Start: monday, End: next, Entries: entry("Alice", "2024-03-04", "J", "Q")}, appErrors.ErrUnknownPrime},
		{"inactive code", dto.BulkWeekRequest{Start: monday, End: next, Entries: entry("Alice", "2024-03-04", "X")}, appErrors.ErrUnknownPrime},
		{"unknown agent", dto.BulkWeekRequest{Start: monday, End: next, Entries: entry("Zoé", "2024-03-04", "J")}, appErrors.ErrUnknownAgent},
		{"duplicate agent", dto.BulkWeekRequest{Start: monday, End: next, Entries: []dto.BulkWeekEntry{
			{Agent: "Alice", Days: map[string][]string{"2024-03-04": {"J"}}},
			{Agent: aliceID, Days: map[string][]string{"2024-03-05": {"N"}}},
		}}, appErrors.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPlanFixture()
			_, err := f.svc.SaveWeekBulk(context.Background(), "chef", tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Empty(t, f.assignments.replaced)
			assert.Zero(t, f.rewarm.calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.weekSaves.WithLabelValues("save", "error")))
		})
	}
}

func TestPlanServiceSaveWeekBulkStorageFailure(t *testing.T) {
	f := newPlanFixture()
	f.assignments.replaceErr = errors.New("connection reset")

	_, err := f.svc.SaveWeekBulk(context.Background(), "chef", dto.BulkWeekRequest{
		Start:   isoweek.MustParseDate("2024-03-04"),
		End:     isoweek.MustParseDate("2024-03-11"),
		Entries: []dto.BulkWeekEntry{{Agent: "Alice", Days: map[string][]string{"2024-03-04": {"J"}}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Zero(t, f.rewarm.calls)
	assert.Empty(t, f.audit.logs)
}

func TestPlanServiceResetWeek(t *testing.T) {
	f := newPlanFixture()
	f.assignments.deleteCount = 4

	result, err := f.svc.ResetWeek(context.Background(), "chef", week(2024, 10), []string{"Bruno", " "})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Deleted)
	assert.Equal(t, [][]string{{brunoID}}, f.assignments.deleted)
	assert.Equal(t, []string{brunoID}, f.rewarm.agentIDs)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionWeekReset, f.audit.logs[0].Action)

	f = newPlanFixture()
	_, err = f.svc.ResetWeek(context.Background(), "chef", week(2024, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}}, f.assignments.deleted)
	assert.Equal(t, []string{aliceID, brunoID}, f.rewarm.agentIDs)

	_, err = f.svc.ResetWeek(context.Background(), "chef", week(2024, 10), []string{"Nobody"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPlanServiceCurrentWeek(t *testing.T) {
	f := newPlanFixture()
	f.svc.WithClock(func() time.Time { return time.Date(2024, time.December, 30, 9, 0, 0, 0, time.UTC) })
	assert.Equal(t, week(2025, 1), f.svc.CurrentWeek())

	cet := time.FixedZone("CET", 3600)
	svc := NewPlanService(f.agents, f.primes, f.assignments, nil, nil, nil, nil, nil, PlanConfig{Location: cet}).
		WithClock(func() time.Time { return time.Date(2024, time.December, 29, 23, 30, 0, 0, time.UTC) })
	assert.Equal(t, week(2025, 1), svc.CurrentWeek())
}

func TestPlanServiceWorksWithoutCache(t *testing.T) {
	f := newPlanFixture(assignment(aliceID, "2024-03-04", "J"))
	svc := NewPlanService(f.agents, f.primes, f.assignments, nil, nil, nil, nil, nil, PlanConfig{})

	view, hit, err := svc.WeekView(context.Background(), aliceID, week(2024, 10))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 40.5, view.Total)

	_, hit, err = svc.WeekView(context.Background(), aliceID, week(2024, 10))
	require.NoError(t, err)
	assert.False(t, hit)
}
