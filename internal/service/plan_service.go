package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/internal/repository"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

// MaxPlanRangeDays bounds ad-hoc plan queries.
const MaxPlanRangeDays = 31

type planAgentReader interface {
	List(ctx context.Context, filter models.AgentFilter) ([]models.Agent, error)
	FindByID(ctx context.Context, id string) (*models.Agent, error)
	FindByName(ctx context.Context, name string) (*models.Agent, error)
}

type primeCatalogReader interface {
	List(ctx context.Context, activeOnly bool) ([]models.PrimeType, error)
}

type assignmentStore interface {
	ListRange(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	ReplaceRange(ctx context.Context, params repository.ReplaceRangeParams) (int, error)
	DeleteRange(ctx context.Context, from, to isoweek.Date, agentIDs []string) (int64, error)
}

// RewarmScheduler queues recap recomputation for agents and years.
type RewarmScheduler interface {
	Schedule(agentIDs []string, years []int) error
}

// PlanConfig tunes plan reads.
type PlanConfig struct {
	WeekTTL  time.Duration
	RecapTTL time.Duration
	Wrap     isoweek.WrapMode
	Location *time.Location
}

// PlanService reads and writes weekly prime assignments.
type PlanService struct {
	agents      planAgentReader
	primes      primeCatalogReader
	assignments assignmentStore
	cache       *CacheService
	audit       auditLogger
	metrics     *MetricsService
	rewarm      RewarmScheduler
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         PlanConfig
	now         func() time.Time
}

// NewPlanService constructs a PlanService.
func NewPlanService(
	agents planAgentReader,
	primes primeCatalogReader,
	assignments assignmentStore,
	cacheSvc *CacheService,
	audit auditLogger,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PlanConfig,
) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WeekTTL <= 0 {
		cfg.WeekTTL = 5 * time.Minute
	}
	if cfg.RecapTTL <= 0 {
		cfg.RecapTTL = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &PlanService{
		agents:      agents,
		primes:      primes,
		assignments: assignments,
		cache:       cacheSvc,
		audit:       audit,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithRewarm attaches the scheduler used after bulk writes.
func (s *PlanService) WithRewarm(r RewarmScheduler) *PlanService {
	s.rewarm = r
	return s
}

// WithClock overrides the time source used by CurrentWeek.
func (s *PlanService) WithClock(now func() time.Time) *PlanService {
	if now != nil {
		s.now = now
	}
	return s
}

// CurrentWeek returns the ISO week of today in the configured time zone.
func (s *PlanService) CurrentWeek() isoweek.WeekKey {
	return isoweek.KeyOf(isoweek.Today(s.now().In(s.cfg.Location)))
}

// ResolveAgent finds an agent by id, or by name when ref is not a UUID.
func (s *PlanService) ResolveAgent(ctx context.Context, ref string) (*models.Agent, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "agent is required")
	}
	var (
		agent *models.Agent
		err   error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		agent, err = s.agents.FindByID(ctx, ref)
	} else {
		agent, err = s.agents.FindByName(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}
	return agent, nil
}

// WeekPlan returns the codes per day for [start, end). Days without primes are omitted.
func (s *PlanService) WeekPlan(ctx context.Context, agentRef string, start, end isoweek.Date) (dto.WeekPlan, error) {
	if start.IsZero() || end.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "start and end are required")
	}
	span := end.Sub(start)
	if span <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "end must be after start")
	}
	if span > MaxPlanRangeDays {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("range must not exceed %d days", MaxPlanRangeDays))
	}
	agent, err := s.ResolveAgent(ctx, agentRef)
	if err != nil {
		return nil, err
	}
	plans, err := s.loadPlans(ctx, []string{agent.ID}, start, end)
	if err != nil {
		return nil, err
	}
	plan := plans[agent.ID]
	if plan == nil {
		plan = dto.WeekPlan{}
	}
	return plan, nil
}

// WeekView renders one agent's ISO week with labels and totals.
func (s *PlanService) WeekView(ctx context.Context, agentRef string, key isoweek.WeekKey) (*dto.WeekView, bool, error) {
	if err := isoweek.Validate(key); err != nil {
		return nil, false, appErrors.InvalidArgument(err, "invalid ISO week")
	}
	agent, err := s.ResolveAgent(ctx, agentRef)
	if err != nil {
		return nil, false, err
	}

	cacheKey := weekCacheKey(agent.ID, key)
	var cached dto.WeekView
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, false, err
	}
	start, end := isoweek.Range(key)
	plans, err := s.loadPlans(ctx, []string{agent.ID}, start, end)
	if err != nil {
		return nil, false, err
	}
	plan := plans[agent.ID]

	view := &dto.WeekView{
		Agent:      dto.AgentView{ID: agent.ID, Name: agent.Name},
		Week:       key,
		WeekLabel:  weekLabel(key),
		RangeLabel: rangeLabel(start, end),
		Start:      start,
		End:        end,
		Days:       make([]dto.DayView, 0, isoweek.DaysPerWeek),
		Previous:   isoweek.ShiftWeek(key, -1, s.cfg.Wrap),
		Next:       isoweek.ShiftWeek(key, 1, s.cfg.Wrap),
	}
	var weekCents int64
	for _, day := range key.Dates() {
		dv, cents := buildDay(day, plan[day.String()], catalog)
		view.Days = append(view.Days, dv)
		weekCents += cents
	}
	view.Total = models.FromCents(weekCents)
	view.TotalLabel = "Total semaine : " + formatEuros(view.Total)

	if err := s.cache.Set(ctx, cacheKey, view, s.cfg.WeekTTL); err != nil {
		s.logger.Debug("week view not cached", zap.Error(err))
	}
	return view, false, nil
}

func buildDay(day isoweek.Date, codes []string, catalog map[string]models.PrimeType) (dto.DayView, int64) {
	dv := dto.DayView{
		Date:      day,
		DayName:   dayNameFR(day),
		DateLabel: formatDateFR(day),
		Chips:     make([]dto.Chip, 0, len(codes)),
	}
	var cents int64
	for _, code := range codes {
		p, ok := catalog[code]
		if !ok {
			dv.Unknown = append(dv.Unknown, code)
			continue
		}
		dv.Chips = append(dv.Chips, dto.Chip{Code: code, Label: p.Label, Icon: p.DisplayIcon(), Amount: p.Amount})
		cents += p.AmountCents()
	}
	dv.Total = models.FromCents(cents)
	return dv, cents
}

// MonthRecap returns an agent's totals per calendar month of year.
func (s *PlanService) MonthRecap(ctx context.Context, agentRef string, year int) (*dto.MonthRecap, bool, error) {
	if year < 1 || year > 9999 {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidArgument, "year must be between 1 and 9999")
	}
	agent, err := s.ResolveAgent(ctx, agentRef)
	if err != nil {
		return nil, false, err
	}

	var cached dto.MonthRecap
	if hit, err := s.cache.Get(ctx, recapCacheKey(agent.ID, year), &cached); err == nil && hit {
		return &cached, true, nil
	}
	recap, err := s.RecomputeRecap(ctx, agent, year)
	if err != nil {
		return nil, false, err
	}
	return recap, false, nil
}

// RecomputeRecap builds the recap from storage and refreshes its cache entry.
func (s *PlanService) RecomputeRecap(ctx context.Context, agent *models.Agent, year int) (*dto.MonthRecap, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	from := isoweek.NewDate(year, time.January, 1)
	to := isoweek.NewDate(year+1, time.January, 1)
	rows, err := s.assignments.ListRange(ctx, models.AssignmentFilter{AgentIDs: []string{agent.ID}, From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	var months [12]int64
	var total int64
	for _, row := range rows {
		for _, code := range row.Codes {
			if p, ok := catalog[code]; ok {
				months[row.Day.Month-1] += p.AmountCents()
				total += p.AmountCents()
			}
		}
	}

	recap := &dto.MonthRecap{
		Agent:  dto.AgentView{ID: agent.ID, Name: agent.Name},
		Year:   year,
		Labels: monthLabelsFR,
		Total:  models.FromCents(total),
	}
	for i, cents := range months {
		recap.Months[i] = models.FromCents(cents)
	}
	recap.TotalLabel = "Total année : " + formatEuros(recap.Total)

	if err := s.cache.Set(ctx, recapCacheKey(agent.ID, year), recap, s.cfg.RecapTTL); err != nil {
		s.logger.Debug("recap not cached", zap.Error(err))
	}
	return recap, nil
}

// AdminWeek returns every active agent's plan for the week.
func (s *PlanService) AdminWeek(ctx context.Context, key isoweek.WeekKey) (*dto.AdminWeek, error) {
	if err := isoweek.Validate(key); err != nil {
		return nil, appErrors.InvalidArgument(err, "invalid ISO week")
	}
	agents, err := s.agents.List(ctx, models.AgentFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agents")
	}
	start, end := isoweek.Range(key)
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}

	plans := map[string]dto.WeekPlan{}
	if len(ids) > 0 {
		if plans, err = s.loadPlans(ctx, ids, start, end); err != nil {
			return nil, err
		}
	}

	dates := key.Dates()
	result := &dto.AdminWeek{
		Week:   key,
		Start:  start,
		End:    end,
		Dates:  dates[:],
		Agents: make([]dto.AgentView, 0, len(agents)),
		Plans:  make(map[string]dto.WeekPlan, len(agents)),
	}
	for _, a := range agents {
		result.Agents = append(result.Agents, dto.AgentView{ID: a.ID, Name: a.Name})
		plan := plans[a.ID]
		if plan == nil {
			plan = dto.WeekPlan{}
		}
		result.Plans[a.ID] = plan
	}
	return result, nil
}

// SaveWeekBulk replaces the listed agents' assignments for one ISO week.
func (s *PlanService) SaveWeekBulk(ctx context.Context, actor string, req dto.BulkWeekRequest) (result *dto.BulkWeekResult, err error) {
	defer func() {
		rows := 0
		if result != nil {
			rows = result.Days
		}
		s.metrics.RecordWeekWrite("save", err, rows)
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "start and end are required")
	}
	if req.Start.ISOWeekday() != 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "start must be a Monday")
	}
	if req.End.Sub(req.Start) != isoweek.DaysPerWeek {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "range must span exactly one week")
	}
	key := isoweek.KeyOf(req.Start)

	active, err := s.primes.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prime types")
	}
	allowed := make(map[string]struct{}, len(active))
	for _, p := range active {
		allowed[p.Code] = struct{}{}
	}

	plans := make(map[string]map[isoweek.Date][]string, len(req.Entries))
	cleared := 0
	for _, entry := range req.Entries {
		agent, err := s.ResolveAgent(ctx, entry.Agent)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Clone(appErrors.ErrUnknownAgent, fmt.Sprintf("unknown agent %q", entry.Agent))
			}
			return nil, err
		}
		if _, dup := plans[agent.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("agent %q listed twice", entry.Agent))
		}
		days := make(map[isoweek.Date][]string, len(entry.Days))
		for rawDay, rawCodes := range entry.Days {
			day, err := isoweek.ParseDate(rawDay)
			if err != nil {
				return nil, appErrors.InvalidArgument(err, fmt.Sprintf("invalid date %q", rawDay))
			}
			if day.Before(req.Start) || !day.Before(req.End) {
				return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("date %s is outside %s", rawDay, key))
			}
			codes, err := normalizeCodes(rawCodes, allowed)
			if err != nil {
				return nil, err
			}
			if len(codes) == 0 {
				cleared++
			}
			days[day] = codes
		}
		plans[agent.ID] = days
	}

	written, err := s.assignments.ReplaceRange(ctx, repository.ReplaceRangeParams{
		From:  req.Start,
		To:    req.End,
		Actor: actor,
		Plans: plans,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save week")
	}

	agentIDs := sortedKeys(plans)
	s.afterWrite(ctx, key, agentIDs)
	s.record(ctx, actor, models.AuditActionWeekSave, key, map[string]interface{}{
		"start":  req.Start,
		"end":    req.End,
		"agents": agentIDs,
		"rows":   written,
	})

	s.logger.Info("week saved", zap.String("week", key.String()), zap.String("actor", actor), zap.Int("agents", len(agentIDs)), zap.Int("rows", written))
	return &dto.BulkWeekResult{Week: key, Agents: len(agentIDs), Days: written, Cleared: cleared}, nil
}

// ResetWeek deletes the week's assignments for the given agents, or for everyone when none are given.
func (s *PlanService) ResetWeek(ctx context.Context, actor string, key isoweek.WeekKey, agentRefs []string) (result *dto.ResetWeekResult, err error) {
	defer func() { s.metrics.RecordWeekWrite("reset", err, 0) }()

	if err := isoweek.Validate(key); err != nil {
		return nil, appErrors.InvalidArgument(err, "invalid ISO week")
	}
	ids := make([]string, 0, len(agentRefs))
	for _, ref := range agentRefs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		agent, err := s.ResolveAgent(ctx, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, agent.ID)
	}

	start, end := isoweek.Range(key)
	deleted, err := s.assignments.DeleteRange(ctx, start, end, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset week")
	}

	affected := ids
	if len(affected) == 0 {
		agents, err := s.agents.List(ctx, models.AgentFilter{})
		if err != nil {
			s.logger.Warn("failed to list agents for cache invalidation", zap.Error(err))
		}
		for _, a := range agents {
			affected = append(affected, a.ID)
		}
	}
	s.afterWrite(ctx, key, affected)
	s.record(ctx, actor, models.AuditActionWeekReset, key, map[string]interface{}{"agents": ids, "deleted": deleted})

	return &dto.ResetWeekResult{Week: key, Deleted: deleted}, nil
}

// afterWrite drops stale read models and schedules recap recomputation.
func (s *PlanService) afterWrite(ctx context.Context, key isoweek.WeekKey, agentIDs []string) {
	years := s.cache.ForgetWeek(ctx, key, agentIDs)

	if s.rewarm != nil && len(agentIDs) > 0 {
		if err := s.rewarm.Schedule(agentIDs, years); err != nil {
			s.logger.Warn("failed to schedule recap rewarm", zap.Error(err))
		}
	}
}

func (s *PlanService) record(ctx context.Context, actor, action string, key isoweek.WeekKey, payload interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	resourceID := key.String()
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   "week",
		ResourceID: &resourceID,
		NewValues:  body,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// catalog returns every prime type, inactive ones included, so historic assignments keep
// their amounts.
func (s *PlanService) catalog(ctx context.Context) (map[string]models.PrimeType, error) {
	items, err := s.primes.List(ctx, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prime types")
	}
	out := make(map[string]models.PrimeType, len(items))
	for _, p := range items {
		out[p.Code] = p
	}
	return out, nil
}

func (s *PlanService) loadPlans(ctx context.Context, agentIDs []string, from, to isoweek.Date) (map[string]dto.WeekPlan, error) {
	rows, err := s.assignments.ListRange(ctx, models.AssignmentFilter{AgentIDs: agentIDs, From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	plans := make(map[string]dto.WeekPlan, len(agentIDs))
	for _, row := range rows {
		if len(row.Codes) == 0 {
			continue
		}
		plan := plans[row.AgentID]
		if plan == nil {
			plan = dto.WeekPlan{}
			plans[row.AgentID] = plan
		}
		plan[row.Day.String()] = append([]string(nil), row.Codes...)
	}
	return plans, nil
}

// normalizeCodes trims and de-duplicates codes keeping first-seen order. Every code must be allowed.
func normalizeCodes(raw []string, allowed map[string]struct{}) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, code := range raw {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		if _, ok := allowed[code]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownPrime, fmt.Sprintf("unknown prime code %q", code))
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
