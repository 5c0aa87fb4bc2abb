package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/internal/repository"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/jobs"
)

const (
	aliceID = "7f1c9a52-3c1e-4a0e-9d8a-0b8f2f6a1a01"
	brunoID = "7f1c9a52-3c1e-4a0e-9d8a-0b8f2f6a1a02"
)

type agentStoreStub struct {
	agents  []models.Agent
	listErr error
	created []*models.Agent
	updated []*models.Agent
}

func newAgentStore() *agentStoreStub {
	return &agentStoreStub{agents: []models.Agent{
		{ID: aliceID, Name: "Alice", Position: 0, Active: true},
		{ID: brunoID, Name: "Bruno", Position: 1, Active: true},
	}}
}

func (s *agentStoreStub) List(ctx context.Context, filter models.AgentFilter) ([]models.Agent, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		if filter.ActiveOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *agentStoreStub) FindByID(ctx context.Context, id string) (*models.Agent, error) {
	for i := range s.agents {
		if s.agents[i].ID == id {
			a := s.agents[i]
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *agentStoreStub) FindByName(ctx context.Context, name string) (*models.Agent, error) {
	for i := range s.agents {
		if s.agents[i].Name == name {
			a := s.agents[i]
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *agentStoreStub) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = "new-agent"
	}
	s.created = append(s.created, agent)
	s.agents = append(s.agents, *agent)
	return nil
}

func (s *agentStoreStub) Update(ctx context.Context, agent *models.Agent) error {
	for i := range s.agents {
		if s.agents[i].ID == agent.ID {
			s.agents[i] = *agent
			s.updated = append(s.updated, agent)
			return nil
		}
	}
	return sql.ErrNoRows
}

type primeStoreStub struct {
	items     []models.PrimeType
	listCalls int
	upserted  []*models.PrimeType
}

func newPrimeStore() *primeStoreStub {
	return &primeStoreStub{items: []models.PrimeType{
		{Code: "J", Label: "Jour férié", Amount: 40.5, Icon: "🎉", Active: true},
		{Code: "N", Label: "Nuit", Amount: 25, Active: true},
		{Code: "X", Label: "Ancienne", Amount: 10, Active: false},
	}}
}

func (s *primeStoreStub) List(ctx context.Context, activeOnly bool) ([]models.PrimeType, error) {
	s.listCalls++
	out := make([]models.PrimeType, 0, len(s.items))
	for _, p := range s.items {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *primeStoreStub) Upsert(ctx context.Context, item *models.PrimeType) error {
	s.upserted = append(s.upserted, item)
	return nil
}

func (s *primeStoreStub) SetActive(ctx context.Context, code string, active bool) error {
	for i := range s.items {
		if s.items[i].Code == code {
			s.items[i].Active = active
			return nil
		}
	}
	return sql.ErrNoRows
}

type assignmentStoreStub struct {
	rows        []models.Assignment
	listCalls   int
	replaced    []repository.ReplaceRangeParams
	deleted     [][]string
	replaceErr  error
	deleteCount int64
}

func (s *assignmentStoreStub) ListRange(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	s.listCalls++
	ids := map[string]bool{}
	for _, id := range filter.AgentIDs {
		ids[id] = true
	}
	var out []models.Assignment
	for _, row := range s.rows {
		if len(ids) > 0 && !ids[row.AgentID] {
			continue
		}
		if row.Day.Before(filter.From) || !row.Day.Before(filter.To) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *assignmentStoreStub) ReplaceRange(ctx context.Context, params repository.ReplaceRangeParams) (int, error) {
	if s.replaceErr != nil {
		return 0, s.replaceErr
	}
	s.replaced = append(s.replaced, params)
	n := 0
	for _, days := range params.Plans {
		for _, codes := range days {
			if len(codes) > 0 {
				n++
			}
		}
	}
	return n, nil
}

func (s *assignmentStoreStub) DeleteRange(ctx context.Context, from, to isoweek.Date, agentIDs []string) (int64, error) {
	s.deleted = append(s.deleted, agentIDs)
	return s.deleteCount, nil
}

func assignment(agentID, day string, codes ...string) models.Assignment {
	return models.Assignment{AgentID: agentID, Day: isoweek.MustParseDate(day), Codes: codes}
}

type auditLoggerStub struct {
	logs    []*models.AuditLog
	listErr error
}

func (a *auditLoggerStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditLoggerStub) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	out := make([]models.AuditLog, 0, limit)
	for i := len(a.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *a.logs[i])
	}
	return out, nil
}

// memoryCache is an in-memory CacheRepository storing JSON like the Redis one.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			m.deleted = append(m.deleted, k)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

type schedulerStub struct {
	agentIDs []string
	years    []int
	calls    int
}

func (s *schedulerStub) Schedule(agentIDs []string, years []int) error {
	s.calls++
	s.agentIDs = append([]string(nil), agentIDs...)
	sort.Strings(s.agentIDs)
	s.years = append([]int(nil), years...)
	return nil
}

type enqueuerStub struct {
	jobs []jobs.Job
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	e.jobs = append(e.jobs, job)
	return nil
}
