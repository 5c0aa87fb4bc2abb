package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/pkg/cache"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
)

type catalogAgentStore interface {
	List(ctx context.Context, filter models.AgentFilter) ([]models.Agent, error)
	FindByID(ctx context.Context, id string) (*models.Agent, error)
	FindByName(ctx context.Context, name string) (*models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, agent *models.Agent) error
}

type primeTypeStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.PrimeType, error)
	Upsert(ctx context.Context, item *models.PrimeType) error
	SetActive(ctx context.Context, code string, active bool) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CatalogConfig tunes catalog caching.
type CatalogConfig struct {
	BootstrapTTL time.Duration
}

// CatalogService serves agents and the prime catalog.
type CatalogService struct {
	agents    catalogAgentStore
	primes    primeTypeStore
	cache     *CacheService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CatalogConfig
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(agents catalogAgentStore, primes primeTypeStore, cacheSvc *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg CatalogConfig) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BootstrapTTL <= 0 {
		cfg.BootstrapTTL = time.Hour
	}
	return &CatalogService{agents: agents, primes: primes, cache: cacheSvc, audit: audit, validator: validate, logger: logger, cfg: cfg}
}

// Bootstrap returns active agents in display order and the active prime catalog.
func (s *CatalogService) Bootstrap(ctx context.Context) (*dto.Bootstrap, bool, error) {
	key := bootstrapCacheKey()
	var cached dto.Bootstrap
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	agents, err := s.agents.List(ctx, models.AgentFilter{ActiveOnly: true})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agents")
	}
	primes, err := s.primes.List(ctx, true)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prime types")
	}

	result := &dto.Bootstrap{
		Agents:     make([]dto.AgentView, 0, len(agents)),
		AgentNames: make([]string, 0, len(agents)),
		PrimeTypes: make(map[string]dto.PrimeTypeView, len(primes)),
		Icons:      make(map[string]string, len(primes)),
	}
	for _, a := range agents {
		result.Agents = append(result.Agents, dto.AgentView{ID: a.ID, Name: a.Name})
		result.AgentNames = append(result.AgentNames, a.Name)
	}
	for _, p := range primes {
		result.PrimeTypes[p.Code] = dto.PrimeTypeView{Label: p.Label, Amount: p.Amount, Icon: p.DisplayIcon()}
		result.Icons[p.Code] = p.DisplayIcon()
	}

	if err := s.cache.Set(ctx, key, result, s.cfg.BootstrapTTL); err != nil {
		s.logger.Debug("bootstrap not cached", zap.Error(err))
	}
	return result, false, nil
}

// UpsertPrimeType creates or replaces a catalog entry. Amount changes affect every cached
// total, so the whole read cache is dropped.
func (s *CatalogService) UpsertPrimeType(ctx context.Context, actor, code string, req dto.UpsertPrimeTypeRequest) (*models.PrimeType, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 16 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "prime code must be 1 to 16 characters")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prime type payload")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	item := &models.PrimeType{
		Code:   code,
		Label:  strings.TrimSpace(req.Label),
		Amount: models.FromCents(models.ToCents(req.Amount)),
		Icon:   strings.TrimSpace(req.Icon),
		Active: active,
	}
	if err := s.primes.Upsert(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save prime type")
	}
	s.invalidateAll(ctx)
	s.record(ctx, actor, models.AuditActionPrimeUpsert, "prime_type", code, item)
	return item, nil
}

// DeactivatePrimeType hides a code from the catalog. Stored assignments keep it.
func (s *CatalogService) DeactivatePrimeType(ctx context.Context, actor, code string) error {
	if err := s.primes.SetActive(ctx, code, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "prime type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate prime type")
	}
	s.invalidateAll(ctx)
	s.record(ctx, actor, models.AuditActionPrimeDisable, "prime_type", code, map[string]string{"code": code})
	return nil
}

// CreateAgent registers a new agent. Names are unique.
func (s *CatalogService) CreateAgent(ctx context.Context, actor string, req dto.AgentRequest) (*models.Agent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid agent payload")
	}
	name := strings.TrimSpace(req.Name)
	if existing, err := s.agents.FindByName(ctx, name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "agent name already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check agent name")
	}

	agent := &models.Agent{Name: name, Position: req.Position, Active: true}
	if req.Active != nil {
		agent.Active = *req.Active
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create agent")
	}
	s.invalidateBootstrap(ctx)
	s.record(ctx, actor, models.AuditActionAgentCreate, "agent", agent.ID, agent)
	return agent, nil
}

// UpdateAgent renames, reorders or (de)activates an agent.
func (s *CatalogService) UpdateAgent(ctx context.Context, actor, id string, req dto.AgentRequest) (*models.Agent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid agent payload")
	}
	agent, err := s.agents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}

	name := strings.TrimSpace(req.Name)
	if name != agent.Name {
		if other, err := s.agents.FindByName(ctx, name); err == nil && other != nil && other.ID != agent.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "agent name already exists")
		}
	}
	agent.Name = name
	agent.Position = req.Position
	if req.Active != nil {
		agent.Active = *req.Active
	}
	if err := s.agents.Update(ctx, agent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update agent")
	}
	s.invalidateBootstrap(ctx)
	s.cache.ForgetAgent(ctx, agent.ID)
	s.record(ctx, actor, models.AuditActionAgentUpdate, "agent", agent.ID, agent)
	return agent, nil
}

func (s *CatalogService) invalidateBootstrap(ctx context.Context) {
	_ = s.cache.Delete(ctx, bootstrapCacheKey())
}

func (s *CatalogService) invalidateAll(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cache.Key("*"))
}

func (s *CatalogService) record(ctx context.Context, actor, action, resource, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  body,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
