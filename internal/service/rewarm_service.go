package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/pkg/jobs"
)

// RewarmJobType tags recap rewarm jobs on the queue.
const RewarmJobType = "recap.rewarm"

// RewarmPayload lists the recaps to rebuild.
type RewarmPayload struct {
	AgentIDs []string
	Years    []int
}

type recapComputer interface {
	RecomputeRecap(ctx context.Context, agent *models.Agent, year int) (*dto.MonthRecap, error)
}

type rewarmAgentReader interface {
	FindByID(ctx context.Context, id string) (*models.Agent, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RewarmService rebuilds cached month recaps in the background after week writes.
type RewarmService struct {
	recaps      recapComputer
	agents      rewarmAgentReader
	queue       jobEnqueuer
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
}

// NewRewarmService constructs a RewarmService. Attach a queue with UseQueue before scheduling.
func NewRewarmService(recaps recapComputer, agents rewarmAgentReader, metrics *MetricsService, logger *zap.Logger) *RewarmService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewarmService{recaps: recaps, agents: agents, metrics: metrics, logger: logger, concurrency: 4}
}

// UseQueue sets the queue jobs are pushed to.
func (s *RewarmService) UseQueue(q jobEnqueuer) *RewarmService {
	s.queue = q
	return s
}

// Schedule implements RewarmScheduler.
func (s *RewarmService) Schedule(agentIDs []string, years []int) error {
	if s.queue == nil || len(agentIDs) == 0 || len(years) == 0 {
		return nil
	}
	ids := append([]string(nil), agentIDs...)
	sort.Strings(ids)
	return s.queue.Enqueue(jobs.Job{
		ID:      fmt.Sprintf("rewarm:%s:%v", strings.Join(ids, ","), years),
		Type:    RewarmJobType,
		Payload: RewarmPayload{AgentIDs: ids, Years: append([]int(nil), years...)},
	})
}

// Handle is the jobs.Handler for rewarm jobs.
func (s *RewarmService) Handle(ctx context.Context, job jobs.Job) (err error) {
	defer func() { s.metrics.RecordRewarm(err) }()

	payload, ok := job.Payload.(RewarmPayload)
	if !ok {
		return fmt.Errorf("unexpected rewarm payload %T", job.Payload)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range payload.AgentIDs {
		id := id
		g.Go(func() error {
			agent, err := s.agents.FindByID(gctx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return fmt.Errorf("load agent %s: %w", id, err)
			}
			for _, year := range payload.Years {
				if _, err := s.recaps.RecomputeRecap(gctx, agent, year); err != nil {
					return fmt.Errorf("recompute recap %s/%d: %w", id, year, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Debug("recaps rewarmed", zap.String("job_id", job.ID), zap.Int("agents", len(payload.AgentIDs)))
	return nil
}
