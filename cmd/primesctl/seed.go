package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/internal/repository"
	"github.com/noah-isme/primes-api/internal/service"
	"github.com/noah-isme/primes-api/pkg/cache"
	"github.com/noah-isme/primes-api/pkg/config"
	"github.com/noah-isme/primes-api/pkg/database"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/logger"
)

const seedActor = "primesctl"

// seedFile is the YAML layout accepted by `primesctl seed`.
type seedFile struct {
	PrimeTypes []seedPrimeType `yaml:"prime_types"`
	Agents     []seedAgent     `yaml:"agents"`
}

type seedPrimeType struct {
	Code   string  `yaml:"code"`
	Label  string  `yaml:"label"`
	Amount float64 `yaml:"amount"`
	Icon   string  `yaml:"icon"`
	Active *bool   `yaml:"active"`
}

type seedAgent struct {
	Name     string `yaml:"name"`
	Position int    `yaml:"position"`
}

type seedTarget interface {
	UpsertPrimeType(ctx context.Context, actor, code string, req dto.UpsertPrimeTypeRequest) (*models.PrimeType, error)
	CreateAgent(ctx context.Context, actor string, req dto.AgentRequest) (*models.Agent, error)
}

type seedReport struct {
	PrimeTypes    int
	AgentsCreated int
	AgentsSkipped int
}

func newSeedCmd() *cobra.Command {
	var (
		path    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load agents and prime types from a YAML file",
		Long: `Upserts every prime type of the file and creates the agents that do not exist yet.
Existing agents are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			seed, err := parseSeed(f)
			if err != nil {
				return err
			}

			target, cleanup, err := openCatalog(cmd.Context(), migrate)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := applySeed(cmd.Context(), target, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prime types: %d, agents created: %d, agents skipped: %d\n",
				report.PrimeTypes, report.AgentsCreated, report.AgentsSkipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "catalog.yaml", "seed file")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply the schema before seeding")
	return cmd
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	seen := make(map[string]struct{}, len(seed.PrimeTypes))
	for _, p := range seed.PrimeTypes {
		if _, dup := seen[p.Code]; dup {
			return nil, fmt.Errorf("prime type %q is listed twice", p.Code)
		}
		seen[p.Code] = struct{}{}
	}
	return &seed, nil
}

func applySeed(ctx context.Context, target seedTarget, seed *seedFile) (seedReport, error) {
	var report seedReport
	for _, p := range seed.PrimeTypes {
		req := dto.UpsertPrimeTypeRequest{Label: p.Label, Amount: p.Amount, Icon: p.Icon, Active: p.Active}
		if _, err := target.UpsertPrimeType(ctx, seedActor, p.Code, req); err != nil {
			return report, fmt.Errorf("prime type %q: %w", p.Code, err)
		}
		report.PrimeTypes++
	}
	for _, a := range seed.Agents {
		_, err := target.CreateAgent(ctx, seedActor, dto.AgentRequest{Name: a.Name, Position: a.Position})
		switch {
		case err == nil:
			report.AgentsCreated++
		case errors.Is(err, appErrors.ErrConflict):
			report.AgentsSkipped++
		default:
			return report, fmt.Errorf("agent %q: %w", a.Name, err)
		}
	}
	return report, nil
}

// openCatalog wires a CatalogService against the configured database and, when reachable,
// Redis so that seeding drops stale cached catalogs.
func openCatalog(ctx context.Context, migrate bool) (seedTarget, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cached catalog not invalidated", zap.Error(err))
	}

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), nil, cfg.Cache.BootstrapTTL, logr, redisClient != nil)
	svc := service.NewCatalogService(
		repository.NewAgentRepository(db),
		repository.NewPrimeTypeRepository(db),
		cacheSvc,
		repository.NewAuditRepository(db),
		validator.New(),
		logr,
		service.CatalogConfig{BootstrapTTL: cfg.Cache.BootstrapTTL},
	)

	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = db.Close()
		_ = logr.Sync()
	}
	return svc, cleanup, nil
}
