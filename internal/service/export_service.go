package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/export"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportPlanReader interface {
	AdminWeek(ctx context.Context, key isoweek.WeekKey) (*dto.AdminWeek, error)
	MonthRecap(ctx context.Context, agentRef string, year int) (*dto.MonthRecap, bool, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// Download is an opened export file ready to stream.
type Download struct {
	File        *os.File
	FileName    string
	ContentType string
}

// ExportService renders week grids and recaps into files and signs download links.
type ExportService struct {
	plans   exportPlanReader
	primes  primeCatalogReader
	storage fileStorage
	signer  *storage.SignedURLSigner
	audit   auditLogger
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(plans exportPlanReader, primes primeCatalogReader, store fileStorage, signer *storage.SignedURLSigner, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{plans: plans, primes: primes, storage: store, signer: signer, audit: audit, metrics: metrics, logger: logger, cfg: cfg}
}

// WeekExport renders the admin grid of a week.
func (s *ExportService) WeekExport(ctx context.Context, actor string, key isoweek.WeekKey, format export.Format) (*models.ExportResult, error) {
	week, err := s.plans.AdminWeek(ctx, key)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	dataset := buildWeekDataset(week, catalog)
	name := fmt.Sprintf("semaine-%s", storage.SafeName(key.String()))
	return s.store(ctx, actor, models.ExportKindWeek, format, name, dataset)
}

// RecapExport renders an agent's month recap.
func (s *ExportService) RecapExport(ctx context.Context, actor, agentRef string, year int, format export.Format) (*models.ExportResult, error) {
	recap, _, err := s.plans.MonthRecap(ctx, agentRef, year)
	if err != nil {
		return nil, err
	}
	dataset := buildRecapDataset(recap)
	name := fmt.Sprintf("recap-%s-%d", storage.SafeName(recap.Agent.Name), year)
	return s.store(ctx, actor, models.ExportKindRecap, format, name, dataset)
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *ExportService) ResolveDownload(token string) (*Download, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	contentType := "application/octet-stream"
	switch strings.TrimPrefix(path.Ext(relPath), ".") {
	case string(export.FormatCSV):
		contentType = export.NewCSVExporter().ContentType()
	case string(export.FormatPDF):
		contentType = export.NewPDFExporter().ContentType()
	}
	return &Download{File: file, FileName: path.Base(relPath), ContentType: contentType}, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup calls Cleanup every interval until ctx is cancelled.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

func (s *ExportService) store(ctx context.Context, actor string, kind models.ExportKind, format export.Format, baseName string, dataset export.Dataset) (*models.ExportResult, error) {
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	fileName := fmt.Sprintf("%s.%s", baseName, renderer.Extension())
	relPath, err := s.storage.Save(path.Join(string(kind), id, fileName), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	s.metrics.RecordExport(string(kind), string(format))

	if s.audit != nil {
		body := []byte(fmt.Sprintf(`{"file":%q,"format":%q}`, relPath, format))
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			Actor:      actor,
			Action:     models.AuditActionExportGenerate,
			Resource:   "export",
			ResourceID: &id,
			NewValues:  body,
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}

	return &models.ExportResult{
		ID:          id,
		Kind:        kind,
		Format:      string(format),
		FileName:    fileName,
		DownloadURL: strings.TrimRight(s.cfg.APIPrefix, "/") + "/exports/download?token=" + url.QueryEscape(token),
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *ExportService) catalog(ctx context.Context) (map[string]models.PrimeType, error) {
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

func buildWeekDataset(week *dto.AdminWeek, catalog map[string]models.PrimeType) export.Dataset {
	headers := make([]string, 0, len(week.Dates)+2)
	headers = append(headers, "Agent")
	for _, d := range week.Dates {
		headers = append(headers, dayNameFR(d)+" "+formatDateFR(d))
	}
	headers = append(headers, "Total")

	rows := make([]map[string]string, 0, len(week.Agents))
	footer := map[string]string{"Agent": "Total"}
	dayTotals := make([]int64, len(week.Dates))
	var grand int64
	for _, agent := range week.Agents {
		plan := week.Plans[agent.ID]
		row := map[string]string{"Agent": agent.Name}
		var agentTotal int64
		for i, d := range week.Dates {
			codes := plan[d.String()]
			row[headers[i+1]] = strings.Join(codes, ", ")
			for _, code := range codes {
				if p, ok := catalog[code]; ok {
					agentTotal += p.AmountCents()
					dayTotals[i] += p.AmountCents()
				}
			}
		}
		row["Total"] = formatEuros(models.FromCents(agentTotal))
		grand += agentTotal
		rows = append(rows, row)
	}
	for i := range week.Dates {
		footer[headers[i+1]] = formatEuros(models.FromCents(dayTotals[i]))
	}
	footer["Total"] = formatEuros(models.FromCents(grand))

	start, end := week.Start, week.End
	return export.Dataset{
		Title:   weekLabel(week.Week) + " (" + rangeLabel(start, end) + ")",
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
	}
}

func buildRecapDataset(recap *dto.MonthRecap) export.Dataset {
	rows := make([]map[string]string, 0, len(recap.Months))
	for i, amount := range recap.Months {
		rows = append(rows, map[string]string{"Mois": recap.Labels[i], "Montant": formatEuros(amount)})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Récapitulatif %d — %s", recap.Year, recap.Agent.Name),
		Headers: []string{"Mois", "Montant"},
		Rows:    rows,
		Footer:  map[string]string{"Mois": "Total année", "Montant": formatEuros(recap.Total)},
	}
}
