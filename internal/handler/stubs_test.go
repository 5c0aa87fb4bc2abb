package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/models"
	"github.com/noah-isme/primes-api/internal/service"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/export"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/jobs"
)

const (
	adminToken  = "admin-token"
	viewerToken = "viewer-token"
)

type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	switch token {
	case adminToken:
		return &models.JWTClaims{Operator: "ops", Role: models.RoleAdmin}, nil
	case viewerToken:
		return &models.JWTClaims{Role: models.RoleViewer}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
}

// backendStub implements every service interface the handlers depend on.
type backendStub struct {
	current isoweek.WeekKey
	err     error
	hit     bool

	weekKeys   []isoweek.WeekKey
	weekRefs   []string
	planRanges [][2]isoweek.Date
	recapYears []int
	saved      []dto.BulkWeekRequest
	actors     []string
	resetRefs  [][]string
	upserts    []dto.UpsertPrimeTypeRequest
	logins     []models.AdminLoginRequest
	exports    []string
	downloads  []string
	download   *service.Download
	auditLimit []int
}

func newBackend() *backendStub {
	return &backendStub{current: isoweek.WeekKey{Year: 2024, Week: 10}}
}

func (b *backendStub) Bootstrap(ctx context.Context) (*dto.Bootstrap, bool, error) {
	if b.err != nil {
		return nil, false, b.err
	}
	return &dto.Bootstrap{
		Agents:     []dto.AgentView{{ID: "a1", Name: "Alice"}, {ID: "a2", Name: "Bruno"}},
		AgentNames: []string{"Alice", "Bruno"},
		PrimeTypes: map[string]dto.PrimeTypeView{"J": {Label: "Jour férié", Amount: 40.5, Icon: "🎉"}},
		Icons:      map[string]string{"J": "🎉"},
	}, b.hit, nil
}

func (b *backendStub) UpsertPrimeType(ctx context.Context, actor, code string, req dto.UpsertPrimeTypeRequest) (*models.PrimeType, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	b.upserts = append(b.upserts, req)
	return &models.PrimeType{Code: code, Label: req.Label, Active: true}, nil
}

func (b *backendStub) DeactivatePrimeType(ctx context.Context, actor, code string) error {
	b.actors = append(b.actors, actor)
	return b.err
}

func (b *backendStub) CreateAgent(ctx context.Context, actor string, req dto.AgentRequest) (*models.Agent, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	return &models.Agent{ID: "new-agent", Name: req.Name, Position: req.Position, Active: true}, nil
}

func (b *backendStub) UpdateAgent(ctx context.Context, actor, id string, req dto.AgentRequest) (*models.Agent, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	return &models.Agent{ID: id, Name: req.Name, Position: req.Position, Active: true}, nil
}

func (b *backendStub) CurrentWeek() isoweek.WeekKey {
	return b.current
}

func (b *backendStub) WeekPlan(ctx context.Context, agentRef string, start, end isoweek.Date) (dto.WeekPlan, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.weekRefs = append(b.weekRefs, agentRef)
	b.planRanges = append(b.planRanges, [2]isoweek.Date{start, end})
	return dto.WeekPlan{start.String(): {"J"}}, nil
}

func (b *backendStub) WeekView(ctx context.Context, agentRef string, key isoweek.WeekKey) (*dto.WeekView, bool, error) {
	if b.err != nil {
		return nil, false, b.err
	}
	b.weekRefs = append(b.weekRefs, agentRef)
	b.weekKeys = append(b.weekKeys, key)
	return &dto.WeekView{
		Agent:     dto.AgentView{ID: "a1", Name: agentRef},
		Week:      key,
		WeekLabel: "Semaine " + key.String(),
		Total:     40.5,
	}, b.hit, nil
}

func (b *backendStub) MonthRecap(ctx context.Context, agentRef string, year int) (*dto.MonthRecap, bool, error) {
	if b.err != nil {
		return nil, false, b.err
	}
	b.weekRefs = append(b.weekRefs, agentRef)
	b.recapYears = append(b.recapYears, year)
	recap := &dto.MonthRecap{Agent: dto.AgentView{ID: "a1", Name: agentRef}, Year: year, Total: 81}
	recap.Months[2] = 81
	return recap, b.hit, nil
}

func (b *backendStub) AdminWeek(ctx context.Context, key isoweek.WeekKey) (*dto.AdminWeek, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.weekKeys = append(b.weekKeys, key)
	start, end := isoweek.Range(key)
	return &dto.AdminWeek{Week: key, Start: start, End: end, Plans: map[string]dto.WeekPlan{}}, nil
}

func (b *backendStub) SaveWeekBulk(ctx context.Context, actor string, req dto.BulkWeekRequest) (*dto.BulkWeekResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	b.saved = append(b.saved, req)
	days := 0
	for _, entry := range req.Entries {
		days += len(entry.Days)
	}
	return &dto.BulkWeekResult{Week: isoweek.KeyOf(req.Start), Agents: len(req.Entries), Days: days}, nil
}

func (b *backendStub) ResetWeek(ctx context.Context, actor string, key isoweek.WeekKey, agentRefs []string) (*dto.ResetWeekResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	b.resetRefs = append(b.resetRefs, agentRefs)
	return &dto.ResetWeekResult{Week: key, Deleted: 3}, nil
}

func (b *backendStub) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.AdminLoginResponse, error) {
	b.logins = append(b.logins, req)
	if req.Code != "4242" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.AdminLoginResponse{AccessToken: adminToken, TokenType: "Bearer", ExpiresIn: 3600, Role: models.RoleAdmin}, nil
}

func (b *backendStub) WeekExport(ctx context.Context, actor string, key isoweek.WeekKey, format export.Format) (*models.ExportResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	b.exports = append(b.exports, key.String()+"."+string(format))
	return &models.ExportResult{ID: "exp-1", Kind: models.ExportKindWeek, Format: string(format), DownloadURL: "/api/v1/exports/download?token=t"}, nil
}

func (b *backendStub) RecapExport(ctx context.Context, actor, agentRef string, year int, format export.Format) (*models.ExportResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.actors = append(b.actors, actor)
	b.exports = append(b.exports, agentRef+"."+string(format))
	return &models.ExportResult{ID: "exp-2", Kind: models.ExportKindRecap, Format: string(format)}, nil
}

func (b *backendStub) ResolveDownload(token string) (*service.Download, error) {
	b.downloads = append(b.downloads, token)
	if b.download == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	return b.download, nil
}

func (b *backendStub) Recent(ctx context.Context, limit int) ([]dto.AuditEntry, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.auditLimit = append(b.auditLimit, limit)
	return []dto.AuditEntry{{ID: "log-1", Actor: "ops", Action: models.AuditActionWeekSave, Resource: "week", ResourceID: "2024-W10"}}, nil
}

type queueStatsStub struct{}

func (queueStatsStub) Stats() jobs.Stats { return jobs.Stats{Pending: 2, Processed: 5} }

type testRouterOptions struct {
	legacyEnabled bool
	withoutExport bool
	checks        map[string]ReadinessCheck
}

func newTestRouter(b *backendStub, opts testRouterOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	metrics := NewMetricsHandler(nil).WithQueue(queueStatsStub{})
	for name, check := range opts.checks {
		metrics.WithCheck(name, check)
	}
	handlers := Handlers{
		Auth:      NewAuthHandler(b),
		Catalog:   NewCatalogHandler(b),
		Plan:      NewPlanHandler(b),
		AdminWeek: NewAdminWeekHandler(b),
		Audit:     NewAuditHandler(b),
		Export:    NewExportHandler(b, nil),
		Legacy:    NewLegacyHandler(b, b, tokenStub{}, zap.NewNop()),
		Metrics:   metrics,
	}
	if opts.withoutExport {
		handlers.Export = nil
	}
	RegisterRoutes(router, "/api/v1", handlers, RouteOptions{
		Tokens:        tokenStub{},
		Logger:        zap.NewNop(),
		LegacyEnabled: opts.legacyEnabled,
		DocsURL:       "/docs/index.html",
	})
	return router
}

func serveRequest(router *gin.Engine, method, target string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func tempExportFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := t.TempDir() + "/week.csv"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	return f
}
