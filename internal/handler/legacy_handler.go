package handler

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/response"
)

type legacyCatalog interface {
	Bootstrap(ctx context.Context) (*dto.Bootstrap, bool, error)
}

type legacyPlans interface {
	WeekPlan(ctx context.Context, agentRef string, start, end isoweek.Date) (dto.WeekPlan, error)
	MonthRecap(ctx context.Context, agentRef string, year int) (*dto.MonthRecap, bool, error)
	SaveWeekBulk(ctx context.Context, actor string, req dto.BulkWeekRequest) (*dto.BulkWeekResult, error)
}

// LegacyHandler answers the spreadsheet-macro protocol: GET with an action parameter,
// JSONP responses and {ok:true|false} bodies.
type LegacyHandler struct {
	catalog legacyCatalog
	plans   legacyPlans
	tokens  middleware.TokenValidator
	logger  *zap.Logger
}

// NewLegacyHandler constructs the handler.
func NewLegacyHandler(catalog legacyCatalog, plans legacyPlans, tokens middleware.TokenValidator, logger *zap.Logger) *LegacyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyHandler{catalog: catalog, plans: plans, tokens: tokens, logger: logger}
}

// Macro godoc
// @Summary Legacy macro endpoint
// @Description Actions: bootstrap, weekPlan (agent, start, end), monthRecap (agent, year),
// @Description setWeekBulk (token, start, end, payload). Always answers 200 with {ok, ...}.
// @Tags Legacy
// @Produce json
// @Param action query string true "bootstrap | weekPlan | monthRecap | setWeekBulk"
// @Param callback query string false "JSONP callback"
// @Success 200 {object} map[string]interface{}
// @Router /macro [get]
func (h *LegacyHandler) Macro(c *gin.Context) {
	action := strings.TrimSpace(c.Query("action"))
	switch action {
	case "bootstrap":
		h.bootstrap(c)
	case "weekPlan":
		h.weekPlan(c)
	case "monthRecap":
		h.monthRecap(c)
	case "setWeekBulk":
		h.setWeekBulk(c)
	default:
		response.LegacyError(c, appErrors.Clone(appErrors.ErrInvalidArgument, "unknown action: "+action))
	}
}

func (h *LegacyHandler) bootstrap(c *gin.Context) {
	boot, _, err := h.catalog.Bootstrap(c.Request.Context())
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.LegacyOK(c, gin.H{
		"agents":     boot.AgentNames,
		"primeTypes": boot.PrimeTypes,
		"icons":      boot.Icons,
	})
}

func (h *LegacyHandler) weekPlan(c *gin.Context) {
	start, err := parseDateParam(c.Query("start"), "start")
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	end, err := parseDateParam(c.Query("end"), "end")
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	plan, err := h.plans.WeekPlan(c.Request.Context(), c.Query("agent"), start, end)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.LegacyOK(c, gin.H{"plan": plan})
}

func (h *LegacyHandler) monthRecap(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		response.LegacyError(c, appErrors.InvalidArgument(err, "invalid year"))
		return
	}
	recap, _, err := h.plans.MonthRecap(c.Request.Context(), c.Query("agent"), year)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.LegacyOK(c, gin.H{"year": recap.Year, "months": recap.Months, "total": recap.Total})
}

func (h *LegacyHandler) setWeekBulk(c *gin.Context) {
	claims, err := h.authorize(c)
	if err != nil {
		response.LegacyError(c, err)
		return
	}

	start, err := parseDateParam(c.Query("start"), "start")
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	end, err := parseDateParam(c.Query("end"), "end")
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	entries, err := decodeLegacyPayload(c.Query("payload"))
	if err != nil {
		response.LegacyError(c, err)
		return
	}

	result, err := h.plans.SaveWeekBulk(c.Request.Context(), claims.Actor(), dto.BulkWeekRequest{Start: start, End: end, Entries: entries})
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	h.logger.Info("legacy week saved", zap.String("week", result.Week.String()), zap.String("actor", claims.Actor()))
	response.LegacyOK(c, gin.H{"week": result.Week.String(), "agents": result.Agents, "days": result.Days})
}

// authorize reads the admin JWT from the "token" parameter, or from the Authorization header
// already checked by OptionalJWT.
func (h *LegacyHandler) authorize(c *gin.Context) (*models.JWTClaims, error) {
	claims := middleware.CurrentClaims(c)
	if token := strings.TrimSpace(c.Query("token")); token != "" && h.tokens != nil {
		validated, err := h.tokens.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		claims = validated
	}
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "admin token is required")
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	return claims, nil
}

// decodeLegacyPayload accepts the JSON array either as is or percent-encoded once more, which
// is how the macro client sends it.
func decodeLegacyPayload(raw string) ([]dto.BulkWeekEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "payload is required")
	}
	if !strings.HasPrefix(raw, "[") {
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, appErrors.InvalidArgument(err, "payload is not URL encoded JSON")
		}
		raw = decoded
	}
	var entries []dto.BulkWeekEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, appErrors.InvalidArgument(err, "payload is not a JSON array of {agent, days}")
	}
	return entries, nil
}
