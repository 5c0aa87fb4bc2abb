package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/middleware"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/response"
)

type weekAdministrator interface {
	AdminWeek(ctx context.Context, key isoweek.WeekKey) (*dto.AdminWeek, error)
	SaveWeekBulk(ctx context.Context, actor string, req dto.BulkWeekRequest) (*dto.BulkWeekResult, error)
	ResetWeek(ctx context.Context, actor string, key isoweek.WeekKey, agentRefs []string) (*dto.ResetWeekResult, error)
}

// AdminWeekHandler serves the admin grid.
type AdminWeekHandler struct {
	service weekAdministrator
}

// NewAdminWeekHandler constructs the handler.
func NewAdminWeekHandler(svc weekAdministrator) *AdminWeekHandler {
	return &AdminWeekHandler{service: svc}
}

// Get godoc
// @Summary Every active agent's plan for a week
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param year query int false "ISO year"
// @Param week query string true "ISO week number, or YYYY-Www when year is omitted"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/week [get]
func (h *AdminWeekHandler) Get(c *gin.Context) {
	key, err := parseWeekQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	grid, err := h.service.AdminWeek(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetWeek(c, key)
	response.JSON(c, http.StatusOK, grid, middleware.ExtractMeta(c))
}

// Save godoc
// @Summary Replace a week for the listed agents
// @Description Days omitted from an entry are cleared. Codes must be active catalog codes.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkWeekRequest true "Week plans"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/week [put]
func (h *AdminWeekHandler) Save(c *gin.Context) {
	var req dto.BulkWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.InvalidArgument(err, "invalid week payload"))
		return
	}
	result, err := h.service.SaveWeekBulk(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Delete a week's assignments
// @Description Without agent parameters every agent's week is cleared.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param year query int false "ISO year"
// @Param week query string true "ISO week number, or YYYY-Www when year is omitted"
// @Param agent query []string false "Agent IDs or names" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /admin/week [delete]
func (h *AdminWeekHandler) Reset(c *gin.Context) {
	key, err := parseWeekQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ResetWeek(c.Request.Context(), actorFromContext(c), key, c.QueryArray("agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
