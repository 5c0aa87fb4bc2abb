package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/response"
)

type planReader interface {
	CurrentWeek() isoweek.WeekKey
	WeekPlan(ctx context.Context, agentRef string, start, end isoweek.Date) (dto.WeekPlan, error)
	WeekView(ctx context.Context, agentRef string, key isoweek.WeekKey) (*dto.WeekView, bool, error)
	MonthRecap(ctx context.Context, agentRef string, year int) (*dto.MonthRecap, bool, error)
}

// PlanHandler serves agents' weeks and recaps.
type PlanHandler struct {
	service planReader
}

// NewPlanHandler constructs the handler.
func NewPlanHandler(svc planReader) *PlanHandler {
	return &PlanHandler{service: svc}
}

type currentWeekResponse struct {
	Week  isoweek.WeekKey `json:"week"`
	Label string          `json:"label"`
	Start isoweek.Date    `json:"start"`
	End   isoweek.Date    `json:"end"`
}

// CurrentWeek godoc
// @Summary ISO week of today
// @Tags Plan
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /weeks/current [get]
func (h *PlanHandler) CurrentWeek(c *gin.Context) {
	key := h.service.CurrentWeek()
	start, end := isoweek.Range(key)
	response.JSON(c, http.StatusOK, currentWeekResponse{Week: key, Label: key.String(), Start: start, End: end}, nil)
}

// AgentWeek godoc
// @Summary Agent week view
// @Description Seven days with chips and totals. Defaults to the current week.
// @Tags Plan
// @Produce json
// @Param id path string true "Agent ID or name"
// @Param year query int false "ISO year"
// @Param week query string false "ISO week number, or YYYY-Www when year is omitted"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /agents/{id}/week [get]
func (h *PlanHandler) AgentWeek(c *gin.Context) {
	key := h.service.CurrentWeek()
	if c.Query("week") != "" || c.Query("year") != "" {
		parsed, err := parseWeekQuery(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		key = parsed
	}

	view, hit, err := h.service.WeekView(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetWeek(c, key)
	response.JSON(c, http.StatusOK, view, middleware.ExtractMeta(c))
}

// AgentPlan godoc
// @Summary Agent codes per day
// @Tags Plan
// @Produce json
// @Param id path string true "Agent ID or name"
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Day after the last one (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /agents/{id}/plan [get]
func (h *PlanHandler) AgentPlan(c *gin.Context) {
	start, err := parseDateParam(c.Query("start"), "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := parseDateParam(c.Query("end"), "end")
	if err != nil {
		response.Error(c, err)
		return
	}

	plan, err := h.service.WeekPlan(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// AgentRecap godoc
// @Summary Agent totals per month
// @Tags Plan
// @Produce json
// @Param id path string true "Agent ID or name"
// @Param year query int true "Calendar year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /agents/{id}/recap [get]
func (h *PlanHandler) AgentRecap(c *gin.Context) {
	year, err := parseYearQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	recap, hit, err := h.service.MonthRecap(c.Request.Context(), c.Param("id"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, recap, middleware.ExtractMeta(c))
}
