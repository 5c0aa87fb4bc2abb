package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/dto"
	"github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/response"
)

type catalogService interface {
	Bootstrap(ctx context.Context) (*dto.Bootstrap, bool, error)
	UpsertPrimeType(ctx context.Context, actor, code string, req dto.UpsertPrimeTypeRequest) (*models.PrimeType, error)
	DeactivatePrimeType(ctx context.Context, actor, code string) error
	CreateAgent(ctx context.Context, actor string, req dto.AgentRequest) (*models.Agent, error)
	UpdateAgent(ctx context.Context, actor, id string, req dto.AgentRequest) (*models.Agent, error)
}

// CatalogHandler serves agents and prime types.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Bootstrap godoc
// @Summary Agents and prime catalog
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bootstrap [get]
func (h *CatalogHandler) Bootstrap(c *gin.Context) {
	result, hit, err := h.service.Bootstrap(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// UpsertPrimeType godoc
// @Summary Create or replace a prime type
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Prime code"
// @Param payload body dto.UpsertPrimeTypeRequest true "Prime type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/prime-types/{code} [put]
func (h *CatalogHandler) UpsertPrimeType(c *gin.Context) {
	var req dto.UpsertPrimeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid prime type payload"))
		return
	}
	item, err := h.service.UpsertPrimeType(c.Request.Context(), actorFromContext(c), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeactivatePrimeType godoc
// @Summary Deactivate a prime type
// @Tags Admin
// @Security BearerAuth
// @Param code path string true "Prime code"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/prime-types/{code} [delete]
func (h *CatalogHandler) DeactivatePrimeType(c *gin.Context) {
	if err := h.service.DeactivatePrimeType(c.Request.Context(), actorFromContext(c), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateAgent godoc
// @Summary Create an agent
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AgentRequest true "Agent"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/agents [post]
func (h *CatalogHandler) CreateAgent(c *gin.Context) {
	var req dto.AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid agent payload"))
		return
	}
	agent, err := h.service.CreateAgent(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, agent)
}

// UpdateAgent godoc
// @Summary Update an agent
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Agent ID"
// @Param payload body dto.AgentRequest true "Agent"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/agents/{id} [put]
func (h *CatalogHandler) UpdateAgent(c *gin.Context) {
	var req dto.AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid agent payload"))
		return
	}
	agent, err := h.service.UpdateAgent(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, agent, nil)
}
