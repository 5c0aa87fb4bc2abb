package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/dto"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/response"
)

const defaultAuditLimit = 50

type auditService interface {
	Recent(ctx context.Context, limit int) ([]dto.AuditEntry, error)
}

// AuditHandler lists admin actions.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Latest admin actions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Entries to return (1-200, default 50)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.InvalidArgument(err, "invalid limit"))
			return
		}
		limit = parsed
	}

	entries, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}
