package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/primes-api/internal/service"
)

func TestExportRoutes(t *testing.T) {
	backend := newBackend()
	router := newTestRouter(backend, testRouterOptions{})

	t.Run("week export", func(t *testing.T) {
		w := serveRequest(router, http.MethodPost, "/api/v1/exports/week", map[string]interface{}{"year": 2024, "week": 10, "format": "csv"}, adminToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"download_url":"/api/v1/exports/download?token=t"`)
		assert.Equal(t, []string{"2024-W10.csv"}, backend.exports)
	})

	t.Run("week export validates payload", func(t *testing.T) {
		for _, payload := range []map[string]interface{}{
			{"year": 2024, "week": 10, "format": "xlsx"},
			{"year": 2024, "week": 54, "format": "pdf"},
			{"week": 10, "format": "pdf"},
		} {
			w := serveRequest(router, http.MethodPost, "/api/v1/exports/week", payload, adminToken)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)
		}
	})

	t.Run("recap export", func(t *testing.T) {
		payload := map[string]interface{}{"agentId": "7f1c9a52-3c1e-4a0e-9d8a-0b8f2f6a1a01", "year": 2024, "format": "pdf"}
		w := serveRequest(router, http.MethodPost, "/api/v1/exports/recap", payload, adminToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, backend.exports, "7f1c9a52-3c1e-4a0e-9d8a-0b8f2f6a1a01.pdf")

		payload["agentId"] = "Alice"
		w = serveRequest(router, http.MethodPost, "/api/v1/exports/recap", payload, adminToken)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("exports need an admin token", func(t *testing.T) {
		w := serveRequest(router, http.MethodPost, "/api/v1/exports/week", map[string]interface{}{"year": 2024, "week": 10, "format": "csv"}, viewerToken)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("download requires token", func(t *testing.T) {
		w := serveRequest(router, http.MethodGet, "/api/v1/exports/download", nil, "")
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = serveRequest(router, http.MethodGet, "/api/v1/exports/download?token=forged", nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, []string{"forged"}, backend.downloads)
	})

	t.Run("download streams the file", func(t *testing.T) {
		backend.download = &service.Download{
			File:        tempExportFile(t, "Agent;Lun\nAlice;J\n"),
			FileName:    "semaine-2024-W10.csv",
			ContentType: "text/csv",
		}
		w := serveRequest(router, http.MethodGet, "/api/v1/exports/download?token=signed", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Agent;Lun\nAlice;J\n", w.Body.String())
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="semaine-2024-W10.csv"`, w.Header().Get("Content-Disposition"))
	})
}

func TestExportRoutesAbsentWhenDisabled(t *testing.T) {
	router := newTestRouter(newBackend(), testRouterOptions{withoutExport: true})
	w := serveRequest(router, http.MethodGet, "/api/v1/exports/download?token=x", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/download?token=x", nil)
	h.Download(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FEATURE_DISABLED", decodeEnvelope(t, w).Error.Code)
}
