package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"threadboard/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func serve(t *testing.T, checks ...utils.HealthCheck) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), NewHandler(NewService(&utils.HealthChecker{Checks: checks})))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	return w
}

func TestHealth_Healthy(t *testing.T) {
	w := serve(t, utils.HealthCheck{Name: "store", Pinger: stubPinger{}})
	require.Equal(t, http.StatusOK, w.Code)

	var status utils.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealth_Degraded(t *testing.T) {
	w := serve(t,
		utils.HealthCheck{Name: "store", Pinger: stubPinger{}},
		utils.HealthCheck{Name: "uploads", Pinger: stubPinger{err: errors.New("no such directory")}},
	)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
