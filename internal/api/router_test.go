package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/pkg/testhelper"
)

func newTestRouter(token string) *Router {
	cfg := &config.Config{
		AdminAPIToken:     token,
		DefaultVolumeName: "sichat_data",
		DefaultRegion:     "fra",
	}
	return NewRouter(cfg, nil, testhelper.NewMockOrchestrator(), nil, nil, zap.NewNop())
}

func perform(r *Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter("secret")

	rec := perform(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter("secret")

	rec := perform(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_MissingToken(t *testing.T) {
	r := newTestRouter("secret")

	rec := perform(r, httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth_WrongToken(t *testing.T) {
	r := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec := perform(r, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuth_HeaderToken(t *testing.T) {
	r := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := perform(r, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_BearerToken(t *testing.T) {
	r := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := perform(r, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_NotConfigured(t *testing.T) {
	// An empty token never means open access.
	r := newTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil)
	req.Header.Set("X-Admin-Token", "")
	rec := perform(r, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAttempts_NotConfigured(t *testing.T) {
	r := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/attempts", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := perform(r, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestListInstances(t *testing.T) {
	cfg := &config.Config{AdminAPIToken: "secret"}
	orch := testhelper.NewMockOrchestrator()
	orch.Seed("sichat", "registry.test/conduit:v0.6.0", "sichat_data")
	r := NewRouter(cfg, nil, orch, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/admin/instances/sichat", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := perform(r, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry.test/conduit:v0.6.0")
}

func TestRedeploy_BadRequest(t *testing.T) {
	r := newTestRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/redeploy", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := perform(r, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
