package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/service"
)

func TestGetInstance(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/instance")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var info InstanceResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "Test Server", info.Name)
	assert.Equal(t, service.ServerVersion, info.Version)
	assert.True(t, info.SetupRequired)

	ts.setupRoot(t)

	resp = ts.api.Get("/api/v1/instance")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	assert.False(t, info.SetupRequired)
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, service.ServerVersion, health.Version)
	require.Contains(t, health.Components, "catalog")
	require.Contains(t, health.Components, "sessions")
	require.Contains(t, health.Components, "search")
	assert.Equal(t, "healthy", health.Components["catalog"].Status)
	assert.Equal(t, "healthy", health.Components["sessions"].Status)

	// An empty search index reports degraded, and the rollup follows.
	assert.Equal(t, "degraded", health.Components["search"].Status)
	assert.Equal(t, "degraded", health.Status)

	ts.createBook(t, "Indexed", "Some Writer", 2001)
	ts.reindex(t)

	resp = ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}
