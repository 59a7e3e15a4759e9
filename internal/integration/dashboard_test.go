//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) get(ctx context.Context, path, token string) (int, []byte) {
	t := s.T()

	req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if token != "" {
		req.Header.Set("X-Dash-Token", token)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (s *IntegrationTestSuite) TestDashboardReads() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	code, _ := s.get(ctx, "/activities", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	token := s.doLogin(ctx, t)

	code, body := s.get(ctx, "/activities?type=Run", token)
	require.Equal(t, http.StatusOK, code, string(body))
	var activities struct {
		Count      int     `json:"count"`
		DistanceKm float64 `json:"distance_km"`
	}
	require.NoError(t, json.Unmarshal(body, &activities))
	assert.Equal(t, 2, activities.Count)
	assert.Equal(t, 13.0, activities.DistanceKm)

	code, body = s.get(ctx, "/pb-efforts?distance=5km", token)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"time":"20:41"`)

	code, body = s.get(ctx, "/pb-efforts/102/splits", token)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"split_time_fmt":"4:08"`)

	code, body = s.get(ctx, "/coastal-path", token)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), `"stages":1`)

	code, body = s.get(ctx, "/metadata", token)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"last_updated":"2025-06-04 07:00:00"}`, string(body))

	code, _ = s.get(ctx, "/pb-efforts/999/splits", token)
	assert.Equal(t, http.StatusNotFound, code)
}
