//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2beens/stravadash/internal/auth"
)

type loginResponse struct {
	Token string `json:"token"`
}

func (s *IntegrationTestSuite) doLogin(ctx context.Context, t *testing.T) string {
	t.Helper()

	loginReqJson, err := json.Marshal(auth.Credentials{
		Username: testUsername,
		Password: testPassword,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/login", bytes.NewBuffer(loginReqJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var loginResp loginResponse
	require.NoError(t, json.Unmarshal(respBytes, &loginResp))
	require.NotEmpty(t, loginResp.Token)

	return loginResp.Token
}
