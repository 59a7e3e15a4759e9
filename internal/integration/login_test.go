//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/stravadash/internal/auth"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	cases := map[string]struct {
		loginReq           auth.Credentials
		expectedStatusCode int
		assertFunc         func(t *testing.T, resp *http.Response)
	}{
		"good creds, then logout": {
			loginReq: auth.Credentials{
				Username: testUsername,
				Password: testPassword,
			},
			expectedStatusCode: http.StatusOK,
			assertFunc: func(t *testing.T, resp *http.Response) {
				respBytes, err := io.ReadAll(resp.Body)
				require.NoError(t, err)

				var loginResp loginResponse
				require.NoError(t, json.Unmarshal(respBytes, &loginResp))
				require.NotEmpty(t, loginResp.Token)

				req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/a/logout", nil)
				require.NoError(t, err)
				req.Header.Set("User-Agent", "test-agent")
				req.Header.Set("X-Dash-Token", loginResp.Token)

				logoutResp, err := s.httpClient.Do(req)
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, logoutResp.StatusCode)
				assert.NoError(t, logoutResp.Body.Close())

				// the session is gone
				req, err = http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/activities", nil)
				require.NoError(t, err)
				req.Header.Set("User-Agent", "test-agent")
				req.Header.Set("X-Dash-Token", loginResp.Token)
				afterResp, err := s.httpClient.Do(req)
				require.NoError(t, err)
				assert.Equal(t, http.StatusUnauthorized, afterResp.StatusCode)
				assert.NoError(t, afterResp.Body.Close())
			},
		},
		"bad password": {
			loginReq: auth.Credentials{
				Username: testUsername,
				Password: "bad-password",
			},
			expectedStatusCode: http.StatusUnauthorized,
			assertFunc: func(t *testing.T, resp *http.Response) {
				respBytes, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
			},
		},
		"bad username": {
			loginReq: auth.Credentials{
				Username: "bad-username",
				Password: testPassword,
			},
			expectedStatusCode: http.StatusUnauthorized,
			assertFunc: func(t *testing.T, resp *http.Response) {
				respBytes, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
			},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			loginReqJson, err := json.Marshal(tc.loginReq)
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/login", bytes.NewBuffer(loginReqJson))
			require.NoError(t, err)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatusCode, resp.StatusCode)
			defer resp.Body.Close()

			tc.assertFunc(t, resp)
		})
	}

	t.Run("rate limiting", func(t *testing.T) {
		// simulate login requests brute force attack
		loginReqJson, err := json.Marshal(auth.Credentials{
			Username: "test-user",
			Password: "test-pass",
		})
		require.NoError(t, err)

		require.NoError(t, s.redisDataCleanup(ctx))

		for i := 1; i <= loginAllowedPerMin+5; i++ {
			req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/login", bytes.NewBuffer(loginReqJson))
			require.NoError(t, err)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)

			if i <= loginAllowedPerMin {
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "iteration: %d", i)
				assert.Empty(t, resp.Header.Get("Retry-After"), "iteration: %d", i)
			} else {
				require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
				retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
				require.NoError(t, err, "iteration: %d", i)
				assert.True(t, retryAfter > 0, "iteration: %d", i)
			}

			assert.NoError(t, resp.Body.Close())
		}

		require.NoError(t, s.redisDataCleanup(ctx))
	})
}
