package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

const (
	DefaultBaseURL = "https://api.github.com"

	StatusCompleted = "completed"

	acceptHeader = "application/vnd.github.v3+json"
)

var (
	ErrRequestFailure = errors.New("workflow request failure")
	ErrNoRuns         = errors.New("no workflow runs")
	ErrPollTimeout    = errors.New("workflow poll timeout")
)

// RequestError is a non-success answer from the actions API.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailure
}

type Run struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *Run) Completed() bool {
	return r.Status == StatusCompleted
}

// Client triggers and watches one workflow of one repository.
type Client struct {
	baseURL        string
	repo           string
	workflowFile   string
	token          string
	httpClient     *http.Client
	metricsManager *metrics.Manager

	// NewBackOff returns the retry policy for reads. Dispatches are never
	// retried, a retried dispatch could start two runs.
	NewBackOff func() backoff.BackOff
}

type Params struct {
	BaseURL        string
	Repo           string
	WorkflowFile   string
	Token          string
	HTTPClient     *http.Client
	MetricsManager *metrics.Manager
}

func NewClient(p Params) *Client {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:        baseURL,
		repo:           p.Repo,
		workflowFile:   p.WorkflowFile,
		token:          p.Token,
		httpClient:     httpClient,
		metricsManager: p.MetricsManager,
		NewBackOff: func() backoff.BackOff {
			return &backoff.StopBackOff{}
		},
	}
}

func (c *Client) workflowURL(suffix string) string {
	return fmt.Sprintf("%s/repos/%s/actions/workflows/%s/%s", c.baseURL, c.repo, c.workflowFile, suffix)
}

// Trigger dispatches the workflow on ref. The API answers 204 with no body.
func (c *Client) Trigger(ctx context.Context, ref string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workflow.trigger")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workflow.ref", ref))

	payload, err := json.Marshal(map[string]string{"ref": ref})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workflowURL("dispatches"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req, "dispatch")
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &RequestError{Op: "dispatch", StatusCode: status, Body: truncate(body, 200)}
	}

	log.Infof("workflow %s triggered on %s", c.workflowFile, ref)
	return nil
}

// LatestRunID returns the id of the most recent run of the workflow.
func (c *Client) LatestRunID(ctx context.Context) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workflow.latestRunID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var runs struct {
		WorkflowRuns []Run `json:"workflow_runs"`
	}
	if err := c.getJSON(ctx, "list runs", c.workflowURL("runs?per_page=1"), &runs); err != nil {
		return 0, err
	}
	if len(runs.WorkflowRuns) == 0 {
		return 0, ErrNoRuns
	}
	return runs.WorkflowRuns[0].ID, nil
}

func (c *Client) GetRun(ctx context.Context, runID int64) (_ *Run, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workflow.getRun")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("workflow.run_id", runID))

	run := &Run{}
	reqURL := fmt.Sprintf("%s/repos/%s/actions/runs/%d", c.baseURL, c.repo, runID)
	if err := c.getJSON(ctx, "get run", reqURL, run); err != nil {
		return nil, err
	}
	return run, nil
}

// WaitForCompletion polls the run every interval until it completes. Polling
// stops with ErrPollTimeout once timeout has passed, or with the context
// error when ctx is done first.
func (c *Client) WaitForCompletion(ctx context.Context, runID int64, interval, timeout time.Duration) (*Run, error) {
	if interval <= 0 || timeout <= 0 {
		return nil, fmt.Errorf("poll interval and timeout must be positive, got %s and %s", interval, timeout)
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(pollCtx, runID)
		switch {
		case err == nil && run.Completed():
			log.Infof("workflow run %d completed: %s", runID, run.Conclusion)
			return run, nil
		case err == nil:
			log.Debugf("workflow run %d: %s", runID, run.Status)
		case pollCtx.Err() == nil:
			return nil, err
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: run %d not completed after %s", ErrPollTimeout, runID, timeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) getJSON(ctx context.Context, op, reqURL string, v any) error {
	body, err := backoff.RetryWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		status, body, err := c.do(req, op)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		reqErr := &RequestError{Op: op, StatusCode: status, Body: truncate(body, 200)}
		switch {
		case status == http.StatusTooManyRequests || status >= 500:
			return nil, reqErr
		case status != http.StatusOK:
			return nil, backoff.Permanent(reqErr)
		}
		return body, nil
	}, backoff.WithContext(c.NewBackOff(), ctx))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) (int, []byte, error) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countUpstream(op, "error")
		return 0, nil, fmt.Errorf("%s: http client do: %w", op, err)
	}
	defer resp.Body.Close()

	c.countUpstream(op, strconv.Itoa(resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) countUpstream(op, status string) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterUpstreamRequests.WithLabelValues("github "+op, status).Inc()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
