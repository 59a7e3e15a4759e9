package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

const (
	DefaultBaseURL = "https://www.strava.com/api/v3"
	DefaultPerPage = 200

	resourceActivities = "activities"
	resourceActivity   = "activity"
	resourceStreams    = "streams"
)

// Client reads athlete data from the REST API with a bearer access token.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	metricsManager *metrics.Manager

	// NewBackOff returns the retry policy for a single request. Only
	// transient failures (transport errors, 429, 5xx) are retried. The
	// default never retries.
	NewBackOff func() backoff.BackOff
}

func NewClient(baseURL string, httpClient *http.Client, metricsManager *metrics.Manager) *Client {
	return &Client{
		baseURL:        baseURL,
		httpClient:     httpClient,
		metricsManager: metricsManager,
		NewBackOff: func() backoff.BackOff {
			return &backoff.StopBackOff{}
		},
	}
}

// FetchPage returns one page of the athlete's activities, in upstream order.
// An empty slice means the listing is exhausted.
func (c *Client) FetchPage(ctx context.Context, accessToken string, perPage, page int) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.fetchPage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", page), attribute.Int("per_page", perPage))

	reqURL := fmt.Sprintf("%s/athlete/activities?per_page=%d&page=%d", c.baseURL, perPage, page)
	body, status, err := c.get(ctx, accessToken, resourceActivities, reqURL)
	if err != nil {
		return nil, &FetchError{Resource: resourceActivities, Page: page, StatusCode: status, Err: err}
	}

	activities, err := decodePage(body)
	if err != nil {
		return nil, &FetchError{
			Resource:   resourceActivities,
			Page:       page,
			StatusCode: status,
			Err:        fmt.Errorf("decode page: %w", err),
		}
	}
	return activities, nil
}

// decodePage accepts only a JSON array; a null or non-array body is not an
// empty page.
func decodePage(body []byte) ([]Activity, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s", errNotAList, truncate(trimmed, 50))
	}
	activities := []Activity{}
	if err := json.Unmarshal(trimmed, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// FetchAllActivities walks pages 1, 2, ... until the first empty page and
// returns the concatenation. Any failing page aborts the whole walk.
func (c *Client) FetchAllActivities(ctx context.Context, accessToken string, perPage int) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.fetchAllActivities")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var all []Activity
	for page := 1; ; page++ {
		activities, err := c.FetchPage(ctx, accessToken, perPage, page)
		if err != nil {
			return nil, err
		}
		if len(activities) == 0 {
			log.Debugf("page %d empty, fetched %d activities in total", page, len(all))
			break
		}
		log.Tracef("fetched page %d: %d activities", page, len(activities))
		all = append(all, activities...)
	}

	if c.metricsManager != nil {
		c.metricsManager.CounterActivitiesFetched.Add(float64(len(all)))
	}
	span.SetAttributes(attribute.Int("activities", len(all)))
	return all, nil
}

// GetActivity returns the detailed activity, including its description.
func (c *Client) GetActivity(ctx context.Context, accessToken string, id int64) (_ *ActivityDetail, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.getActivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("activity.id", id))

	reqURL := fmt.Sprintf("%s/activities/%d", c.baseURL, id)
	body, status, err := c.get(ctx, accessToken, resourceActivity, reqURL)
	if err != nil {
		return nil, &FetchError{Resource: resourceActivity, ActivityID: id, StatusCode: status, Err: err}
	}

	detail := &ActivityDetail{}
	if err := json.Unmarshal(body, detail); err != nil {
		return nil, &FetchError{
			Resource:   resourceActivity,
			ActivityID: id,
			StatusCode: status,
			Err:        fmt.Errorf("decode activity: %w", err),
		}
	}
	return detail, nil
}

// GetStreams returns the distance, heart rate and time series of an activity.
func (c *Client) GetStreams(ctx context.Context, accessToken string, id int64) (_ *Streams, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.getStreams")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("activity.id", id))

	reqURL := fmt.Sprintf("%s/activities/%d/streams?keys=distance,heartrate,time&key_by_type=true", c.baseURL, id)
	body, status, err := c.get(ctx, accessToken, resourceStreams, reqURL)
	if err != nil {
		return nil, &FetchError{Resource: resourceStreams, ActivityID: id, StatusCode: status, Err: err}
	}

	streams := &Streams{}
	if err := json.Unmarshal(body, streams); err != nil {
		return nil, &FetchError{
			Resource:   resourceStreams,
			ActivityID: id,
			StatusCode: status,
			Err:        fmt.Errorf("decode streams: %w", err),
		}
	}
	return streams, nil
}

var (
	errTransientStatus = errors.New("transient status")
	errNotAList        = errors.New("page is not a list")
)

// get performs a GET with the configured retry policy and returns the body of
// a 2xx response together with the last seen status code.
func (c *Client) get(ctx context.Context, accessToken, resource, reqURL string) ([]byte, int, error) {
	status := 0
	body, err := backoff.RetryWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.countUpstream(resource, "error")
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			log.Debugf("GET %s: %s", resource, err)
			return nil, fmt.Errorf("http client do: %w", err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		c.countUpstream(resource, strconv.Itoa(status))

		respBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case status == http.StatusTooManyRequests || status >= 500:
			log.Debugf("GET %s: status %d, may retry", resource, status)
			return nil, fmt.Errorf("%w %d", errTransientStatus, status)
		case status < 200 || status > 299:
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %d: %s", status, truncate(respBytes, 200)))
		}
		return respBytes, nil
	}, backoff.WithContext(c.NewBackOff(), ctx))

	return body, status, err
}

func (c *Client) countUpstream(resource, status string) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterUpstreamRequests.WithLabelValues(resource, status).Inc()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
