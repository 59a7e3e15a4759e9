package splits

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/strava"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

type StreamSource interface {
	GetStreams(ctx context.Context, accessToken string, id int64) (*strava.Streams, error)
}

// Writer persists the per-activity documents.
type Writer interface {
	WriteSplits(ctx context.Context, activityID int64, records []Record) error
	WriteStream(ctx context.Context, activityID int64, series Series) error
}

// Result is the computed split set of one activity, with the samples it was
// computed from.
type Result struct {
	ActivityID int64
	Splits     []Record
	Series     Series
}

type Splitter struct {
	source         StreamSource
	metricsManager *metrics.Manager
}

func NewSplitter(source StreamSource, metricsManager *metrics.Manager) *Splitter {
	return &Splitter{
		source:         source,
		metricsManager: metricsManager,
	}
}

// SelectCandidates returns the PB efforts among records.
func (s *Splitter) SelectCandidates(records []activity.Record) []activity.Record {
	return activity.PBEfforts(records)
}

// Split fetches the streams of one activity and computes its splits. Fetch
// failures are returned as is; unusable streams yield ErrMalformedStreamData.
func (s *Splitter) Split(ctx context.Context, accessToken string, activityID int64) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "splitter.split")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("activity.id", activityID))

	streams, err := s.source.GetStreams(ctx, accessToken, activityID)
	if err != nil {
		return nil, err
	}

	series := SeriesFromStreams(streams)
	records, err := Compute(series)
	if err != nil {
		return nil, fmt.Errorf("activity %d: %w", activityID, err)
	}

	if s.metricsManager != nil {
		s.metricsManager.CounterSplitsComputed.Add(float64(len(records)))
	}
	log.Debugf("activity %d: %d splits from %d samples", activityID, len(records), len(series.Distance))

	return &Result{
		ActivityID: activityID,
		Splits:     records,
		Series:     series,
	}, nil
}

// Persist writes the split document and the raw samples of a result.
func (s *Splitter) Persist(ctx context.Context, w Writer, result *Result) error {
	if err := w.WriteSplits(ctx, result.ActivityID, result.Splits); err != nil {
		return err
	}
	return w.WriteStream(ctx, result.ActivityID, result.Series)
}

// Process is Split followed by Persist.
func (s *Splitter) Process(ctx context.Context, w Writer, accessToken string, activityID int64) (*Result, error) {
	result, err := s.Split(ctx, accessToken, activityID)
	if err != nil {
		return nil, err
	}
	if err := s.Persist(ctx, w, result); err != nil {
		return nil, err
	}
	return result, nil
}
