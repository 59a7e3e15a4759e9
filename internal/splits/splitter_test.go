package splits

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/strava"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
)

type fakeStreamSource struct {
	streams map[int64]*strava.Streams
	calls   []int64
}

func (f *fakeStreamSource) GetStreams(_ context.Context, accessToken string, id int64) (*strava.Streams, error) {
	f.calls = append(f.calls, id)
	if accessToken != "access-1" {
		return nil, &strava.FetchError{Resource: "streams", ActivityID: id, StatusCode: 401, Err: errors.New("unauthorized")}
	}
	s, ok := f.streams[id]
	if !ok {
		return nil, &strava.FetchError{Resource: "streams", ActivityID: id, StatusCode: 404, Err: errors.New("not found")}
	}
	return s, nil
}

type memWriter struct {
	splits  map[int64][]Record
	streams map[int64]Series
	err     error
}

func newMemWriter() *memWriter {
	return &memWriter{splits: map[int64][]Record{}, streams: map[int64]Series{}}
}

func (w *memWriter) WriteSplits(_ context.Context, id int64, records []Record) error {
	if w.err != nil {
		return w.err
	}
	w.splits[id] = records
	return nil
}

func (w *memWriter) WriteStream(_ context.Context, id int64, series Series) error {
	if w.err != nil {
		return w.err
	}
	w.streams[id] = series
	return nil
}

func streamsOf(s Series) *strava.Streams {
	out := &strava.Streams{
		Distance: &strava.Stream{Data: s.Distance},
		Time:     &strava.Stream{Data: s.Time},
	}
	if len(s.Heartrate) > 0 {
		out.Heartrate = &strava.Stream{Data: s.Heartrate}
	}
	return out
}

func TestSplitter_SelectCandidates(t *testing.T) {
	splitter := NewSplitter(&fakeStreamSource{}, nil)
	candidates := splitter.SelectCandidates([]activity.Record{
		{ID: 1, Name: "Parkrun [5km]"},
		{ID: 2, Name: "Recovery"},
		{ID: 3, Name: "Race [10km]"},
		{ID: 4, Name: "Race [HM]"},
	})
	require.Len(t, candidates, 3)
	assert.Equal(t, int64(3), candidates[1].ID)
}

func TestSplitter_Process(t *testing.T) {
	source := &fakeStreamSource{streams: map[int64]*strava.Streams{
		7: streamsOf(evenSeries(5000, 100, 25, 160)),
	}}
	metricsManager := metrics.NewTestManager()
	splitter := NewSplitter(source, metricsManager)
	w := newMemWriter()

	result, err := splitter.Process(context.Background(), w, "access-1", 7)
	require.NoError(t, err)
	assert.Len(t, result.Splits, 5)
	assert.Equal(t, result.Splits, w.splits[7])
	assert.Len(t, w.streams[7].Distance, 51)
	assert.Equal(t, float64(5), testutil.ToFloat64(metricsManager.CounterSplitsComputed))
}

func TestSplitter_Errors(t *testing.T) {
	source := &fakeStreamSource{streams: map[int64]*strava.Streams{
		8: {Distance: &strava.Stream{Data: []float64{0, 1000}}},
	}}
	splitter := NewSplitter(source, nil)
	w := newMemWriter()
	ctx := context.Background()

	_, err := splitter.Process(ctx, w, "access-1", 8)
	assert.ErrorIs(t, err, ErrMalformedStreamData)

	_, err = splitter.Process(ctx, w, "access-1", 9)
	assert.ErrorIs(t, err, strava.ErrFetchFailure)

	_, err = splitter.Process(ctx, w, "expired", 8)
	assert.ErrorIs(t, err, strava.ErrFetchFailure)

	assert.Empty(t, w.splits)
	assert.Empty(t, w.streams)

	source.streams[10] = streamsOf(evenSeries(2000, 500, 120, 0))
	w.err = errors.New("disk full")
	_, err = splitter.Process(ctx, w, "access-1", 10)
	assert.EqualError(t, err, "disk full")
}
