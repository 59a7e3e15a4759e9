package splits

import (
	"errors"
	"fmt"

	"github.com/2beens/stravadash/internal/strava"
)

// SplitDistance is the length of one split in meters.
const SplitDistance = 1000.0

var ErrMalformedStreamData = errors.New("malformed stream data")

// Record is one closed split. Times are seconds since the activity start.
type Record struct {
	SplitNumber int      `json:"split_number"`
	StartTime   float64  `json:"start_time"`
	EndTime     float64  `json:"end_time"`
	SplitTime   float64  `json:"split_time"`
	AvgHR       *float64 `json:"avg_hr"`
}

// Series holds aligned samples: index i of every series is the same moment.
// Heartrate may be empty or, when misaligned, is ignored.
type Series struct {
	Distance  []float64 `json:"distance"`
	Time      []float64 `json:"time"`
	Heartrate []float64 `json:"heartrate,omitempty"`
}

func SeriesFromStreams(streams *strava.Streams) Series {
	var s Series
	if streams == nil {
		return s
	}
	if streams.Distance != nil {
		s.Distance = streams.Distance.Data
	}
	if streams.Time != nil {
		s.Time = streams.Time.Data
	}
	if streams.Heartrate != nil {
		s.Heartrate = streams.Heartrate.Data
	}
	return s
}

func (s Series) validate() error {
	if len(s.Distance) == 0 {
		return fmt.Errorf("%w: missing distance series", ErrMalformedStreamData)
	}
	if len(s.Time) == 0 {
		return fmt.Errorf("%w: missing time series", ErrMalformedStreamData)
	}
	if len(s.Distance) != len(s.Time) {
		return fmt.Errorf("%w: %d distance samples vs %d time samples", ErrMalformedStreamData, len(s.Distance), len(s.Time))
	}
	return nil
}

// heartrate returns the heart rate series when it is aligned with distance.
// A misaligned series is treated as absent.
func (s Series) heartrate() []float64 {
	if len(s.Heartrate) != len(s.Distance) {
		return nil
	}
	return s.Heartrate
}

// Compute partitions the distance axis into contiguous SplitDistance
// segments. A split closes at the first sample whose distance from the split
// start reaches SplitDistance; the closing sample opens the next split. The
// trailing segment that never reaches SplitDistance is not emitted.
func Compute(s Series) ([]Record, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	hr := s.heartrate()
	var records []Record
	start := 0
	for i := 1; i < len(s.Distance); i++ {
		if s.Distance[i]-s.Distance[start] < SplitDistance {
			continue
		}
		records = append(records, Record{
			SplitNumber: len(records) + 1,
			StartTime:   s.Time[start],
			EndTime:     s.Time[i],
			SplitTime:   s.Time[i] - s.Time[start],
			AvgHR:       meanOf(hr, start, i),
		})
		start = i
	}
	return records, nil
}

// meanOf averages values[from:to]; nil when there is nothing to average.
func meanOf(values []float64, from, to int) *float64 {
	if len(values) == 0 || to <= from {
		return nil
	}
	sum := 0.0
	for _, v := range values[from:to] {
		sum += v
	}
	mean := sum / float64(to-from)
	return &mean
}
