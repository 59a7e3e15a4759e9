package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/2beens/stravadash/internal/activity"
)

var ErrMalformedDataset = errors.New("malformed dataset")

var (
	activityColumns = []string{
		"id", "name", "distance", "moving_time", "total_elevation_gain", "type", "start_date",
		"kudos_count", "comment_count", "athlete_count", "map", "average_watts",
	}
	pbEffortColumns = append(append([]string{}, activityColumns...), "time")

	requiredColumns = []string{"id", "name", "distance", "moving_time", "type", "start_date"}

	// datasets written by older exporters carry pandas timestamps
	startDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05"}
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func encodeRecords(columns []string, records []activity.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			formatFloat(r.Distance),
			strconv.Itoa(r.MovingTime),
			formatFloat(r.TotalElevationGain),
			r.Type,
			r.StartDate.UTC().Format(time.RFC3339),
			strconv.Itoa(r.KudosCount),
			strconv.Itoa(r.CommentCount),
			strconv.Itoa(r.AthleteCount),
			r.Map,
			"",
		}
		if r.AverageWatts != nil {
			row[11] = formatFloat(*r.AverageWatts)
		}
		if len(columns) > len(activityColumns) {
			row = append(row, r.OfficialTime)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRecords parses a dataset CSV, addressing columns by header name.
// Unknown columns are ignored; optional columns may be missing.
func decodeRecords(data []byte) ([]activity.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %s", ErrMalformedDataset, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedDataset, col)
		}
	}

	var records []activity.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedDataset, line, err)
		}

		record, err := decodeRow(index, row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMalformedDataset, line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRow(index map[string]int, row []string) (activity.Record, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		rec activity.Record
		err error
	)
	if rec.ID, err = strconv.ParseInt(field("id"), 10, 64); err != nil {
		return rec, fmt.Errorf("id: %w", err)
	}
	if rec.Distance, err = parseFloat(field("distance")); err != nil {
		return rec, fmt.Errorf("distance: %w", err)
	}
	if rec.MovingTime, err = parseInt(field("moving_time")); err != nil {
		return rec, fmt.Errorf("moving_time: %w", err)
	}
	if rec.TotalElevationGain, err = parseFloat(field("total_elevation_gain")); err != nil {
		return rec, fmt.Errorf("total_elevation_gain: %w", err)
	}
	if rec.StartDate, err = parseStartDate(field("start_date")); err != nil {
		return rec, fmt.Errorf("start_date: %w", err)
	}
	if rec.KudosCount, err = parseInt(field("kudos_count")); err != nil {
		return rec, fmt.Errorf("kudos_count: %w", err)
	}
	if rec.CommentCount, err = parseInt(field("comment_count")); err != nil {
		return rec, fmt.Errorf("comment_count: %w", err)
	}
	if rec.AthleteCount, err = parseInt(field("athlete_count")); err != nil {
		return rec, fmt.Errorf("athlete_count: %w", err)
	}
	if watts := field("average_watts"); watts != "" {
		w, err := strconv.ParseFloat(watts, 64)
		if err != nil {
			return rec, fmt.Errorf("average_watts: %w", err)
		}
		rec.AverageWatts = &w
	}

	rec.Name = field("name")
	rec.Type = field("type")
	rec.Map = field("map")
	rec.OfficialTime = field("time")
	return rec, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt accepts "12" as well as "12.0", which float-typed columns produce.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseStartDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range startDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
