package dataset

import (
	"fmt"
	"time"
)

const (
	ActivitiesKey  = "activity_data.csv"
	PBEffortsKey   = "pb_effort_data.csv"
	CoastalPathKey = "coastal_path_data.csv"
	MetadataKey    = "last_updated.json"

	// MetadataTimeLayout is the last_updated format, always in UTC.
	MetadataTimeLayout = "2006-01-02 15:04:05"

	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

func SplitsKey(activityID int64) string {
	return fmt.Sprintf("splits/%d.json", activityID)
}

func StreamKey(activityID int64) string {
	return fmt.Sprintf("streams/%d.json", activityID)
}

type Metadata struct {
	LastUpdated string `json:"last_updated"`
}

func NewMetadata(t time.Time) Metadata {
	return Metadata{LastUpdated: t.UTC().Format(MetadataTimeLayout)}
}

func (m Metadata) Time() (time.Time, error) {
	return time.ParseInLocation(MetadataTimeLayout, m.LastUpdated, time.UTC)
}
