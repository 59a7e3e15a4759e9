package strava

import "time"

// Activity is a summary activity as returned by GET /athlete/activities.
type Activity struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Distance           float64     `json:"distance"`
	MovingTime         int         `json:"moving_time"`
	ElapsedTime        int         `json:"elapsed_time"`
	TotalElevationGain float64     `json:"total_elevation_gain"`
	Type               string      `json:"type"`
	SportType          string      `json:"sport_type"`
	StartDate          time.Time   `json:"start_date"`
	KudosCount         int         `json:"kudos_count"`
	CommentCount       int         `json:"comment_count"`
	AthleteCount       int         `json:"athlete_count"`
	Map                ActivityMap `json:"map"`
	// absent for activities without power data
	AverageWatts     *float64 `json:"average_watts,omitempty"`
	AverageHeartrate *float64 `json:"average_heartrate,omitempty"`
}

type ActivityMap struct {
	ID              string `json:"id"`
	SummaryPolyline string `json:"summary_polyline"`
}

// ActivityDetail is the detailed representation of a single activity.
type ActivityDetail struct {
	Activity
	Description string `json:"description"`
}

type Stream struct {
	Data         []float64 `json:"data"`
	SeriesType   string    `json:"series_type"`
	OriginalSize int       `json:"original_size"`
	Resolution   string    `json:"resolution"`
}

// Streams holds the sample series of an activity, keyed by type. Any of
// them may be nil when the activity has no such data.
type Streams struct {
	Distance  *Stream `json:"distance,omitempty"`
	Heartrate *Stream `json:"heartrate,omitempty"`
	Time      *Stream `json:"time,omitempty"`
}
