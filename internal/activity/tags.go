package activity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CoastalPathTag marks coastal path stages in the activity name.
const CoastalPathTag = "WCP"

// Distance is a PB effort category, tagged in the activity name as [5km],
// [10km] or [HM].
type Distance string

const (
	Distance5K           Distance = "5km"
	Distance10K          Distance = "10km"
	DistanceHalfMarathon Distance = "HM"
)

var PBDistances = []Distance{Distance5K, Distance10K, DistanceHalfMarathon}

func (d Distance) Tag() string {
	return "[" + string(d) + "]"
}

func ParseDistance(s string) (Distance, error) {
	for _, d := range PBDistances {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown pb distance: %q", s)
}

// PBCategory returns the first PB category tagged in name. The match is a
// case-sensitive substring match.
func PBCategory(name string) (Distance, bool) {
	for _, d := range PBDistances {
		if strings.Contains(name, d.Tag()) {
			return d, true
		}
	}
	return "", false
}

func IsPBEffort(name string) bool {
	_, ok := PBCategory(name)
	return ok
}

// FilterByTag keeps the records whose name contains tag.
func FilterByTag(records []Record, tag string) []Record {
	var filtered []Record
	for _, r := range records {
		if strings.Contains(r.Name, tag) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func PBEfforts(records []Record) []Record {
	var efforts []Record
	for _, r := range records {
		if IsPBEffort(r.Name) {
			efforts = append(efforts, r)
		}
	}
	return efforts
}

func EffortsFor(records []Record, d Distance) []Record {
	return FilterByTag(records, d.Tag())
}

var officialTimeRegex = regexp.MustCompile(`\[(\d{1,2}(?::\d{2}){1,2})\]\s*$`)

// ParseOfficialTime extracts the official result written as a bracketed time
// at the end of an activity description, e.g. "Great day out [1:32:10]".
func ParseOfficialTime(description string) (string, bool) {
	m := officialTimeRegex.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// OfficialMinutes converts "mm:ss" or "h:mm:ss" to minutes.
func OfficialMinutes(official string) (float64, error) {
	parts := strings.Split(official, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", official)
	}

	seconds := 0
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", official)
		}
		seconds = seconds*60 + v
	}
	return float64(seconds) / 60, nil
}
