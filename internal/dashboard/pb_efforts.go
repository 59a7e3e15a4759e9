package dashboard

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/splits"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/pkg"
)

type effortEntry struct {
	Rank    int     `json:"rank"`
	Minutes float64 `json:"minutes"`
	activity.View
}

// minutesFor prefers the official result; the moving time is used when the
// description carries none.
func minutesFor(r activity.Record) float64 {
	if r.OfficialTime != "" {
		m, err := activity.OfficialMinutes(r.OfficialTime)
		if err == nil {
			return m
		}
		log.Debugf("activity %d: %s", r.ID, err)
	}
	return float64(r.MovingTime) / 60
}

// leaderboard ranks efforts by minutes, fastest first.
func leaderboard(records []activity.Record) []effortEntry {
	entries := make([]effortEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, effortEntry{
			Minutes: roundMinutes(minutesFor(r)),
			View:    activity.ToView(r),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Minutes < entries[j].Minutes
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func roundMinutes(m float64) float64 {
	v, _ := strconv.ParseFloat(fmt.Sprintf("%.2f", m), 64)
	return v
}

func (handler *Handler) handlePBEfforts(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.pbEfforts")
	defer span.End()

	distance, err := activity.ParseDistance(r.URL.Query().Get("distance"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("distance", string(distance)))

	records, err := handler.reader.ReadPBEfforts(ctx)
	if err != nil {
		writeReadError(w, "pb efforts", err)
		return
	}

	pkg.WriteJSON(w, map[string]any{
		"distance": distance,
		"efforts":  leaderboard(activity.EffortsFor(records, distance)),
	}, http.StatusOK)
}

type splitView struct {
	splits.Record
	SplitTimeFmt string `json:"split_time_fmt"`
}

func (handler *Handler) handleSplits(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.splits")
	defer span.End()

	vars := mux.Vars(r)
	activityID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int64("activity.id", activityID))

	records, err := handler.reader.ReadSplits(ctx, activityID)
	if err != nil {
		writeReadError(w, "splits", err)
		return
	}

	views := make([]splitView, 0, len(records))
	for _, rec := range records {
		views = append(views, splitView{
			Record:       rec,
			SplitTimeFmt: activity.FormatSplitTime(rec.SplitTime),
		})
	}

	resp := map[string]any{
		"activity_id": activityID,
		"splits":      views,
	}

	if r.URL.Query().Get("raw") == "1" {
		series, err := handler.reader.ReadStream(ctx, activityID)
		if err != nil {
			writeReadError(w, "stream", err)
			return
		}
		resp["stream"] = series
	}

	pkg.WriteJSON(w, resp, http.StatusOK)
}
