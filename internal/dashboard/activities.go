package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/pkg"
)

const dateLayout = "2006-01-02"

type activitiesResponse struct {
	Count      int             `json:"count"`
	DistanceKm float64         `json:"distance_km"`
	Activities []activity.View `json:"activities"`
}

// parseDateRange reads from/to as dates; to is inclusive of the whole day.
func parseDateRange(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			return from, to, fmt.Errorf("invalid from date: %s", v)
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			return from, to, fmt.Errorf("invalid to date: %s", v)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("to date before from date")
	}
	return from, to, nil
}

func typesParam(r *http.Request) []string {
	var types []string
	for _, v := range r.URL.Query()["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

func (handler *Handler) handleActivities(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.activities")
	defer span.End()

	from, to, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := handler.newSession(r).Activities()
	if err != nil {
		writeReadError(w, "activities", err)
		return
	}

	records = activity.FilterByType(records, typesParam(r)...)
	records = activity.FilterByDateRange(records, from, to)
	activity.SortByStartDate(records)
	span.SetAttributes(attribute.Int("activities", len(records)))

	resp := activitiesResponse{
		Count:      len(records),
		Activities: activity.ToViews(records),
	}
	total := 0.0
	for _, rec := range records {
		total += rec.Distance
	}
	resp.DistanceKm = activity.DistanceKm(total)

	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (handler *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.summary")
	defer span.End()

	year := handler.Now().UTC().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 2000 || y > 9999 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = y
	}

	records, err := handler.newSession(r).Activities()
	if err != nil {
		writeReadError(w, "activities", err)
		return
	}

	pkg.WriteJSON(w, map[string]any{
		"year":    year,
		"summary": activity.YearlySummary(records, year),
	}, http.StatusOK)
}

func (handler *Handler) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.heatmap")
	defer span.End()

	records, err := handler.newSession(r).Activities()
	if err != nil {
		writeReadError(w, "activities", err)
		return
	}

	fc := activity.RoutesFeatureCollection(activity.FilterByType(records, typesParam(r)...))
	span.SetAttributes(attribute.Int("routes", len(fc.Features)))

	payload, err := fc.MarshalJSON()
	if err != nil {
		log.Errorf("marshal heatmap routes: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.GeoJSON, payload)
}

func (handler *Handler) handleCoastalPath(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.coastalPath")
	defer span.End()

	records, err := handler.reader.ReadCoastalPath(ctx)
	if err != nil {
		writeReadError(w, "coastal path", err)
		return
	}
	activity.SortByStartDate(records)

	total := 0.0
	for _, rec := range records {
		total += rec.Distance
	}

	pkg.WriteJSON(w, struct {
		Stages     int             `json:"stages"`
		DistanceKm float64         `json:"distance_km"`
		Activities []activity.View `json:"activities"`
		Routes     json.RawMessage `json:"routes"`
	}{
		Stages:     len(records),
		DistanceKm: activity.DistanceKm(total),
		Activities: activity.ToViews(records),
		Routes:     mustMarshalRoutes(records),
	}, http.StatusOK)
}

func mustMarshalRoutes(records []activity.Record) json.RawMessage {
	payload, err := activity.RoutesFeatureCollection(records).MarshalJSON()
	if err != nil {
		log.Errorf("marshal routes: %s", err)
		return json.RawMessage(`null`)
	}
	return payload
}

func (handler *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.metadata")
	defer span.End()

	meta, err := handler.reader.ReadMetadata(ctx)
	if err != nil {
		writeReadError(w, "metadata", err)
		return
	}
	pkg.WriteJSON(w, meta, http.StatusOK)
}
