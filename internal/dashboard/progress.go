package dashboard

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/pkg"
)

const (
	defaultWeeklyWindowMonths = 6
	maxWeeklyWindowMonths     = 24
)

var weeklySports = []string{activity.TypeRun, activity.TypeRide, activity.TypeSwim}

type progressResponse struct {
	Period activity.Period        `json:"period"`
	Metric activity.Metric        `json:"metric"`
	Series []activity.PeriodTotal `json:"series"`
}

type sportWeeks struct {
	Type  string               `json:"type"`
	Weeks []activity.WeekTotal `json:"weeks"`
}

type weeklyResponse struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Sports []sportWeeks `json:"sports"`
}

func (handler *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.progress")
	defer span.End()

	period := activity.PeriodYear
	if v := r.URL.Query().Get("period"); v != "" {
		p, err := activity.ParsePeriod(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		period = p
	}

	metric := activity.MetricDistance
	if v := r.URL.Query().Get("metric"); v != "" {
		m, err := activity.ParseMetric(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		metric = m
	}

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
	series := activity.AggregateByPeriod(records, period, metric)
	if series == nil {
		series = []activity.PeriodTotal{}
	}
	span.SetAttributes(
		attribute.String("period", string(period)),
		attribute.String("metric", string(metric)),
		attribute.Int("points", len(series)),
	)

	pkg.WriteJSON(w, progressResponse{
		Period: period,
		Metric: metric,
		Series: series,
	}, http.StatusOK)
}

// handleWeekly serves weekly distance and count per sport. The window
// defaults to the last six months and may not exceed two years.
func (handler *Handler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.weekly")
	defer span.End()

	from, to, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if to.IsZero() {
		today := handler.Now().UTC().Truncate(24 * time.Hour)
		to = today.Add(24*time.Hour - time.Nanosecond)
	}
	if from.IsZero() {
		from = to.Truncate(24*time.Hour).AddDate(0, -defaultWeeklyWindowMonths, 0)
	}
	if to.Before(from) {
		http.Error(w, "to date before from date", http.StatusBadRequest)
		return
	}
	if from.Before(to.Truncate(24*time.Hour).AddDate(0, -maxWeeklyWindowMonths, 0)) {
		http.Error(w, "date window longer than 24 months", http.StatusBadRequest)
		return
	}

	records, err := handler.newSession(r).Activities()
	if err != nil {
		writeReadError(w, "activities", err)
		return
	}

	sports := typesParam(r)
	if len(sports) == 0 {
		sports = weeklySports
	}

	resp := weeklyResponse{
		From:   from.Format(dateLayout),
		To:     to.Format(dateLayout),
		Sports: make([]sportWeeks, 0, len(sports)),
	}
	for _, sport := range sports {
		resp.Sports = append(resp.Sports, sportWeeks{
			Type:  sport,
			Weeks: activity.WeeklyTotals(records, sport, from, to),
		})
	}
	span.SetAttributes(attribute.Int("sports", len(resp.Sports)))

	pkg.WriteJSON(w, resp, http.StatusOK)
}
