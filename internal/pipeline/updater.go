package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/dataset"
	"github.com/2beens/stravadash/internal/splits"
	"github.com/2beens/stravadash/internal/strava"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/internal/tokenstore"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*strava.Token, error)
}

type ActivitySource interface {
	splits.StreamSource
	FetchAllActivities(ctx context.Context, accessToken string, perPage int) ([]strava.Activity, error)
	GetActivity(ctx context.Context, accessToken string, id int64) (*strava.ActivityDetail, error)
}

type Params struct {
	Refresher TokenRefresher
	Source    ActivitySource
	Exporter  *dataset.Exporter
	// Tokens is optional; without it every run uses RefreshToken.
	Tokens         tokenstore.Store
	RefreshToken   string
	PerPage        int
	MetricsManager *metrics.Manager
}

// Report summarizes one successful run.
type Report struct {
	Activities  int
	CoastalPath int
	PBEfforts   int
	SplitFiles  int
	// PB efforts whose streams could not be split
	Skipped   []int64
	UpdatedAt time.Time
}

// Updater refreshes the access token, fetches everything, and only then
// writes the dataset files, metadata last.
type Updater struct {
	refresher      TokenRefresher
	source         ActivitySource
	exporter       *dataset.Exporter
	splitter       *splits.Splitter
	tokens         tokenstore.Store
	refreshToken   string
	perPage        int
	metricsManager *metrics.Manager

	Now func() time.Time
}

func NewUpdater(p Params) *Updater {
	return &Updater{
		refresher:      p.Refresher,
		source:         p.Source,
		exporter:       p.Exporter,
		splitter:       splits.NewSplitter(p.Source, p.MetricsManager),
		tokens:         p.Tokens,
		refreshToken:   p.RefreshToken,
		perPage:        p.PerPage,
		metricsManager: p.MetricsManager,
		Now:            time.Now,
	}
}

// fetched is everything one run writes, assembled before the first write.
type fetched struct {
	all         []activity.Record
	coastalPath []activity.Record
	pbEfforts   []activity.Record
	splits      []*splits.Result
	skipped     []int64
}

// Run executes one update. Authentication and fetch failures abort the run
// before anything is written. A failure to save a rotated refresh token does
// not stop the run but is returned once the dataset is written.
func (u *Updater) Run(ctx context.Context) (_ *Report, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "updater.run")
	started := time.Now()
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
		u.observeRun(started, err)
	}()

	token, saveErr := u.accessToken(ctx)
	if token == nil {
		return nil, saveErr
	}

	data, err := u.fetch(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("activities", len(data.all)),
		attribute.Int("pb_efforts", len(data.pbEfforts)),
	)

	updatedAt := u.Now()
	if err := u.write(ctx, data, updatedAt); err != nil {
		return nil, err
	}

	report := &Report{
		Activities:  len(data.all),
		CoastalPath: len(data.coastalPath),
		PBEfforts:   len(data.pbEfforts),
		SplitFiles:  len(data.splits),
		Skipped:     data.skipped,
		UpdatedAt:   updatedAt,
	}
	log.Infof(
		"update done: %d activities, %d coastal path, %d pb efforts, %d split files, %d skipped",
		report.Activities, report.CoastalPath, report.PBEfforts, report.SplitFiles, len(report.Skipped),
	)

	if u.metricsManager != nil {
		u.metricsManager.GaugeLastUpdateUnix.Set(float64(updatedAt.Unix()))
		u.metricsManager.GaugeDatasetActivities.Set(float64(report.Activities))
	}

	if saveErr != nil {
		return report, saveErr
	}
	return report, nil
}

// accessToken returns a nil token with the grant error, or a token with an
// optional error from persisting the rotated refresh token.
func (u *Updater) accessToken(ctx context.Context) (*strava.Token, error) {
	refreshToken := u.loadRefreshToken(ctx)

	token, err := u.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}

	if u.tokens == nil || token.RefreshToken == "" || token.RefreshToken == refreshToken {
		return token, nil
	}
	if err := u.tokens.Save(ctx, token.RefreshToken); err != nil {
		log.Errorf("updater: save rotated refresh token: %s", err)
		return token, fmt.Errorf("save rotated refresh token: %w", err)
	}
	log.Debugln("updater: rotated refresh token saved")
	return token, nil
}

func (u *Updater) loadRefreshToken(ctx context.Context) string {
	if u.tokens == nil {
		return u.refreshToken
	}
	stored, err := u.tokens.Load(ctx)
	switch {
	case err == nil:
		return stored
	case errors.Is(err, tokenstore.ErrNoToken):
		log.Debugln("updater: no stored refresh token, using the configured one")
	default:
		log.Warnf("updater: load stored refresh token: %s; using the configured one", err)
	}
	return u.refreshToken
}

func (u *Updater) fetch(ctx context.Context, accessToken string) (*fetched, error) {
	raw, err := u.source.FetchAllActivities(ctx, accessToken, u.perPage)
	if err != nil {
		return nil, fmt.Errorf("fetch activities: %w", err)
	}

	data := &fetched{all: activity.Normalize(raw)}
	data.coastalPath = activity.FilterByTag(data.all, activity.CoastalPathTag)
	data.pbEfforts = u.splitter.SelectCandidates(data.all)

	for i := range data.pbEfforts {
		effort := &data.pbEfforts[i]

		detail, err := u.source.GetActivity(ctx, accessToken, effort.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch pb effort detail: %w", err)
		}
		if official, ok := activity.ParseOfficialTime(detail.Description); ok {
			effort.OfficialTime = official
		} else {
			log.Debugf("updater: no official time in the description of %d", effort.ID)
		}

		result, err := u.splitter.Split(ctx, accessToken, effort.ID)
		if errors.Is(err, splits.ErrMalformedStreamData) {
			log.Warnf("updater: skip splits of %d: %s", effort.ID, err)
			data.skipped = append(data.skipped, effort.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch pb effort streams: %w", err)
		}
		data.splits = append(data.splits, result)
	}

	return data, nil
}

func (u *Updater) write(ctx context.Context, data *fetched, updatedAt time.Time) error {
	if err := u.exporter.ExportActivities(ctx, dataset.ActivitiesKey, data.all); err != nil {
		return fmt.Errorf("write activities: %w", err)
	}
	if err := u.exporter.ExportActivities(ctx, dataset.CoastalPathKey, data.coastalPath); err != nil {
		return fmt.Errorf("write coastal path: %w", err)
	}
	if err := u.exporter.ExportPBEfforts(ctx, dataset.PBEffortsKey, data.pbEfforts); err != nil {
		return fmt.Errorf("write pb efforts: %w", err)
	}
	for _, result := range data.splits {
		if err := u.splitter.Persist(ctx, u.exporter, result); err != nil {
			return fmt.Errorf("write splits of %d: %w", result.ActivityID, err)
		}
	}
	if err := u.exporter.ExportMetadata(ctx, updatedAt); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (u *Updater) observeRun(started time.Time, err error) {
	if u.metricsManager == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	u.metricsManager.CounterUpdateRuns.WithLabelValues(result).Inc()
	u.metricsManager.HistUpdateDuration.Observe(time.Since(started).Seconds())
}
