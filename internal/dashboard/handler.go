package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/auth"
	"github.com/2beens/stravadash/internal/dataset"
	"github.com/2beens/stravadash/internal/middleware"
	"github.com/2beens/stravadash/internal/splits"
	"github.com/2beens/stravadash/internal/storage"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/workflow"
	"github.com/2beens/stravadash/pkg"
)

var _ DatasetReader = (*dataset.Reader)(nil)

type DatasetReader interface {
	ReadActivities(ctx context.Context) ([]activity.Record, error)
	ReadPBEfforts(ctx context.Context) ([]activity.Record, error)
	ReadCoastalPath(ctx context.Context) ([]activity.Record, error)
	ReadMetadata(ctx context.Context) (*dataset.Metadata, error)
	ReadSplits(ctx context.Context, activityID int64) ([]splits.Record, error)
	ReadStream(ctx context.Context, activityID int64) (*splits.Series, error)
}

type WorkflowRunner interface {
	Trigger(ctx context.Context, ref string) error
	LatestRunID(ctx context.Context) (int64, error)
	GetRun(ctx context.Context, runID int64) (*workflow.Run, error)
}

type SessionService interface {
	Login(ctx context.Context, credentials auth.Credentials, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	reader      DatasetReader
	workflow    WorkflowRunner
	workflowRef string
	sessions    SessionService

	Now func() time.Time
}

type NewHandlerParams struct {
	Reader DatasetReader
	// Workflow is optional; without it the update routes answer 503.
	Workflow    WorkflowRunner
	WorkflowRef string
	// Sessions is optional; without it the login routes are not registered.
	Sessions SessionService
}

func NewHandler(params NewHandlerParams) *Handler {
	return &Handler{
		reader:      params.Reader,
		workflow:    params.Workflow,
		workflowRef: params.WorkflowRef,
		sessions:    params.Sessions,
		Now:         time.Now,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
	metricsManager *metrics.Manager,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc("/activities", handler.handleActivities).Methods("GET", "OPTIONS").Name("activities")
	mainRouter.HandleFunc("/activities/summary", handler.handleSummary).Methods("GET", "OPTIONS").Name("activities-summary")
	mainRouter.HandleFunc("/activities/progress", handler.handleProgress).Methods("GET", "OPTIONS").Name("activities-progress")
	mainRouter.HandleFunc("/activities/weekly", handler.handleWeekly).Methods("GET", "OPTIONS").Name("activities-weekly")
	mainRouter.HandleFunc("/activities/heatmap", handler.handleHeatmap).Methods("GET", "OPTIONS").Name("activities-heatmap")
	mainRouter.HandleFunc("/pb-efforts", handler.handlePBEfforts).Methods("GET", "OPTIONS").Name("pb-efforts")
	mainRouter.HandleFunc("/pb-efforts/{id:[0-9]+}/splits", handler.handleSplits).Methods("GET", "OPTIONS").Name("pb-effort-splits")
	mainRouter.HandleFunc("/coastal-path", handler.handleCoastalPath).Methods("GET", "OPTIONS").Name("coastal-path")
	mainRouter.HandleFunc("/metadata", handler.handleMetadata).Methods("GET", "OPTIONS").Name("metadata")
	mainRouter.HandleFunc("/update", handler.handleTriggerUpdate).Methods("POST", "OPTIONS").Name("update")
	mainRouter.HandleFunc("/update/{runId:[0-9]+}", handler.handleUpdateStatus).Methods("GET", "OPTIONS").Name("update-status")

	if handler.sessions == nil {
		return
	}

	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the /login and /logout endpoints to prevent abuse
	if rateLimiter != nil {
		loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", loginAllowedPerMin, metricsManager))
	}
	loginSubrouter.Use(middleware.LimitRequestBody(4 * 1024))
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

// Session holds the datasets loaded for one request. Nothing parsed is kept
// between requests, so every request sees the latest persisted data.
type Session struct {
	ctx    context.Context
	reader DatasetReader

	activities []activity.Record
	loaded     bool
}

func (handler *Handler) newSession(r *http.Request) *Session {
	return &Session{
		ctx:    r.Context(),
		reader: handler.reader,
	}
}

func (s *Session) Activities() ([]activity.Record, error) {
	if s.loaded {
		return s.activities, nil
	}
	records, err := s.reader.ReadActivities(s.ctx)
	if err != nil {
		return nil, err
	}
	s.activities, s.loaded = records, true
	return records, nil
}

// writeReadError maps a dataset read failure to a response.
func writeReadError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		log.Debugf("read %s: %s", what, err)
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	log.Errorf("read %s: %s", what, err)
	http.Error(w, "failed to read "+what, http.StatusInternalServerError)
}
