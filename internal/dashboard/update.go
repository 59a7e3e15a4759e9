package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/stravadash/internal/telemetry/tracing"
	"github.com/2beens/stravadash/internal/workflow"
	"github.com/2beens/stravadash/pkg"
)

func (handler *Handler) handleTriggerUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.triggerUpdate")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if handler.workflow == nil {
		http.Error(w, "update workflow not configured", http.StatusServiceUnavailable)
		return
	}

	if err := handler.workflow.Trigger(ctx, handler.workflowRef); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("trigger update workflow: %s", err)
		http.Error(w, "failed to trigger update", http.StatusBadGateway)
		return
	}

	// the dispatch response carries no run id; the newest run is ours
	runID, err := handler.workflow.LatestRunID(ctx)
	if err != nil {
		log.Errorf("update triggered, get latest run: %s", err)
		pkg.WriteJSON(w, map[string]any{"run_id": nil}, http.StatusAccepted)
		return
	}

	span.SetAttributes(attribute.Int64("run.id", runID))
	log.Debugf("update workflow triggered, run %d", runID)
	pkg.WriteJSON(w, map[string]any{"run_id": runID}, http.StatusAccepted)
}

func (handler *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "dashboardHandler.updateStatus")
	defer span.End()

	if handler.workflow == nil {
		http.Error(w, "update workflow not configured", http.StatusServiceUnavailable)
		return
	}

	runID, err := strconv.ParseInt(mux.Vars(r)["runId"], 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := handler.workflow.GetRun(ctx, runID)
	if err != nil {
		var reqErr *workflow.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		log.Errorf("get workflow run %d: %s", runID, err)
		http.Error(w, "failed to get run", http.StatusBadGateway)
		return
	}

	pkg.WriteJSON(w, run, http.StatusOK)
}
