package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/render/service"
	"github.com/nemanja-m/ccrender/internal/shared/config"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type API struct {
	orchestrator core.Orchestrator
	runs         core.RunStore
	artifacts    core.ArtifactStore
	probe        service.BreakerProbe
	logger       logging.Logger
}

// NewAPI builds the HTTP handlers. probe may be nil, in which case /healthz does not
// report remote reachability.
func NewAPI(
	orchestrator core.Orchestrator,
	runs core.RunStore,
	artifacts core.ArtifactStore,
	probe service.BreakerProbe,
	logger logging.Logger,
) *API {
	return &API{
		orchestrator: orchestrator,
		runs:         runs,
		artifacts:    artifacts,
		probe:        probe,
		logger:       logger,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/renders", a.createRender)
	mux.HandleFunc("GET /api/renders", a.listRenders)
	mux.HandleFunc("GET /api/renders/{id}", a.getRender)
	mux.HandleFunc("GET /api/artifacts", a.listArtifacts)
	mux.HandleFunc("GET /healthz", a.health)
}

// createRender runs one orchestration inside the request. The response is sent
// once the run reaches a terminal state.
func (a *API) createRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome := a.orchestrator.Run(r.Context(), req.ToJobRequest())
	a.respondJSON(w, HTTPStatus(outcome), ToOutcomeResponse(outcome))
}

// getRender handles GET /api/renders/{id}
func (a *API) getRender(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid run ID", err.Error())
		return
	}

	run, err := a.runs.GetRun(r.Context(), id)
	if errors.Is(err, core.ErrRunNotFound) {
		a.respondError(w, http.StatusNotFound, "run not found", "")
		return
	}
	if err != nil {
		a.logger.Error("Failed to get run", "run_id", id.String(), "error", err)
		a.respondError(w, http.StatusInternalServerError, "failed to get run", "")
		return
	}

	a.respondJSON(w, http.StatusOK, ToGetRunResponse(run))
}

// listRenders handles GET /api/renders with filters and pagination
func (a *API) listRenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := core.RunFilter{Limit: defaultLimit}
	if s := query.Get("status"); s != "" {
		state := core.RunState(s)
		if !isKnownState(state) {
			a.respondError(w, http.StatusBadRequest, "invalid status filter", s)
			return
		}
		filter.State = &state
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = min(l, maxLimit)
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	runs, total, err := a.runs.ListRuns(r.Context(), filter)
	if err != nil {
		a.logger.Error("Failed to list runs", "error", err)
		a.respondError(w, http.StatusInternalServerError, "failed to list runs", "")
		return
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, ToRunSummary(run))
	}

	var nextOffset *int
	if end := filter.Offset + len(runs); end < total {
		nextOffset = &end
	}

	a.respondJSON(w, http.StatusOK, ListRunsResponse{
		Runs:       summaries,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		NextOffset: nextOffset,
	})
}

// listArtifacts handles GET /api/artifacts?pattern=
func (a *API) listArtifacts(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "**"
	}

	names, err := a.artifacts.List(r.Context(), pattern)
	if errors.Is(err, doublestar.ErrBadPattern) {
		a.respondError(w, http.StatusBadRequest, "invalid pattern", pattern)
		return
	}
	if err != nil {
		a.logger.Error("Failed to list artifacts", "pattern", pattern, "error", err)
		a.respondError(w, http.StatusInternalServerError, "failed to list artifacts", "")
		return
	}

	a.respondJSON(w, http.StatusOK, ListArtifactsResponse{Pattern: pattern, Artifacts: names})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if a.probe != nil {
		resp.Remote = "reachable"
		if a.probe.BreakerOpen() {
			resp.Remote = "circuit_open"
		}
	}
	a.respondJSON(w, http.StatusOK, resp)
}

func isKnownState(s core.RunState) bool {
	switch s {
	case core.RunStateSubmitting, core.RunStatePolling, core.RunStateFetching,
		core.RunStateSucceeded, core.RunStateFailed, core.RunStateTimedOut:
		return true
	}
	return false
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Warn("Failed to encode response", "error", err)
	}
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, error string, message string) {
	resp := ErrorResponse{
		Error:   error,
		Message: message,
		Code:    statusCode,
	}
	a.respondJSON(w, statusCode, resp)
}

// NewServer builds the REST server. Request contexts derive from runCtx, so
// canceling it aborts every in-flight render.
func NewServer(runCtx context.Context, cfg config.RESTConfig, api *API, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return runCtx },
	}
}

// Drain stops srv from accepting connections and waits up to timeout for
// in-flight renders. Renders still running after that are canceled through
// cancelRuns and get grace to respond with their canceled outcome.
func Drain(srv *http.Server, cancelRuns context.CancelFunc, timeout, grace time.Duration) error {
	defer cancelRuns()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	cancelRuns()
	graceCtx, graceCancel := context.WithTimeout(context.Background(), grace)
	defer graceCancel()

	if err := srv.Shutdown(graceCtx); err != nil {
		return fmt.Errorf("drain canceled renders: %w", err)
	}
	return nil
}
