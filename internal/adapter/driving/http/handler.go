// Package httphandler is the REST driving adapter for run ingestion and queries.
package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/mirror/internal/application"
	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

const (
	healthPath = "/api/v1/health"

	// maxBodyBytes bounds submission and catalog request bodies.
	maxBodyBytes = 16 << 20
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	ingest  *application.IngestService
	query   *application.QueryService
	catalog *application.CatalogService
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	ingest *application.IngestService,
	query *application.QueryService,
	catalog *application.CatalogService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		ingest:  ingest,
		query:   query,
		catalog: catalog,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with auth, logging, and recovery middleware. An empty jwtSecret disables auth.
func NewServeMux(h *Handler, jwtSecret string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/runs", h.SubmitRun)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{run_id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/decisions", h.ListDecisions)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/modules", h.ListModules)
	mux.HandleFunc("PUT /api/v1/requirements", h.ImportRequirements)
	mux.HandleFunc("GET /api/v1/requirements", h.ListRequirements)
	mux.HandleFunc("GET "+healthPath, h.Health)

	// Auth innermost, recovery around it so panics are caught before logging.
	wrapped := authMiddleware(jwtSecret, logger, mux)
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// SubmitRun stores a run submission. It responds 201 for new or changed
// runs and 200 for a pure replay of an already stored submission.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	sub, err := req.toSubmission()
	if err != nil {
		h.writeServiceError(w, err, "failed to decode submission")
		return
	}

	result, err := h.ingest.Submit(r.Context(), sub, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.writeServiceError(w, err, "failed to store run")
		return
	}

	status := http.StatusCreated
	if result.Outcome == model.UpsertUnchanged {
		status = http.StatusOK
	}

	writeJSON(w, status, SubmitRunResponse{
		RunID:        result.RunID,
		DashboardURL: result.DashboardURL,
		Outcome:      string(result.Outcome),
	})
}

// ListRuns returns one page of runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.RunFilter{
		Project: q.Get("project"),
		Branch:  q.Get("branch"),
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from"), false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to"), true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	var page model.PageRequest
	if page.Page, err = parseIntParam(q.Get("page"), 1); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize := q.Get("pageSize")
	if pageSize == "" {
		pageSize = q.Get("page_size")
	}
	if page.PageSize, err = parseIntParam(pageSize, model.DefaultPageSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pageSize")
		return
	}

	listing, err := h.query.ListRuns(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]RunListItem, 0, len(listing.Items))
	for _, s := range listing.Items {
		items = append(items, toRunListItem(s))
	}

	writeJSON(w, http.StatusOK, RunListResponse{
		Items:    items,
		Page:     listing.Page,
		PageSize: listing.PageSize,
		Total:    listing.Total,
	})
}

// GetRun returns a single run by run_id.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	summary, err := h.query.GetRun(r.Context(), runID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunDetailResponse(summary))
}

// ListDecisions returns the decisions of a run. Unknown runs yield an empty array.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	decisions, err := h.query.ListDecisions(r.Context(), runID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list decisions")
		return
	}

	resp := make([]DecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		resp = append(resp, toDecisionResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListModules returns the per-module coverage rollup of a run.
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	rows, err := h.query.ModuleCoverage(r.Context(), runID)
	if err != nil {
		h.writeServiceError(w, err, "failed to compute module coverage")
		return
	}

	resp := make([]ModuleCoverageResponse, 0, len(rows))
	for _, m := range rows {
		resp = append(resp, toModuleCoverageResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ImportRequirements upserts the requirement catalog of the project named by
// the project query parameter.
func (h *Handler) ImportRequirements(w http.ResponseWriter, r *http.Request) {
	project := strings.TrimSpace(r.URL.Query().Get("project"))
	if project == "" {
		writeError(w, http.StatusBadRequest, "project query parameter is required")
		return
	}

	var req []RequirementSpecRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	specs := make([]model.RequirementSpec, 0, len(req))
	for _, s := range req {
		specs = append(specs, s.toSpec())
	}

	if err := h.catalog.Import(r.Context(), project, specs); err != nil {
		h.writeServiceError(w, err, "failed to import requirements")
		return
	}

	writeJSON(w, http.StatusOK, ImportRequirementsResponse{Project: project, Imported: len(specs)})
}

// ListRequirements returns the requirement catalog of a project.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	project := strings.TrimSpace(r.URL.Query().Get("project"))
	if project == "" {
		writeError(w, http.StatusBadRequest, "project query parameter is required")
		return
	}

	specs, err := h.catalog.List(r.Context(), project)
	if err != nil {
		h.writeServiceError(w, err, "failed to list requirements")
		return
	}

	resp := make([]RequirementSpecResponse, 0, len(specs))
	for _, s := range specs {
		resp = append(resp, toRequirementSpecResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps application errors onto HTTP responses. Validation
// errors and missing runs carry their own message; anything else is a
// storage failure reported as 500 with its message.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, driven.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseTimeParam parses an RFC 3339 timestamp or a bare date. A bare date used
// as an upper bound covers the whole day.
func parseTimeParam(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// parseIntParam parses an optional integer query parameter, returning def
// when it is absent. Present values are returned as given, even 0.
func parseIntParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
