package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapmetrics/internal/engine"
	"github.com/leapstack-labs/leapmetrics/internal/state"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 20
)

type handlers struct {
	engine *engine.Engine
	logger *slog.Logger
}

// QueryResponse is the body of a successful compile or query call.
type QueryResponse struct {
	SQL        string        `json:"sql"`
	Columns    []core.Column `json:"columns,omitempty"`
	Rows       [][]any       `json:"rows,omitempty"`
	RowCount   int           `json:"row_count"`
	DurationMS int64         `json:"duration_ms"`
}

// HistoryEntry is one query history record.
type HistoryEntry struct {
	ID         string    `json:"id"`
	ExecutedAt time.Time `json:"executed_at"`
	Metrics    []string  `json:"metrics"`
	Dimensions []string  `json:"dimensions,omitempty"`
	SQL        string    `json:"sql"`
	Status     string    `json:"status"`
	RowCount   int       `json:"row_count"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"dialect": h.engine.Dialect().Name,
		"metrics": len(h.engine.ListMetrics()),
	})
}

func (h *handlers) listMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.DescribeMetrics())
}

func (h *handlers) getMetric(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, ok := h.engine.Registry().Metric(name)
	if !ok {
		h.writeError(w, r, &core.UnknownMetricError{Name: name})
		return
	}
	writeJSON(w, http.StatusOK, engine.DescribeMetric(m))
}

func (h *handlers) listDimensions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.DescribeDimensions())
}

func (h *handlers) listMeasures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.DescribeMeasures())
}

func (h *handlers) compile(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	compiled, err := h.engine.Compile(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{SQL: compiled.SQL})
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	result, err := h.engine.Query(r.Context(), req, engine.QueryOptions{DryRun: dryRun})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		SQL:        result.SQL,
		Columns:    result.Columns,
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		DurationMS: result.Duration.Milliseconds(),
	})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, &core.InvalidRequestError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := h.engine.History(r.Context(), limit)
	if errors.Is(err, engine.ErrHistoryDisabled) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "history_disabled"})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = toHistoryEntry(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) historyEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.HistoryEntry(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, engine.ErrHistoryDisabled):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "history_disabled"})
	case errors.Is(err, state.ErrEntryNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "not_found"})
	case err != nil:
		h.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, toHistoryEntry(entry))
	}
}

func toHistoryEntry(e *state.HistoryEntry) HistoryEntry {
	return HistoryEntry{
		ID:         e.ID,
		ExecutedAt: e.ExecutedAt,
		Metrics:    e.Metrics,
		Dimensions: e.Dimensions,
		SQL:        e.SQL,
		Status:     string(e.Status),
		RowCount:   e.RowCount,
		DurationMS: e.Duration.Milliseconds(),
		Error:      e.Error,
	}
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	errs := h.engine.Validate(r.Context())
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(errs) == 0,
		"errors": messages,
	})
}

// decodeRequest reads a JSON RequestParams body. On failure it writes the
// error response and returns false.
func (h *handlers) decodeRequest(w http.ResponseWriter, r *http.Request) (core.QueryRequest, bool) {
	var params engine.RequestParams
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		h.writeError(w, r, &core.InvalidRequestError{Message: "invalid JSON body: " + err.Error()})
		return core.QueryRequest{}, false
	}

	req, err := params.Request()
	if err != nil {
		h.writeError(w, r, err)
		return core.QueryRequest{}, false
	}
	return req, true
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class, kind := engine.Classify(err)
	status := statusFor(class)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	resp := ErrorResponse{Error: err.Error(), Kind: kind}
	var reqErr *core.InvalidRequestError
	if errors.As(err, &reqErr) {
		resp.Field = reqErr.Field
	}
	writeJSON(w, status, resp)
}

func statusFor(class engine.ErrorClass) int {
	switch class {
	case engine.ClassRequest:
		return http.StatusBadRequest
	case engine.ClassDefinition:
		return http.StatusUnprocessableEntity
	case engine.ClassTimeout:
		return http.StatusGatewayTimeout
	case engine.ClassInternal:
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
