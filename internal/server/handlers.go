package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/ingest"
	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/report"
	"github.com/harrison/fragility/internal/store"
)

// Error messages shown to API clients
const (
	msgReadFailed    = "could not read data"
	msgPersistFailed = "could not persist result"
)

type errorResponse struct {
	Error  string               `json:"error"`
	Detail string               `json:"detail,omitempty"`
	Record *models.ReportRecord `json:"record,omitempty"`
}

type transitionsResponse struct {
	*analytics.TransitionTable
	SkippedRows int `json:"skipped_rows"`
}

type sequencesResponse struct {
	From     string                     `json:"from_action"`
	To       string                     `json:"to_action"`
	Examples []models.TransitionExample `json:"examples"`
}

type appendEventsRequest struct {
	Events []models.NewEvent `json:"events"`
}

type appendEventsResponse struct {
	Events []models.Event `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.opts.TransitionLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, transitionsResponse{
		TransitionTable: analytics.AnalyzeTransitions(snap.Events, limit),
		SkippedRows:     len(snap.Skipped),
	})
}

func (s *Server) handleSequences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", "")
		return
	}

	opts := s.opts.Windows
	var err error
	if opts.MaxExamples, err = intParam(r, "max", opts.MaxExamples); err == nil {
		if opts.Before, err = intParam(r, "before", opts.Before); err == nil {
			opts.After, err = intParam(r, "after", opts.After)
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sequencesResponse{
		From:     from,
		To:       to,
		Examples: analytics.ExtractExamples(snap.Events, from, to, opts),
	})
}

func (s *Server) handleSequenceStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	st, err := analytics.SequenceStats(snap.Events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not compute statistics", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	query, err := s.historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	records, err := s.reports.ListReports(r.Context(), query)
	if err != nil {
		s.logError(fmt.Sprintf("list reports: %v", err))
		writeError(w, http.StatusServiceUnavailable, msgReadFailed, err.Error())
		return
	}
	if records == nil {
		records = []models.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid report id", "")
		return
	}

	record, err := s.reports.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("report %d not found", id), "")
			return
		}
		s.logError(fmt.Sprintf("get report %d: %v", id, err))
		writeError(w, http.StatusServiceUnavailable, msgReadFailed, err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, record)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(record.Details))
	case "markdown":
		md, err := report.RenderMarkdown(record)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not render report", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
	case "html":
		html, err := report.RenderHTML(record)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not render report", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format), "")
	}
}

func (s *Server) handleBuildReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.builder.Build(r.Context())
	if err != nil {
		var readErr *report.ReadError
		var persistErr *report.PersistError
		switch {
		case errors.As(err, &readErr):
			writeError(w, http.StatusServiceUnavailable, msgReadFailed, readErr.Err.Error())
		case errors.As(err, &persistErr):
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:  msgPersistFailed,
				Detail: persistErr.Err.Error(),
				Record: persistErr.Record,
			})
		default:
			writeError(w, http.StatusInternalServerError, err.Error(), "")
		}
		return
	}
	writeJSON(w, http.StatusCreated, result.Record)
}

func (s *Server) handleAppendEvents(w http.ResponseWriter, r *http.Request) {
	var req appendEventsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events cannot be empty", "")
		return
	}

	appended, err := s.ingest.AddBulk(r.Context(), req.Events)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownAction) || errors.Is(err, store.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		s.logError(fmt.Sprintf("append events: %v", err))
		writeError(w, http.StatusInternalServerError, msgPersistFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, appendEventsResponse{Events: appended})
}

// loadSnapshot reads and normalizes events, writing a 503 on failure.
func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (*analytics.Snapshot, bool) {
	snap, err := analytics.LoadSnapshot(r.Context(), s.events)
	if err != nil {
		s.logError(fmt.Sprintf("read events: %v", err))
		writeError(w, http.StatusServiceUnavailable, msgReadFailed, err.Error())
		return nil, false
	}
	return snap, true
}

func (s *Server) historyQuery(r *http.Request) (models.HistoryQuery, error) {
	limit, err := intParam(r, "limit", s.opts.HistoryLimit)
	if err != nil {
		return models.HistoryQuery{}, err
	}
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	start, err := models.ParseTimeBound(r.URL.Query().Get("since"), false)
	if err != nil {
		return models.HistoryQuery{}, err
	}
	end, err := models.ParseTimeBound(r.URL.Query().Get("until"), true)
	if err != nil {
		return models.HistoryQuery{}, err
	}
	return models.HistoryQuery{Limit: limit, Start: start, End: end}, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}
