package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"retaildash/internal/core"
	"retaildash/internal/log"
	"retaildash/internal/pipeline"
	"retaildash/internal/render"
)

const (
	defaultPreviewRows = 100
	maxPreviewRows     = 1000
)

var errDatasetUnavailable = errors.New("dataset unavailable")

// statusFor maps selection and computation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadParam):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidDateRange), errors.Is(err, core.ErrMissingDateRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errDatasetUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
	}
	ErrorResponse(status, err.Error()).Write(w)
}

// selection loads the dataset and resolves p against its options.
func (s *Server) selection(ctx context.Context, p CriteriaParams) (core.Dataset, core.Criteria, error) {
	ds, err := s.datasets.Get(ctx, s.source)
	if err != nil {
		return core.Dataset{}, core.Criteria{}, fmt.Errorf("%w: %v", errDatasetUnavailable, err)
	}
	c, err := p.Criteria(ds.Options(), s.emptyMatchesAll)
	if err != nil {
		return core.Dataset{}, core.Criteria{}, err
	}
	return ds, c, nil
}

// undated reports whether c carries no date range at all, which only happens
// when the dataset has no valid dates and the client sent none.
func undated(c core.Criteria) bool {
	return c.Start.IsZero() && c.End.IsZero()
}

func (s *Server) dashboard(ctx context.Context, p CriteriaParams) (core.Dataset, core.Criteria, core.Dashboard, error) {
	ds, c, err := s.selection(ctx, p)
	if err != nil {
		return core.Dataset{}, core.Criteria{}, core.Dashboard{}, err
	}

	var d core.Dashboard
	if undated(c) {
		// no row can match without a valid date
		d, err = pipeline.Run(ctx, nil)
	} else {
		d, err = pipeline.Compute(ctx, ds.Rows, c)
	}
	if err != nil {
		return core.Dataset{}, core.Criteria{}, core.Dashboard{}, err
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogDashboardComputed(ctx, ds.Source, ds.Len(), d.Rows,
		c.Statuses, c.Types, c.Tiers, formatDate(c.Start), formatDate(c.End))
	return ds, c, d, nil
}

func (s *Server) computeDashboard(ctx context.Context, p CriteriaParams) (dashboardJSON, error) {
	ds, c, d, err := s.dashboard(ctx, p)
	if err != nil {
		return dashboardJSON{}, err
	}
	return newDashboardJSON(ds.Source, c, d), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data := struct {
		Source  string
		Rows    int
		Skipped int
		Options core.FilterOptions
		Charts  []render.ChartSpec
		Error   string
	}{Source: s.source, Charts: render.Specs}

	if ds, err := s.datasets.Get(ctx, s.source); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Dataset load failed", log.FieldSource, s.source, log.FieldError, err)
		data.Error = "The transaction data could not be loaded."
	} else {
		data.Rows = ds.Len()
		data.Skipped = ds.Skipped
		data.Options = ds.Options()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Index template execution failed", log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, err := s.datasets.Get(ctx, s.source)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errDatasetUnavailable, err))
		return
	}
	NewJSONResponse().Body(newOptionsJSON(ds)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	d, err := s.computeDashboard(ctx, ParseCriteriaQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, c, err := s.selection(ctx, ParseCriteriaQuery(r.URL.Query()))
	if err == nil && !undated(c) {
		err = c.Validate()
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// the preview lists the date range only, before the member selections
	var matched []core.Transaction
	if !undated(c) {
		matched = pipeline.InDateRange(ds.Rows, c.Start, c.End)
	}
	limit := queryInt(r.URL.Query().Get("limit"), defaultPreviewRows, maxPreviewRows)
	NewJSONResponse().Body(newPreviewJSON(ds.Source, len(matched), pipeline.Preview(matched, limit))).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	spec, ok := render.Lookup(mux.Vars(r)["name"])
	if !ok {
		NotFoundError("unknown chart").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	_, _, d, err := s.dashboard(ctx, ParseCriteriaQuery(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, spec, d); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Chart render failed",
			log.FieldChart, spec.Name, log.FieldOperation, log.OpRender, log.FieldError, err)
		InternalServerError("chart rendering failed").Write(w)
		return
	}

	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleReload drops the cached dataset and loads it again. Websocket clients
// are told through the cache invalidation hook.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s.datasets.Invalidate(s.source)
	ds, err := s.datasets.Get(ctx, s.source)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errDatasetUnavailable, err))
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Dataset reloaded on request",
		log.FieldSource, ds.Source, log.FieldRows, ds.Len(), log.FieldOperation, log.OpReload)
	NewJSONResponse().Body(newOptionsJSON(ds)).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once the dataset can be loaded and the page
// templates parsed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"templates": "ok", "dataset": "ok"}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = http.StatusServiceUnavailable
	}
	if _, err := s.datasets.Get(ctx, s.source); err != nil {
		checks["dataset"] = "failed: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	NewJSONResponse().Status(status).Body(map[string]any{"status": state, "checks": checks}).Write(w)
}
