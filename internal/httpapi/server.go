package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joelkehle/kundali/internal/chart"
	"github.com/joelkehle/kundali/internal/config"
	"github.com/joelkehle/kundali/internal/contextstack"
	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/render"
	"github.com/joelkehle/kundali/internal/store"
	"github.com/joelkehle/kundali/internal/telemetry"
)

const maxBodyBytes = 4 << 20

// PDFRenderer prints report markdown. ChromiumPDFRenderer satisfies it.
type PDFRenderer interface {
	Render(ctx context.Context, markdown string, meta render.Meta) ([]byte, error)
}

type Options struct {
	Store    store.Store
	Pipeline *chart.Pipeline
	Engine   config.Engine
	Logger   *zap.Logger
	// PDF is optional; without it report?format=pdf answers 503.
	PDF   PDFRenderer
	Clock func() time.Time
}

type Server struct {
	store    store.Store
	pipeline *chart.Pipeline
	engine   config.Engine
	logger   *zap.Logger
	pdf      PDFRenderer
	clock    func() time.Time
}

func NewServer(opts Options) http.Handler {
	s := &Server{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		engine:   opts.Engine,
		logger:   opts.Logger,
		pdf:      opts.PDF,
		clock:    opts.Clock,
	}
	if s.pipeline == nil {
		s.pipeline = chart.NewPipeline(opts.Engine.Language)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/charts", s.traced("charts", s.handleCharts))
	mux.HandleFunc("/v1/charts/", s.traced("chart", s.handleChart))
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	span := trace.SpanFromContext(r.Context())
	span.SetStatus(codes.Error, apiErr.Message)
	span.SetAttributes(attribute.String("error.code", apiErr.Code))
	writeJSON(w, apiErr.Status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// traced runs h inside a server span and logs the outcome.
func (s *Server) traced(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := telemetry.Tracer().Start(r.Context(), r.Method+" /v1/"+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		h(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(started)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type chartSummary struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	AscendantSignID int       `json:"ascendantSignId"`
	AscendantLabel  string    `json:"ascendantLabel"`
	Language        string    `json:"language"`
	Mismatches      int       `json:"mismatches"`
	Repairs         int       `json:"repairs"`
}

func summarize(rec store.Record) chartSummary {
	return chartSummary{
		ID:              rec.ID,
		CreatedAt:       rec.CreatedAt,
		AscendantSignID: int(rec.Output.AscendantSignID),
		AscendantLabel:  rec.Output.AscendantLabel,
		Language:        string(rec.Output.Language),
		Mismatches:      len(rec.Output.Mismatches),
		Repairs:         len(rec.Output.FixLog),
	}
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createChart(w, r)
	case http.MethodGet:
		recs, err := s.store.List(r.Context(), parseInt(r.URL.Query().Get("limit"), 50))
		if err != nil {
			writeError(w, r, err)
			return
		}
		charts := make([]chartSummary, 0, len(recs))
		for _, rec := range recs {
			charts = append(charts, summarize(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{"charts": charts})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createChart(w http.ResponseWriter, r *http.Request) {
	blob, err := readBody(r)
	if err != nil {
		writeError(w, r, invalidJSON(err))
		return
	}
	var in chart.Input
	if err := json.Unmarshal(blob, &in); err != nil {
		writeError(w, r, invalidJSON(err))
		return
	}

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	res, err := s.pipeline.RunWithProgress(ctx, in, func(stage, message string) {
		span.AddEvent(stage, trace.WithAttributes(attribute.String("message", message)))
		s.logger.Debug("chart stage", zap.String("stage", stage), zap.String("message", message))
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("save") == "false" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "output": res.Output, "metadata": res.Metadata})
		return
	}
	rec, err := s.store.Save(ctx, in, res.Output)
	if err != nil {
		writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("chart.id", rec.ID))
	s.logger.Info("chart saved",
		zap.String("chart_id", rec.ID),
		zap.Int("mismatches", len(res.Output.Mismatches)),
		zap.Int("repairs", len(res.Output.FixLog)))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"id":        rec.ID,
		"createdAt": rec.CreatedAt,
		"output":    rec.Output,
		"metadata":  res.Metadata,
	})
}

// handleChart serves /v1/charts/{id} and the queries nested under it.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id, rest, _ := strings.Cut(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/charts/"), "/"), "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("chart.id", id))

	switch rest {
	case "":
		s.handleChartRecord(w, r, id)
	case "dasha/active":
		s.withChart(w, r, id, http.MethodGet, s.activeChain)
	case "dasha/upcoming":
		s.withChart(w, r, id, http.MethodGet, s.upcoming)
	case "dasha/periods":
		s.withChart(w, r, id, http.MethodGet, s.periods)
	case "context":
		s.withChart(w, r, id, http.MethodPost, s.contextStack)
	case "report":
		s.withChart(w, r, id, http.MethodGet, s.report)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleChartRecord(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) withChart(w http.ResponseWriter, r *http.Request, id, method string, h func(http.ResponseWriter, *http.Request, store.Record)) {
	if !methodOnly(w, r, method) {
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h(w, r, rec)
}

func systemParam(r *http.Request) (dasha.System, error) {
	name := strings.TrimSpace(r.URL.Query().Get("system"))
	sys, ok := dasha.SystemByName(name)
	if !ok {
		return dasha.System{}, validationError("unknown dasha system %q", name)
	}
	return sys, nil
}

// hierarchy builds the chart's hierarchy for the ?system= query parameter.
// A supplied tree that fails its structural check is still served; the
// returned warning describes the failure.
func (s *Server) hierarchy(r *http.Request, out chart.Output) (*dasha.Hierarchy, string, error) {
	sys, err := systemParam(r)
	if err != nil {
		return nil, "", err
	}
	_, span := telemetry.Tracer().Start(r.Context(), "dasha.hierarchy",
		trace.WithAttributes(attribute.String("dasha.system", sys.Name())))
	defer span.End()
	h, checkErr := chart.Hierarchy(out, s.engine.Expander(sys))
	span.SetAttributes(attribute.Int("dasha.nodes", h.Len()))
	return h, s.treeWarning(r, checkErr), nil
}

// activeChainFor resolves the chain without building levels off the path
// to at when the chart carries only Maha periods.
func (s *Server) activeChainFor(r *http.Request, out chart.Output, sys dasha.System, at time.Time) (dasha.Chain, string) {
	_, span := telemetry.Tracer().Start(r.Context(), "dasha.chain",
		trace.WithAttributes(attribute.String("dasha.system", sys.Name())))
	defer span.End()
	chain, checkErr := chart.ActiveChain(out, s.engine.Expander(sys), at)
	span.SetAttributes(attribute.Int("dasha.depth", len(chain)))
	if chain == nil {
		chain = dasha.Chain{}
	}
	return chain, s.treeWarning(r, checkErr)
}

func (s *Server) treeWarning(r *http.Request, err error) string {
	if err == nil {
		return ""
	}
	s.logger.Warn("supplied dasha tree failed check",
		zap.String("path", r.URL.Path), zap.Error(err))
	return err.Error()
}

func withWarning(payload map[string]any, warning string) map[string]any {
	if warning != "" {
		payload["warning"] = warning
	}
	return payload
}

// instant parses an ISO timestamp query parameter, defaulting to now.
func (s *Server) instant(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return s.clock().UTC(), nil
	}
	at, err := dasha.ParseInstant(raw)
	if err != nil {
		return time.Time{}, validationError("%s: %v", key, err)
	}
	return at, nil
}

func (s *Server) activeChain(w http.ResponseWriter, r *http.Request, rec store.Record) {
	at, err := s.instant(r, "at")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sys, err := systemParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	chain, warning := s.activeChainFor(r, rec.Output, sys, at)
	writeJSON(w, http.StatusOK, withWarning(map[string]any{"system": sys.Name(), "at": at, "chain": chain}, warning))
}

func (s *Server) upcoming(w http.ResponseWriter, r *http.Request, rec store.Record) {
	from, err := s.instant(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h, warning, err := s.hierarchy(r, rec.Output)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changes := dasha.UpcomingChanges(h, from, parseInt(r.URL.Query().Get("limit"), 10))
	writeJSON(w, http.StatusOK, withWarning(map[string]any{"system": h.System(), "from": from, "changes": nonNil(changes)}, warning))
}

func (s *Server) periods(w http.ResponseWriter, r *http.Request, rec store.Record) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, r, validationError("start and end are required"))
		return
	}
	start, err := s.instant(r, "start")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := s.instant(r, "end")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !start.Before(end) {
		writeError(w, r, validationError("start must be before end"))
		return
	}
	h, warning, err := s.hierarchy(r, rec.Output)
	if err != nil {
		writeError(w, r, err)
		return
	}
	periods := dasha.PeriodsInRange(h, start, end)
	if lvl := parseInt(q.Get("level"), 0); lvl > 0 {
		filtered := periods[:0:0]
		for _, b := range periods {
			if int(b.Level) == lvl {
				filtered = append(filtered, b)
			}
		}
		periods = filtered
	}
	writeJSON(w, http.StatusOK, withWarning(map[string]any{"system": h.System(), "periods": nonNil(periods)}, warning))
}

type contextRequest struct {
	At       string                 `json:"at"`
	System   string                 `json:"system"`
	Age      contextstack.Age       `json:"age"`
	Transits []contextstack.Transit `json:"transits"`
}

func (s *Server) contextStack(w http.ResponseWriter, r *http.Request, rec store.Record) {
	blob, err := readBody(r)
	if err != nil {
		writeError(w, r, invalidJSON(err))
		return
	}
	var req contextRequest
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, r, invalidJSON(err))
		return
	}
	at := s.clock().UTC()
	if strings.TrimSpace(req.At) != "" {
		if at, err = dasha.ParseInstant(req.At); err != nil {
			writeError(w, r, validationError("at: %v", err))
			return
		}
	}
	sys, ok := dasha.SystemByName(req.System)
	if !ok {
		writeError(w, r, validationError("unknown dasha system %q", req.System))
		return
	}

	stack, err := contextstack.Gather(r.Context(), req.Age,
		func(context.Context) (dasha.Chain, error) {
			chain, _ := s.activeChainFor(r, rec.Output, sys, at)
			return chain, nil
		},
		func(context.Context) ([]contextstack.Transit, error) {
			return req.Transits, nil
		})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stack)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request, rec store.Record) {
	at, err := s.instant(r, "at")
	if err != nil {
		writeError(w, r, err)
		return
	}
	chain, _ := s.activeChainFor(r, rec.Output, dasha.Vimshottari(), at)
	markdown := chart.BuildReport(rec.Output, chain)
	meta := render.Meta{
		ChartID:     rec.ID,
		Ascendant:   rec.Output.AscendantLabel,
		Language:    string(rec.Output.Language),
		GeneratedAt: s.clock(),
		Mismatches:  len(rec.Output.Mismatches),
		Repairs:     len(rec.Output.FixLog),
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, markdown)
	case "html":
		doc, err := render.HTML(markdown, meta)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, doc)
	case "pdf":
		if s.pdf == nil {
			writeError(w, r, newError(CodeUnavailable, "pdf rendering is not configured"))
			return
		}
		pdf, err := s.pdf.Render(r.Context(), markdown, meta)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	default:
		writeError(w, r, validationError("unknown report format %q", format))
	}
}

func nonNil(blocks []dasha.Block) []dasha.Block {
	if blocks == nil {
		return []dasha.Block{}
	}
	return blocks
}
