package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/joelkehle/kundali/internal/config"
	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/render"
	"github.com/joelkehle/kundali/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePDF struct{ calls int }

func (f *fakePDF) Render(_ context.Context, markdown string, meta render.Meta) ([]byte, error) {
	f.calls++
	return []byte("%PDF-1.4 " + meta.ChartID), nil
}

func newServerForTest(t *testing.T, pdf PDFRenderer) (http.Handler, store.Store) {
	t.Helper()
	return newServerWithEngine(t, pdf, config.Default().Engine)
}

func newServerWithEngine(t *testing.T, pdf PDFRenderer, engine config.Engine) (http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	h := NewServer(Options{
		Store:  st,
		Engine: engine,
		PDF:    pdf,
		Clock:  func() time.Time { return now },
	})
	return h, st
}

const chartBody = `{
  "ascendantSignId": 2,
  "planets": [
    {"name": "Sun", "signId": 9, "house": 7},
    {"name": "Moon", "signId": 4},
    {"name": "Saturn", "signId": 11}
  ],
  "vimshottariTree": [
    {"rulingLord": "Venus", "start": "2001-01-01", "end": "2021-01-01"},
    {"rulingLord": "Sun", "start": "2021-01-01", "end": "2027-01-01"}
  ],
  "yoginiTree": [
    {"rulingLord": "Ulka", "start": "2020-01-01", "end": "2026-01-01"}
  ],
  "language": "en"
}`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return payload
}

func mustCreateChart(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/charts", chartBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("create chart status=%d body=%s", rr.Code, rr.Body.String())
	}
	id, _ := decode(t, rr)["id"].(string)
	if id == "" {
		t.Fatalf("expected chart id in %s", rr.Body.String())
	}
	return id
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, _ := decode(t, rr)["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func chainLords(t *testing.T, payload map[string]any) []string {
	t.Helper()
	raw, _ := payload["chain"].([]any)
	lords := make([]string, 0, len(raw))
	for _, item := range raw {
		lords = append(lords, item.(map[string]any)["rulingLord"].(string))
	}
	return lords
}

func TestHealth(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	rr := do(t, h, http.MethodGet, "/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status=%d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/health", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCreateChartReturnsValidatedOutput(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	rr := do(t, h, http.MethodPost, "/v1/charts", chartBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decode(t, rr)["output"].(map[string]any)
	if out["ascendantLabel"] != "Taurus" {
		t.Fatalf("expected backfilled ascendant label, got %v", out["ascendantLabel"])
	}
	mismatches := out["mismatches"].([]any)
	if len(mismatches) != 1 {
		t.Fatalf("expected one mismatch, got %v", mismatches)
	}
	m := mismatches[0].(map[string]any)
	if m["planet"] != "Sun" || m["apiHouse"] != float64(7) || m["derivedHouse"] != float64(8) {
		t.Fatalf("unexpected mismatch %v", m)
	}
	stages := decode(t, rr)["metadata"].(map[string]any)["stagesExecuted"].([]any)
	if len(stages) != 6 {
		t.Fatalf("expected 6 stages, got %v", stages)
	}
}

func TestCreateChartRejectsInvalidJSON(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	rr := do(t, h, http.MethodPost, "/v1/charts", `{"ascendantSignId": "two"`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != CodeValidation {
		t.Fatalf("expected validation code, got %q", code)
	}
}

func TestCreateChartWithoutSaving(t *testing.T) {
	h, st := newServerForTest(t, nil)
	rr := do(t, h, http.MethodPost, "/v1/charts?save=false", chartBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if _, ok := decode(t, rr)["id"]; ok {
		t.Fatalf("unsaved chart should have no id")
	}
	recs, _ := st.List(context.Background(), 0)
	if len(recs) != 0 {
		t.Fatalf("expected empty store, got %d records", len(recs))
	}
}

func TestChartLifecycle(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	if decode(t, rr)["id"] != id {
		t.Fatalf("expected record %s, got %s", id, rr.Body.String())
	}

	list := decode(t, do(t, h, http.MethodGet, "/v1/charts", ""))["charts"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["mismatches"] != float64(1) {
		t.Fatalf("unexpected list %v", list)
	}

	if rr := do(t, h, http.MethodDelete, "/v1/charts/"+id, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/v1/charts/"+id, "")
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != CodeNotFound {
		t.Fatalf("expected not_found after delete, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownChartAndRoute(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	if rr := do(t, h, http.MethodGet, "/v1/charts/missing/dasha/active", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing chart, got %d", rr.Code)
	}
	id := mustCreateChart(t, h)
	if rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/horoscope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/v1/charts/"+id+"/dasha/active", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestActiveChain(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	lords := chainLords(t, decode(t, rr))
	if len(lords) != 5 || lords[0] != "Sun" || lords[1] != "Saturn" {
		t.Fatalf("unexpected chain at clock time: %v", lords)
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active?at=2010-05-05T00:00:00Z", "")
	if lords := chainLords(t, decode(t, rr)); len(lords) != 5 || lords[0] != "Venus" {
		t.Fatalf("unexpected chain in 2010: %v", lords)
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active?at=1990-01-01", "")
	if lords := chainLords(t, decode(t, rr)); len(lords) != 0 {
		t.Fatalf("expected empty chain before the first period, got %v", lords)
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active?system=yogini", "")
	payload := decode(t, rr)
	if payload["system"] != "yogini" {
		t.Fatalf("expected yogini system, got %v", payload["system"])
	}
	if lords := chainLords(t, payload); len(lords) != 5 || lords[0] != "Ulka" {
		t.Fatalf("unexpected yogini chain: %v", lords)
	}
}

func TestActiveChainMatchesExpandedHierarchy(t *testing.T) {
	h, st := newServerForTest(t, nil)
	id := mustCreateChart(t, h)
	rec, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get chart: %v", err)
	}
	e := config.Default().Engine.Expander(dasha.Vimshottari())
	full := e.Expand(rec.Output.VimshottariTree)

	for _, at := range []string{"2001-01-01T00:00:00Z", "2008-07-19T13:00:00Z", "2020-12-31T23:59:59Z", "2021-01-01T00:00:00Z", "2024-06-01T00:00:00Z", "2026-12-31T00:00:00Z"} {
		rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active?at="+at, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", at, rr.Code, rr.Body.String())
		}
		var payload struct {
			Chain   []dasha.Block `json:"chain"`
			Warning string        `json:"warning"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: decode: %v", at, err)
		}
		if payload.Warning != "" {
			t.Fatalf("%s: unexpected warning %q", at, payload.Warning)
		}
		instant, _ := dasha.ParseInstant(at)
		lazy := e.ChainAt(rec.Output.VimshottariTree, instant)
		eager := dasha.FindActiveChain(full, instant)
		if len(payload.Chain) != len(lazy) || len(lazy) != len(eager) {
			t.Fatalf("%s: chain lengths served=%d lazy=%d eager=%d", at, len(payload.Chain), len(lazy), len(eager))
		}
		for i, got := range payload.Chain {
			want := lazy[i]
			if got.RulingLord != want.RulingLord || got.Level != want.Level || !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
				t.Fatalf("%s level %d: served %+v, want %+v", at, i+1, got, want)
			}
			if eager[i].RulingLord != want.RulingLord || !eager[i].Start.Equal(want.Start) {
				t.Fatalf("%s level %d: eager %+v disagrees with lazy %+v", at, i+1, eager[i], want)
			}
		}
	}
}

func TestDashaRoutesFollowEngineConfig(t *testing.T) {
	engine := config.Default().Engine
	engine.Granularity = "24h"
	engine.Drift = "preserve"
	engine.Depth = 3
	h, _ := newServerWithEngine(t, nil, engine)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active", "")
	if lords := chainLords(t, decode(t, rr)); len(lords) != 3 {
		t.Fatalf("expected a three level chain, got %v", lords)
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/report", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("report status=%d body=%s", rr.Code, rr.Body.String())
	}
	report := rr.Body.String()
	if !strings.Contains(report, "- Pratyantar:") || strings.Contains(report, "- Sookshma:") || strings.Contains(report, "- Pran:") {
		t.Fatalf("expected report chain to stop at Pratyantar:\n%s", report)
	}
}

const duplicateLordChartBody = `{
  "ascendantSignId": 1,
  "vimshottariTree": [
    {"rulingLord": "Sun", "start": "2020-01-01", "end": "2026-01-01", "level": 1, "children": [
      {"rulingLord": "Moon", "start": "2020-01-01", "end": "2023-01-01", "level": 2},
      {"rulingLord": "Moon", "start": "2023-01-01", "end": "2026-01-01", "level": 2}
    ]}
  ],
  "language": "en"
}`

func TestSuppliedTreeCheckFailureIsReported(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	rr := do(t, h, http.MethodPost, "/v1/charts", duplicateLordChartBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	id, _ := decode(t, rr)["id"].(string)

	for _, path := range []string{
		"/dasha/active?at=2024-01-01",
		"/dasha/upcoming?from=2021-01-01",
		"/dasha/periods?start=2020-01-01&end=2021-01-01",
	} {
		rr := do(t, h, http.MethodGet, "/v1/charts/"+id+path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		warning, _ := decode(t, rr)["warning"].(string)
		if !strings.Contains(warning, "duplicate ruling lord Moon") {
			t.Fatalf("%s: expected duplicate lord warning, got %q", path, warning)
		}
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active?at=2024-01-01", "")
	if lords := chainLords(t, decode(t, rr)); len(lords) != 2 || lords[1] != "Moon" {
		t.Fatalf("expected the supplied chain to be served, got %v", lords)
	}

	clean := mustCreateChart(t, h)
	if _, ok := decode(t, do(t, h, http.MethodGet, "/v1/charts/"+clean+"/dasha/active", ""))["warning"]; ok {
		t.Fatalf("unexpected warning for a Maha-only chart")
	}
}

func TestActiveChainRejectsBadQuery(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)
	for _, q := range []string{"?at=yesterday", "?system=chara"} {
		rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/active"+q, "")
		if rr.Code != http.StatusBadRequest || errorCode(t, rr) != CodeValidation {
			t.Fatalf("%s: expected validation error, got %d %s", q, rr.Code, rr.Body.String())
		}
	}
}

func TestUpcomingChanges(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/upcoming?limit=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	changes := decode(t, rr)["changes"].([]any)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range changes {
		start, err := time.Parse(time.RFC3339Nano, c.(map[string]any)["start"].(string))
		if err != nil {
			t.Fatalf("parse start: %v", err)
		}
		if !start.After(from) {
			t.Fatalf("change at %s is not after %s", start, from)
		}
	}
}

func TestPeriodsInRange(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/periods?start=2020-06-01&end=2021-06-01&level=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	periods := decode(t, rr)["periods"].([]any)
	if len(periods) != 2 {
		t.Fatalf("expected Venus and Sun maha periods, got %v", periods)
	}

	for _, q := range []string{"", "?start=2021-01-01", "?start=2022-01-01&end=2021-01-01"} {
		rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/dasha/periods"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestContextStack(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)

	body := `{"age": {"years": 40}, "transits": [
		{"planet": "Sun", "signId": 2},
		{"planet": "Saturn", "signId": 12},
		{"planet": "Moon", "signId": 5}
	]}`
	rr := do(t, h, http.MethodPost, "/v1/charts/"+id+"/context", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	dashaSummary := payload["dasha"].(map[string]any)
	if dashaSummary["maha"] != "Sun" || dashaSummary["antar"] != "Saturn" {
		t.Fatalf("unexpected dasha summary %v", dashaSummary)
	}
	var rulers []bool
	for _, tr := range payload["transits"].([]any) {
		rulers = append(rulers, tr.(map[string]any)["isPeriodRuler"].(bool))
	}
	if len(rulers) != 3 || !rulers[0] || !rulers[1] || rulers[2] {
		t.Fatalf("unexpected ruler tags %v", rulers)
	}

	if rr := do(t, h, http.MethodPost, "/v1/charts/"+id+"/context", `{"at": "soon"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad instant, got %d", rr.Code)
	}
}

func TestReportFormats(t *testing.T) {
	pdf := &fakePDF{}
	h, _ := newServerForTest(t, pdf)
	id := mustCreateChart(t, h)

	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/report", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# Chart Report") {
		t.Fatalf("unexpected markdown report %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "- Maha: Sun") {
		t.Fatalf("expected active chain in report:\n%s", rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/report?format=html", "")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<table>") {
		t.Fatalf("expected rendered tables")
	}

	rr = do(t, h, http.MethodGet, "/v1/charts/"+id+"/report?format=pdf", "")
	if rr.Header().Get("Content-Type") != "application/pdf" || pdf.calls != 1 {
		t.Fatalf("expected pdf render, got %q calls=%d", rr.Header().Get("Content-Type"), pdf.calls)
	}

	if rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/report?format=docx", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rr.Code)
	}
}

func TestReportPDFUnavailable(t *testing.T) {
	h, _ := newServerForTest(t, nil)
	id := mustCreateChart(t, h)
	rr := do(t, h, http.MethodGet, "/v1/charts/"+id+"/report?format=pdf", "")
	if rr.Code != http.StatusServiceUnavailable || errorCode(t, rr) != CodeUnavailable {
		t.Fatalf("expected 503 unavailable, got %d %s", rr.Code, rr.Body.String())
	}
}
