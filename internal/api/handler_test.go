package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/assumed-cables/internal/scenario"
	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

var testNow = time.Date(2026, time.February, 3, 12, 0, 0, 0, time.UTC)

func testDataset() model.Dataset {
	return model.Dataset{
		Directions: []model.Direction{
			{ID: 1, Number: "K-1", StartWellID: 1, EndWellID: 2, LengthM: 100, Coords: orb.LineString{{65.0, 57.0}, {65.001, 57.0}}},
			{ID: 2, Number: "K-2", StartWellID: 2, EndWellID: 3, LengthM: 50, Coords: orb.LineString{{65.001, 57.0}, {65.002, 57.0}}},
		},
		Capacities: []model.DirectionCapacity{{DirectionID: 1, Unaccounted: 2}, {DirectionID: 2, Unaccounted: 1}},
		Tags:       []model.WellOwnerCount{{WellID: 1, OwnerID: 1, Count: 1}},
		Wells:      []model.Well{{ID: 1, Number: "W-1"}, {ID: 2, Number: "W-2"}, {ID: 3, Number: "W-3"}},
		Owners:     []model.Owner{{ID: 1, Name: "Alpha"}},
	}
}

type fixture struct {
	mem    *store.Memory
	router http.Handler
	obs    *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory(testDataset())
	clock := timectrl.NewManual(testNow, 0)
	rb, err := scenario.NewRebuilder(mem, nil, scenario.WithClock(clock))
	if err != nil {
		t.Fatalf("NewRebuilder: %v", err)
	}
	obs := &recordingObserver{}
	h := NewHandler(rb, scenario.NewReader(mem, nil, clock), nil)
	return &fixture{mem: mem, router: NewRouter(h, nil, obs), obs: obs}
}

func (f *fixture) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (Envelope, map[string]any) {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	env := Envelope{Data: raw["data"]}
	env.Success, _ = raw["success"].(bool)
	env.Message, _ = raw["message"].(string)
	data, _ := raw["data"].(map[string]any)
	return env, data
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveHTTP(route, method string, code int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s %s %d", method, route, code))
}

func TestRebuildEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", http.Header{UserIDHeader: {"42"}, requestIDHeader: {"req-1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-1" {
		t.Fatalf("request id echoed = %q", got)
	}
	env, data := decodeEnvelope(t, rec)
	if !env.Success || env.Message != scenario.MessageRebuilt {
		t.Fatalf("envelope = %+v", env)
	}
	variants, _ := data["variants"].([]any)
	if len(variants) != 3 || data["build_id"] == "" {
		t.Fatalf("data = %v", data)
	}

	sc, err := f.mem.LatestScenario(context.Background(), 1)
	if err != nil {
		t.Fatalf("LatestScenario: %v", err)
	}
	if sc.BuiltBy == nil || *sc.BuiltBy != 42 {
		t.Fatalf("built_by = %v, want 42", sc.BuiltBy)
	}
}

func TestRebuildEndpointLowercaseHeaders(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", http.Header{"x-user-id": {"7"}, "x-request-id": {"lower-1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get(requestIDHeader); got != "lower-1" {
		t.Fatalf("request id echoed = %q", got)
	}
	sc, err := f.mem.LatestScenario(context.Background(), 2)
	if err != nil {
		t.Fatalf("LatestScenario: %v", err)
	}
	if sc.BuiltBy == nil || *sc.BuiltBy != 7 {
		t.Fatalf("built_by = %v, want 7", sc.BuiltBy)
	}
}

func TestRebuildEndpointSchemaMissing(t *testing.T) {
	f := newFixture(t)
	f.mem.SetSchemaMissing(true)
	rec := f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env, _ := decodeEnvelope(t, rec)
	if !env.Success || env.Message != scenario.MessageSchemaMissing || env.Data != nil {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRebuildEndpointNoCapacity(t *testing.T) {
	f := newFixture(t)
	ds := testDataset()
	ds.Capacities = nil
	f.mem.SetDataset(ds)
	rec := f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", nil)
	env, data := decodeEnvelope(t, rec)
	if rec.Code != http.StatusOK || env.Message != scenario.MessageNoCapacity {
		t.Fatalf("status %d envelope %+v", rec.Code, env)
	}
	if variants, ok := data["variants"].([]any); !ok || len(variants) != 0 {
		t.Fatalf("variants = %v", data["variants"])
	}
}

type stubRebuilder struct{ err error }

func (s stubRebuilder) Rebuild(context.Context, scenario.Request) (scenario.Result, error) {
	return scenario.Result{}, s.err
}

func (s stubRebuilder) InProgress() bool { return s.err != nil }

func TestRebuildEndpointErrors(t *testing.T) {
	cases := []struct {
		err     error
		code    int
		message string
	}{
		{scenario.ErrRebuildInProgress, http.StatusConflict, scenario.ErrRebuildInProgress.Error()},
		{fmt.Errorf("config: %w", scenario.ErrInvalidVariant), http.StatusBadRequest, "config: invalid variant"},
		{errors.New("pq: connection reset by peer"), http.StatusInternalServerError, msgRebuildFailed},
	}
	for _, tc := range cases {
		h := NewHandler(stubRebuilder{err: tc.err}, scenario.NewReader(store.NewMemory(model.Dataset{}), nil, nil), nil)
		router := NewRouter(h, nil, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assumed-cables/rebuild", nil))
		if rec.Code != tc.code {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.code)
		}
		env, _ := decodeEnvelope(t, rec)
		if env.Success || env.Message != tc.message {
			t.Fatalf("%v: envelope = %+v", tc.err, env)
		}
		if strings.Contains(rec.Body.String(), "connection reset") {
			t.Fatalf("internal error leaked: %s", rec.Body)
		}
	}
}

func TestGeoJSONEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", nil)

	rec := f.do(t, http.MethodGet, "/api/assumed-cables/geojson?variant=7", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/geo+json") {
		t.Fatalf("status %d content-type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var fc struct {
		Type     string           `json:"type"`
		Variant  int              `json:"variant"`
		Features []map[string]any `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || fc.Variant != 1 || len(fc.Features) != 2 {
		t.Fatalf("collection = %+v", fc)
	}
}

func TestListEndpointBeforeAnyRebuild(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/assumed-cables/list?variant=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env, data := decodeEnvelope(t, rec)
	if !env.Success || data["variant_no"] != 2.0 || data["scenario_id"] != nil {
		t.Fatalf("listing = %v", data)
	}
	summary, _ := data["summary"].(map[string]any)
	if summary["rows"] != 0.0 {
		t.Fatalf("summary = %v", summary)
	}
}

func TestListEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", nil)
	rec := f.do(t, http.MethodGet, "/api/assumed-cables/list?variant=1", nil)
	_, data := decodeEnvelope(t, rec)
	rows, _ := data["rows"].([]any)
	summary, _ := data["summary"].(map[string]any)
	if len(rows) != 2 || summary["assumed_total"] != 2.0 || summary["total_unaccounted"] != 3.0 {
		t.Fatalf("listing = %v", data)
	}
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/assumed-cables/rebuild", nil)

	rec := f.do(t, http.MethodGet, "/api/assumed-cables/export?variant=1&delimiter=,x", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="assumed_cables_routes_v1_2026-02-03.csv"` {
		t.Fatalf("content-disposition = %q", cd)
	}
	body, _ := io.ReadAll(rec.Body)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "\xEF\xBB\xBFNo,Variant,ID,") {
		t.Fatalf("export = %q", body)
	}
	if !strings.HasSuffix(lines[1], ",K-1 -> K-2") {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestHealthAndMetricsMiddleware(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	_, data := decodeEnvelope(t, rec)
	if rec.Code != http.StatusOK || data["status"] != "ok" || data["rebuild_in_progress"] != false {
		t.Fatalf("health = %d %v", rec.Code, data)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id not generated")
	}

	f.do(t, http.MethodGet, "/api/assumed-cables/list", nil)
	f.obs.mu.Lock()
	defer f.obs.mu.Unlock()
	want := []string{"GET /healthz 200", "GET /api/assumed-cables/list 200"}
	if strings.Join(f.obs.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("observed = %v, want %v", f.obs.calls, want)
	}
}

func TestUserIDHeader(t *testing.T) {
	cases := map[string]*int64{"": nil, "abc": nil, "0": nil, "-3": nil, " 9 ": ptr(9)}
	for in, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(UserIDHeader, in)
		got := userID(req)
		if (got == nil) != (want == nil) || (got != nil && *got != *want) {
			t.Fatalf("userID(%q) = %v, want %v", in, got, want)
		}
	}
}

func ptr(v int64) *int64 { return &v }

func TestStatusFor(t *testing.T) {
	if StatusFor(nil) != http.StatusOK {
		t.Fatalf("nil error not 200")
	}
	if StatusFor(fmt.Errorf("wrap: %w", scenario.ErrRebuildInProgress)) != http.StatusConflict {
		t.Fatalf("wrapped in-progress not 409")
	}
	if StatusFor(store.ErrSchemaMissing) != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping for store error")
	}
}
