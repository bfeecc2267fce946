package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"concesionario/internal/cache"
	"concesionario/internal/core"
	"concesionario/internal/dashboard"
	"concesionario/internal/financing"
	"concesionario/internal/loader"
	"concesionario/internal/services"
	"concesionario/internal/sheets/memory"
)

type testEnv struct {
	srv   *Server
	store *memory.Store
	board *dashboard.Board
}

// newTestEnv wires a server whose dashboards read from the same in-memory
// store the report API writes to.
func newTestEnv(t *testing.T, deps Deps) *testEnv {
	t.Helper()
	store := memory.New()
	sources := func(kind core.ResourceKind) loader.Source[core.Report] {
		return loader.SourceFunc[core.Report](func(ctx context.Context) (core.Report, error) {
			return store.ReadReport(ctx, kind)
		})
	}
	board := dashboard.NewBoard(context.Background(), sources, nil,
		dashboard.WithKinds(core.Cobros, core.Ventas), dashboard.Lazy())

	deps.Board = board
	deps.Reports = store
	deps.Quotes = services.NewQuoteService(store, nil,
		cache.NewLRUCache[financing.SimulatorResults](10, time.Minute), nil)
	srv := NewServer(":0", deps)

	t.Cleanup(func() {
		board.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, store: store, board: board}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

const (
	formType = "application/x-www-form-urlencoded"
	jsonType = "application/json"

	simulatorForm = "vehiclePrice=%2420.000&downPaymentPercentage=20&termMonths=24&interestRateMonthly=1%2C5"
	quoteJSON     = `{"clientName":"Ana Pérez","clientId":"1020304050","vehiclePrice":"$20.000",` +
		`"downPaymentPercentage":"20","termMonths":24,"interestRateMonthly":"1,5"}`
)

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Simulador de financiación", `id="panel-cobros"`, `id="panel-ventas"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}

	rr = env.do(t, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	if rr := env.do(t, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before any load = %d, want 503", rr.Code)
	}
	env.board.RefreshAll(context.Background())
	if rr := env.do(t, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz after load = %d, want 200", rr.Code)
	}

	if rr := env.do(t, http.MethodGet, "/no-such-page", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path = %d, want 404", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodGet, "/static/app.css", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestPanel_FirstRequestStartsLoad(t *testing.T) {
	env := newTestEnv(t, Deps{})
	if err := env.store.WriteReport(context.Background(), core.Ventas, core.Report{
		Resumen: map[string]any{"total_vendido": 125000.5},
		Listado: []core.Row{{"vehiculo": "Sedan"}},
	}); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodGet, "/ui/dashboards/ventas", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("panel status=%d", rr.Code)
	}

	env.board.Close() // waits for the triggered load
	panel, err := env.board.Get(core.Ventas)
	if err != nil {
		t.Fatal(err)
	}
	if panel.State.Status != loader.StatusLoaded {
		t.Fatalf("status after trigger = %s, want loaded", panel.State.Status)
	}

	rr = env.do(t, http.MethodGet, "/ui/dashboards/ventas", "", "")
	body := rr.Body.String()
	for _, want := range []string{"Total vendido", "125000.50", "Sedan"} {
		if !strings.Contains(body, want) {
			t.Errorf("panel body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "hx-trigger") {
		t.Error("loaded panel should stop polling")
	}

	if rr := env.do(t, http.MethodGet, "/ui/dashboards/desconocido", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown kind = %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/ui/dashboards/pagos", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("kind not on board = %d, want 404", rr.Code)
	}
}

func TestPanelRefresh_ShowsMessageAndRetry(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodPost, "/ui/dashboards/cobros/refresh", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "No se pudo cargar el reporte de cobros") {
		t.Errorf("missing user message:\n%s", body)
	}
	if !strings.Contains(body, "Reintentar") {
		t.Error("missing retry button")
	}

	var trigger map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &trigger); err != nil {
		t.Fatalf("HX-Trigger: %v", err)
	}
	if got := string(trigger["dashboard:refreshed"]); got != `{"kind":"cobros","status":"error"}` {
		t.Errorf("dashboard:refreshed = %s", got)
	}
	if _, ok := trigger["show-notification"]; !ok {
		t.Error("failed refresh should raise a notification")
	}
}

func TestReportAPI(t *testing.T) {
	env := newTestEnv(t, Deps{})

	if rr := env.do(t, http.MethodGet, "/api/ventas", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing report = %d, want 404", rr.Code)
	}

	put := `{"data":{"resumen":{"total":3},"listado":[{"id":1,"cliente":"Ana"}]}}`
	if rr := env.do(t, http.MethodPut, "/api/ventas", jsonType, put); rr.Code != http.StatusNoContent {
		t.Fatalf("put = %d: %s", rr.Code, rr.Body.String())
	}

	rr := env.do(t, http.MethodGet, "/api/ventas", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get = %d", rr.Code)
	}
	var got, want map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(put), &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown kind get", http.MethodGet, "/api/desconocido", "", http.StatusNotFound},
		{"unknown kind put", http.MethodPut, "/api/desconocido", put, http.StatusNotFound},
		{"malformed body", http.MethodPut, "/api/ventas", `{"data":`, http.StatusBadRequest},
		{"missing envelope", http.MethodPut, "/api/ventas", `{"resumen":{}}`, http.StatusBadRequest},
		{"trailing data", http.MethodPut, "/api/ventas", put + `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, tt.method, tt.path, jsonType, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestSimulatorForm(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodPost, "/ui/simulador", formType, simulatorForm)
	if rr.Code != http.StatusOK {
		t.Fatalf("simulate status=%d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$798,79") {
		t.Errorf("missing monthly payment:\n%s", body)
	}
	if rows := strings.Count(body, "<tr><td>"); rows != 24 {
		t.Errorf("schedule rows = %d, want 24", rows)
	}

	rr = env.do(t, http.MethodPost, "/ui/simulador", formType, "termMonths=24")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `data-field="vehiclePrice"`) {
		t.Errorf("missing field error:\n%s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/ui/simulador", formType, simulatorForm+"&action=guardar")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("save without client = %d, want 422", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/ui/simulador", formType,
		simulatorForm+"&clientName=Ana&clientId=1020304050&action=guardar")
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Cotización #1 guardada") {
		t.Errorf("missing saved notice:\n%s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"quote:saved":{"id":1}`) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
}

type quoteEnvelope struct {
	Data struct {
		ID         int64  `json:"id"`
		SyncStatus string `json:"syncStatus"`
		Summary    struct {
			MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
		} `json:"summary"`
		Schedule []financing.Installment `json:"schedule"`
	} `json:"data"`
}

func TestQuoteAPI(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodPost, "/api/cotizaciones", jsonType, quoteJSON)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/cotizaciones/1" {
		t.Errorf("Location = %q", loc)
	}
	var created quoteEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Data.ID != 1 || created.Data.SyncStatus != "pending" || len(created.Data.Schedule) != 24 {
		t.Errorf("created = %+v", created.Data)
	}
	if !created.Data.Summary.MonthlyPayment.Equal(decimal.RequireFromString("798.79")) {
		t.Errorf("monthly payment = %s", created.Data.Summary.MonthlyPayment)
	}

	rr = env.do(t, http.MethodGet, "/api/cotizaciones/1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get = %d", rr.Code)
	}
	var fetched quoteEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(created, fetched); diff != "" {
		t.Errorf("get differs from create (-created +fetched):\n%s", diff)
	}

	rr = env.do(t, http.MethodGet, "/ui/cotizaciones/1", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Ana Pérez") {
		t.Fatalf("quote page = %d:\n%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/cotizaciones/99", "", "")
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"kind":"not_found"`) {
		t.Errorf("missing quote = %d %s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodGet, "/api/cotizaciones/abc", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("bad id = %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/cotizaciones", jsonType, `{"termMonths":`); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rr.Code)
	}
}

func TestQuoteAPI_ValidationEnvelope(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodPost, "/api/cotizaciones", jsonType,
		`{"vehiclePrice":"20000","downPaymentPercentage":"20","termMonths":24,"interestRateMonthly":"1.5"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	var got struct {
		Error struct {
			Kind   string                 `json:"kind"`
			Fields []financing.FieldError `json:"fields"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Error.Kind != "validation" {
		t.Errorf("kind = %q", got.Error.Kind)
	}
	var fields []string
	for _, f := range got.Error.Fields {
		fields = append(fields, f.Field)
	}
	if diff := cmp.Diff([]string{"clientName", "clientId"}, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulateAPI_Cached(t *testing.T) {
	env := newTestEnv(t, Deps{})

	for i, wantCached := range []bool{false, true} {
		rr := env.do(t, http.MethodPost, "/api/simulador", jsonType, quoteJSON)
		if rr.Code != http.StatusOK {
			t.Fatalf("call %d = %d: %s", i, rr.Code, rr.Body.String())
		}
		var got struct {
			Data struct {
				Cached bool `json:"cached"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Data.Cached != wantCached {
			t.Errorf("call %d cached = %v, want %v", i, got.Data.Cached, wantCached)
		}
	}
}

func TestMiddleware_HeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rr := env.do(t, http.MethodGet, "/healthz", "", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Content-Security-Policy"); !strings.Contains(got, "https://unpkg.com") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	if got := rr.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req_") {
		t.Errorf("generated X-Request-ID = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "lb-42")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "lb-42" {
		t.Errorf("echoed X-Request-ID = %q", got)
	}
}

func TestMiddleware_RateLimitsWritesOnly(t *testing.T) {
	env := newTestEnv(t, Deps{RequestsPerMinute: 2})

	put := `{"data":{"resumen":{},"listado":[]}}`
	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, env.do(t, http.MethodPut, "/api/cobros", jsonType, put).Code)
	}
	if diff := cmp.Diff([]int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes); diff != "" {
		t.Errorf("PUT codes mismatch (-want +got):\n%s", diff)
	}

	for range 3 {
		if rr := env.do(t, http.MethodGet, "/api/cobros", "", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET after limit = %d, want 200", rr.Code)
		}
	}
}
