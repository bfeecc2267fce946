package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	"concesionario/internal/loader"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetEnvelope_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cobros" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"resumen":{"total":1500},"listado":[{"cliente":"Ana"}]}}`))
	})

	got, err := GetEnvelope[core.Report](context.Background(), c, "/api/cobros")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.Report{
		Resumen: map[string]any{"total": 1500.0},
		Listado: []core.Row{{"cliente": "Ana"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestGetEnvelope_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, apperr.ErrResponse},
		{"not found", http.StatusNotFound, ``, apperr.ErrResponse},
		{"malformed json", http.StatusOK, `{"data":`, apperr.ErrParse},
		{"missing data", http.StatusOK, `{"items":[]}`, apperr.ErrParse},
		{"null data", http.StatusOK, `{"data":null}`, apperr.ErrParse},
		{"wrong shape", http.StatusOK, `{"data":[1,2,3]}`, apperr.ErrParse},
		{"html body", http.StatusOK, `<html></html>`, apperr.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := GetEnvelope[core.Report](context.Background(), c, "/api/ventas")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvelope_StatusErrorCarriesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := GetEnvelope[core.Report](context.Background(), c, "/api/pagos")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Path != "/api/pagos" {
		t.Errorf("unexpected status error %+v", se)
	}
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Error("IsStatus should match 503")
	}
	if apperr.Kind(err) != "response" {
		t.Errorf("kind = %q", apperr.Kind(err))
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short body kept", "  no disponible \n", "no disponible"},
		{"ascii cut at limit", strings.Repeat("a", 250), strings.Repeat("a", 200)},
		{"multibyte rune straddling limit", strings.Repeat("a", 199) + "ñandú", strings.Repeat("a", 199)},
		{"multibyte rune ending at limit", strings.Repeat("a", 198) + "ñx", strings.Repeat("a", 198) + "ñ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet([]byte(tt.body))
			if got != tt.want {
				t.Errorf("snippet() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("snippet() returned invalid UTF-8: %q", got)
			}
		})
	}
}

func TestGetEnvelope_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin := srv.URL
	srv.Close()

	c, err := NewClient(origin, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = GetEnvelope[core.Report](context.Background(), c, "/api/finanzas")
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestGetEnvelope_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := GetEnvelope[core.Report](ctx, c, "/api/treasury")
	if !errors.Is(err, apperr.ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want transport deadline", err)
	}
	if apperr.Kind(err) != "timeout" {
		t.Errorf("kind = %q, want timeout", apperr.Kind(err))
	}
}

func TestNewClient_RejectsBadOrigin(t *testing.T) {
	for _, origin := range []string{"", "localhost:8081", "ftp://example.com", "http://"} {
		if _, err := NewClient(origin, time.Second); err == nil {
			t.Errorf("NewClient(%q) should fail", origin)
		}
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("http://localhost:8081/", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Origin() != "http://localhost:8081" {
		t.Errorf("origin = %q", c.Origin())
	}
}

func TestResource_FeedsLoader(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"data":{"resumen":{"vendidos":3},"listado":[]}}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	l := loader.New[core.Report](context.Background(), Resource[core.Report](c, "/api/ventas"), "No se pudo cargar el reporte de ventas")
	l.Wait()
	st := l.State()
	if st.Status != loader.StatusLoaded || st.Data.Resumen["vendidos"] != 3.0 {
		t.Fatalf("unexpected state after first load: %+v", st)
	}

	st = l.Refresh(context.Background())
	if st.Status != loader.StatusError || st.Err != "No se pudo cargar el reporte de ventas" {
		t.Fatalf("unexpected state after failed refresh: %+v", st)
	}
	if st.Data.Resumen["vendidos"] != 3.0 {
		t.Error("previous report should be kept")
	}
	if !errors.Is(st.Cause, apperr.ErrResponse) {
		t.Errorf("cause = %v", st.Cause)
	}
}
