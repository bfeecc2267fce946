package http

import (
	"bytes"
	"net/http"
	"time"

	"concesionario/internal/core"
	"concesionario/internal/dashboard"
	"concesionario/internal/loader"
	applog "concesionario/internal/log"
)

// panelView is what the "panel" template renders for one resource.
type panelView struct {
	Kind    string
	Status  string
	Loading bool
	HasData bool
	Error   string
	Report  core.Report
	Columns []string
	Keys    []string
}

// Pending is true while there is nothing to show yet, so the partial keeps polling.
func (p panelView) Pending() bool {
	return !p.HasData && p.Error == "" && (p.Loading || p.Status == string(loader.StatusNotLoaded))
}

func newPanelView(p dashboard.Panel) panelView {
	v := panelView{
		Kind:    p.Kind.String(),
		Status:  string(p.State.Status),
		Loading: p.State.Loading(),
		HasData: p.State.HasData,
		Error:   p.State.Err,
	}
	if p.State.HasData {
		v.Report = p.State.Data
		v.Columns = p.State.Data.Columns()
		v.Keys = p.State.Data.SummaryKeys()
	}
	return v
}

type indexView struct {
	Panels []panelView
	Today  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := indexView{Today: time.Now().Format("2006-01-02")}
	if s.board != nil {
		for _, p := range s.board.Snapshot() {
			data.Panels = append(data.Panels, newPanelView(p))
		}
	}

	body, err := s.render("index.html", data)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// panelKind resolves {kind} against the board, writing a 404 when it cannot.
func (s *Server) panelKind(w http.ResponseWriter, r *http.Request) (core.ResourceKind, bool) {
	if s.board == nil {
		NotFoundError("Tablero no disponible").Write(w)
		return "", false
	}
	kind, err := core.ParseResourceKind(r.PathValue("kind"))
	if err != nil {
		NotFoundError("Reporte desconocido").Write(w)
		return "", false
	}
	return kind, true
}

// handlePanel renders the current state of one panel, starting the first
// load when nothing was requested yet.
func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.panelKind(w, r)
	if !ok {
		return
	}

	panel, err := s.board.Get(kind)
	if err == nil && panel.State.Status == loader.StatusNotLoaded {
		panel, err = s.board.Trigger(kind)
	}
	if err != nil {
		NotFoundError("Reporte desconocido").Write(w)
		return
	}
	s.writePanel(w, r, NewHTMXResponse(), panel)
}

// handlePanelRefresh reloads one panel and waits for the outcome.
func (s *Server) handlePanelRefresh(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.panelKind(w, r)
	if !ok {
		return
	}

	panel, err := s.board.Refresh(r.Context(), kind)
	if err != nil {
		NotFoundError("Reporte desconocido").Write(w)
		return
	}
	resp := NewHTMXResponse().TriggerDashboardRefreshed(kind.String(), string(panel.State.Status))
	if panel.State.Status == loader.StatusError {
		if panel.State.HasData {
			resp.TriggerWarningNotification(panel.State.Err + ". Se muestran los últimos datos.")
		} else {
			resp.TriggerErrorNotification(panel.State.Err)
		}
	}
	s.writePanel(w, r, resp, panel)
}

func (s *Server) writePanel(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, panel dashboard.Panel) {
	body, err := s.render("panel", newPanelView(panel))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Panel template execution failed",
			applog.FieldError, err, applog.FieldResource, panel.Kind.String())
		InternalServerError("No se pudo mostrar el reporte").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

// render executes a template into memory so a failure never leaves a half
// written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesMissing
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
