package http

import (
	"errors"
	"net/http"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	applog "concesionario/internal/log"
)

// reportPayload is the body accepted by PUT /api/{kind}; it mirrors the
// envelope returned by GET.
type reportPayload struct {
	Data *core.Report `json:"data"`
}

// handleGetReport serves the stored snapshot of a dashboard resource inside
// the data envelope. Unknown or missing reports are a bare 404.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.NotFound(w, r)
		return
	}
	kind, err := core.ParseResourceKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	report, err := s.reports.ReadReport(r.Context(), kind)
	if errors.Is(err, apperr.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

// handlePutReport replaces a snapshot and asks the matching panel to reload.
func (s *Server) handlePutReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.NotFound(w, r)
		return
	}
	kind, err := core.ParseResourceKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var payload reportPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeBadRequest(w, err)
		return
	}
	if payload.Data == nil {
		writeBadRequest(w, errMissingData)
		return
	}

	if err := s.reports.WriteReport(r.Context(), kind, *payload.Data); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Report snapshot replaced",
		applog.FieldResource, kind.String(), "rows", len(payload.Data.Listado))

	if s.board != nil {
		if _, err := s.board.Trigger(kind); err != nil {
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Report kind not on board",
				applog.FieldResource, kind.String())
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
