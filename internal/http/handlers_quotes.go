package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"concesionario/internal/apperr"
	"concesionario/internal/financing"
	applog "concesionario/internal/log"
	"concesionario/internal/services"
)

// simulationView feeds the "simulation" partial and the printable quote page.
type simulationView struct {
	Values    financing.SimulatorValues
	Results   financing.SimulatorResults
	Breakdown []financing.BreakdownRow
	Quote     *financing.Quote
	Cached    bool
	Errors    []financing.FieldError
}

func newSimulationView(v financing.SimulatorValues, res financing.SimulatorResults) simulationView {
	return simulationView{
		Values:    v,
		Results:   res,
		Breakdown: res.Breakdown(v.InterestRateMonthly),
	}
}

// quoteResponse is a saved quote with its full payment plan.
type quoteResponse struct {
	financing.Quote
	Schedule []financing.Installment `json:"schedule"`
}

type simulationResponse struct {
	Results financing.SimulatorResults `json:"results"`
	Cached  bool                       `json:"cached"`
}

// handleSimulatorForm computes the plan typed in the simulator and, when the
// save button was used, stores it as a quote.
func (s *Server) handleSimulatorForm(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		NotFoundError("Simulador no disponible").Write(w)
		return
	}

	parser := NewRequestBodyParser(w, r)
	req, err := SimulationFromBody(parser)
	if err != nil {
		BadRequestError("Formato de solicitud inválido").Write(w)
		return
	}

	resp := NewHTMXResponse()
	var view simulationView
	if wantsSave(parser) {
		q, err := s.quotes.CreateQuote(r.Context(), req)
		if err != nil {
			s.writeSimulationError(w, r, err)
			return
		}
		plan, err := q.Plan()
		if err != nil {
			s.writeSimulationError(w, r, err)
			return
		}
		view = newSimulationView(q.Values, plan)
		view.Quote = &q
		resp.TriggerQuoteSaved(q.ID).
			TriggerSuccessNotification(fmt.Sprintf("Cotización #%d guardada", q.ID))
	} else {
		sim, err := s.quotes.Simulate(r.Context(), req)
		if err != nil {
			s.writeSimulationError(w, r, err)
			return
		}
		view = newSimulationView(sim.Values, sim.Results)
		view.Cached = sim.Cached
	}

	body, err := s.render("simulation", view)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Simulation template execution failed", applog.FieldError, err)
		InternalServerError("No se pudo mostrar el plan de pagos").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

// writeSimulationError renders field errors inline with 422; anything else
// becomes a short error box.
func (s *Server) writeSimulationError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *financing.ValidationError
	if errors.As(err, &verr) {
		body, rerr := s.render("simulation", simulationView{Errors: verr.Fields})
		if rerr != nil {
			UnprocessableEntityError(verr.Error()).Write(w)
			return
		}
		NewHTMXResponse().Status(http.StatusUnprocessableEntity).BodyHTML(body).Write(w)
		return
	}

	status := apperr.HTTPStatus(err)
	s.logger.ErrorContext(r.Context(), "Simulation failed",
		applog.FieldError, err, applog.FieldOperation, applog.OpCreate)
	ErrorResponse(status, "No se pudo procesar la simulación").
		TriggerErrorNotification("No se pudo procesar la simulación").
		Write(w)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		http.NotFound(w, r)
		return
	}
	var req services.SimulationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	sim, err := s.quotes.Simulate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, simulationResponse{Results: sim.Results, Cached: sim.Cached})
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		http.NotFound(w, r)
		return
	}
	var req services.SimulationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	q, err := s.quotes.CreateQuote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := q.Plan()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/cotizaciones/"+strconv.FormatInt(q.ID, 10))
	writeData(w, http.StatusCreated, quoteResponse{Quote: q, Schedule: plan.Schedule})
}

// loadQuote resolves {id}. ok is false when a response was already written.
func (s *Server) loadQuote(w http.ResponseWriter, r *http.Request) (financing.Quote, bool) {
	if s.quotes == nil {
		http.NotFound(w, r)
		return financing.Quote{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return financing.Quote{}, false
	}
	q, err := s.quotes.GetQuote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return financing.Quote{}, false
	}
	return q, true
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	plan, err := q.Plan()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quoteResponse{Quote: q, Schedule: plan.Schedule})
}

// handleQuotePage renders a printable payment plan of a saved quote.
func (s *Server) handleQuotePage(w http.ResponseWriter, r *http.Request) {
	q, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	plan, err := q.Plan()
	if err != nil {
		InternalServerError("No se pudo calcular el plan de pagos").Write(w)
		return
	}

	view := newSimulationView(q.Values, plan)
	view.Quote = &q
	body, err := s.render("quote.html", view)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Quote template execution failed",
			applog.FieldError, err, applog.FieldQuoteID, q.ID)
		InternalServerError("No se pudo mostrar la cotización").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}
