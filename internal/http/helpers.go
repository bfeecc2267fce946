package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	"concesionario/internal/financing"
	applog "concesionario/internal/log"
)

var (
	errTemplatesMissing = errors.New("templates not loaded")
	errMissingData      = errors.New(`body must be {"data": {...}}`)
)

// sanitizeInput removes control characters except tab and newlines, then trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// envelope is the body shape of every JSON success response.
type envelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Fields  []financing.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

// writeError maps err onto the error envelope. Internal failures are logged
// and reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Kind: apperr.Kind(err), Message: err.Error()}

	var verr *financing.ValidationError
	if errors.As(err, &verr) {
		body.Message = "Revise los datos del simulador"
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err, applog.FieldPath, r.URL.Path)
		body.Message = http.StatusText(status)
	}

	writeJSON(w, status, map[string]errorBody{"error": body})
}

// writeBadRequest reports a body that could not be decoded at all.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{
		"error": {Kind: "bad_request", Message: err.Error()},
	})
}

// templateFuncs are available to every page and partial.
var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return core.FormatCurrency(core.RoundCurrency(d))
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"cell": formatCell,
	"label": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// formatCell renders a decoded JSON value from a dashboard report.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		d := decimal.NewFromFloat(val)
		if d.IsInteger() {
			return d.String()
		}
		return d.StringFixed(core.CurrencyPlaces)
	case bool:
		if val {
			return "Sí"
		}
		return "No"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
