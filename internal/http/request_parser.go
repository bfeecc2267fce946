package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"concesionario/internal/services"
)

// maxBodyBytes caps request bodies; simulator forms and report snapshots are small.
const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// SimulationFromBody maps the simulator form onto a request. A term that is
// not a number is left at zero so validation reports it.
func SimulationFromBody(p *RequestBodyParser) (services.SimulationRequest, error) {
	if err := p.Parse(); err != nil {
		return services.SimulationRequest{}, fmt.Errorf("parse simulator body: %w", err)
	}

	term, _ := strconv.Atoi(p.Get("termMonths"))
	return services.SimulationRequest{
		ClientName:            p.Get("clientName"),
		ClientID:              p.Get("clientId"),
		ClientPhone:           p.Get("clientPhone"),
		ClientAddress:         p.Get("clientAddress"),
		VehiclePrice:          p.Get("vehiclePrice"),
		DownPaymentPercentage: p.Get("downPaymentPercentage"),
		TermMonths:            term,
		InterestRateMonthly:   p.Get("interestRateMonthly"),
		AdminFee:              p.Get("adminFee"),
		GPSFee:                p.Get("gpsFee"),
		InsuranceFee:          p.Get("insuranceFee"),
		FeePolicy:             p.Get("feePolicy"),
		Disbursement:          p.Get("disbursement"),
	}, nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

// decodeJSON decodes exactly one JSON value from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// wantsSave reports whether the simulator form was submitted with the save button.
func wantsSave(p *RequestBodyParser) bool {
	switch strings.ToLower(p.Get("action")) {
	case "guardar", "save":
		return true
	}
	return false
}
