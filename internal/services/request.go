package services

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"concesionario/internal/core"
	"concesionario/internal/financing"
)

const dateLayout = "2006-01-02"

// clientFields are only required when the simulation is saved as a quote.
var clientFields = []string{"ClientName", "ClientID", "ClientPhone", "ClientAddress"}

// SimulationRequest is the simulator form as typed by the user. Money fields
// are strings so that "$20.000.000" or "1.234,56" can be entered verbatim.
type SimulationRequest struct {
	ClientName    string `json:"clientName" validate:"required,max=120"`
	ClientID      string `json:"clientId" validate:"required,max=40"`
	ClientPhone   string `json:"clientPhone" validate:"omitempty,max=40"`
	ClientAddress string `json:"clientAddress" validate:"omitempty,max=200"`

	VehiclePrice          string `json:"vehiclePrice" validate:"required"`
	DownPaymentPercentage string `json:"downPaymentPercentage" validate:"required"`
	TermMonths            int    `json:"termMonths"`
	InterestRateMonthly   string `json:"interestRateMonthly" validate:"required"`

	AdminFee     string `json:"adminFee"`
	GPSFee       string `json:"gpsFee"`
	InsuranceFee string `json:"insuranceFee"`

	FeePolicy    string `json:"feePolicy" validate:"omitempty,oneof=financed upfront"`
	Disbursement string `json:"disbursement" validate:"omitempty,datetime=2006-01-02"`

	SelectedVehicle *core.Vehicle `json:"selectedVehicle,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs the tag rules. Client identity is skipped unless withClient.
func (r SimulationRequest) check(v *validator.Validate, withClient bool) error {
	var err error
	if withClient {
		err = v.Struct(r)
	} else {
		err = v.StructExcept(r, clientFields...)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &financing.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, financing.FieldError{
			Field:   fe.Field(),
			Message: tagMessage(fe.Tag()),
		})
	}
	return out
}

func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "campo obligatorio"
	case "max":
		return "texto demasiado largo"
	case "oneof":
		return "valor no permitido"
	case "datetime":
		return "fecha inválida, use AAAA-MM-DD"
	default:
		return "valor inválido"
	}
}

// values parses the money and percentage fields. Empty fees count as zero.
func (r SimulationRequest) values() (financing.SimulatorValues, error) {
	verr := &financing.ValidationError{}
	percent := func(field, raw string) decimal.Decimal {
		d, err := core.ParsePercent(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, financing.FieldError{Field: field, Message: "porcentaje inválido"})
		}
		return d
	}
	amount := func(field, raw string, optional bool) decimal.Decimal {
		if optional && strings.TrimSpace(raw) == "" {
			return decimal.Zero
		}
		d, err := core.ParseCurrency(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, financing.FieldError{Field: field, Message: "monto inválido"})
		}
		return d
	}

	v := financing.SimulatorValues{
		ClientName:            strings.TrimSpace(r.ClientName),
		ClientID:              strings.TrimSpace(r.ClientID),
		ClientPhone:           strings.TrimSpace(r.ClientPhone),
		ClientAddress:         strings.TrimSpace(r.ClientAddress),
		VehiclePrice:          amount("vehiclePrice", r.VehiclePrice, false),
		DownPaymentPercentage: percent("downPaymentPercentage", r.DownPaymentPercentage),
		TermMonths:            r.TermMonths,
		InterestRateMonthly:   percent("interestRateMonthly", r.InterestRateMonthly),
		AdminFee:              amount("adminFee", r.AdminFee, true),
		GPSFee:                amount("gpsFee", r.GPSFee, true),
		InsuranceFee:          amount("insuranceFee", r.InsuranceFee, true),
		SelectedVehicle:       r.SelectedVehicle,
	}
	if len(verr.Fields) > 0 {
		return financing.SimulatorValues{}, verr
	}
	return v, nil
}

func (r SimulationRequest) policy() financing.FeePolicy {
	p := financing.FeePolicy(r.FeePolicy)
	if !p.IsValid() {
		return financing.FeesFinanced
	}
	return p
}

// disbursement returns the requested date or today's date, at midnight UTC.
func (r SimulationRequest) disbursement(now time.Time) time.Time {
	if r.Disbursement != "" {
		if t, err := time.Parse(dateLayout, r.Disbursement); err == nil {
			return t
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
