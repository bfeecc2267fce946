// Package financing computes fixed-payment (annuity) amortization plans for
// the vehicle financing simulator.
package financing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
)

// FeePolicy decides whether admin, GPS and insurance fees are added to the
// financed capital or charged once at disbursement.
type FeePolicy string

const (
	FeesFinanced FeePolicy = "financed"
	FeesUpfront  FeePolicy = "upfront"
)

// IsValid returns true if the policy is known
func (p FeePolicy) IsValid() bool {
	return p == FeesFinanced || p == FeesUpfront
}

type (
	// SimulatorValues holds everything the user typed in the simulator form.
	SimulatorValues struct {
		ClientName    string `json:"clientName"`
		ClientID      string `json:"clientId"`
		ClientPhone   string `json:"clientPhone"`
		ClientAddress string `json:"clientAddress"`

		VehiclePrice          decimal.Decimal `json:"vehiclePrice"`
		DownPaymentPercentage decimal.Decimal `json:"downPaymentPercentage"`
		TermMonths            int             `json:"termMonths"`
		InterestRateMonthly   decimal.Decimal `json:"interestRateMonthly"`

		AdminFee     decimal.Decimal `json:"adminFee"`
		GPSFee       decimal.Decimal `json:"gpsFee"`
		InsuranceFee decimal.Decimal `json:"insuranceFee"`

		SelectedVehicle *core.Vehicle `json:"selectedVehicle,omitempty"`
	}

	// Installment is one row of the payment plan.
	Installment struct {
		CuotaNumber int             `json:"cuotaNumber"`
		Date        time.Time       `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
	}

	// SimulatorResults is the outcome of Compute. Values are unrounded; call
	// Rounded before presenting them.
	SimulatorResults struct {
		DownPaymentAmount decimal.Decimal `json:"downPaymentAmount"`
		VehicleBalance    decimal.Decimal `json:"vehicleBalance"`
		TotalCapital      decimal.Decimal `json:"totalCapital"`
		TotalInterest     decimal.Decimal `json:"totalInterest"`
		TotalDebt         decimal.Decimal `json:"totalDebt"`
		MonthlyPayment    decimal.Decimal `json:"monthlyPayment"`
		UpfrontCharges    decimal.Decimal `json:"upfrontCharges"`
		FeePolicy         FeePolicy       `json:"feePolicy"`
		Schedule          []Installment   `json:"schedule"`
	}

	// FieldError describes one invalid input field.
	FieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	// ValidationError is returned when simulator input is out of domain.
	ValidationError struct {
		Fields []FieldError `json:"fields"`
	}
)

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "datos de simulación inválidos: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperr.ErrValidation
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Validate checks the numeric domain of the simulator input. Client identity
// fields are validated by the caller.
func (v SimulatorValues) Validate() error {
	verr := &ValidationError{}

	if !v.VehiclePrice.IsPositive() {
		verr.add("vehiclePrice", "precio inválido")
	}
	if v.DownPaymentPercentage.IsNegative() || v.DownPaymentPercentage.GreaterThan(decimal.NewFromInt(MaxDownPaymentPercentage)) {
		verr.add("downPaymentPercentage", "la cuota inicial debe estar entre 0 y 100%")
	}
	if v.TermMonths < MinTermMonths {
		verr.add("termMonths", "plazo inválido")
	} else if v.TermMonths > MaxTermMonths {
		verr.add("termMonths", fmt.Sprintf("plazo excede el máximo permitido de %d meses", MaxTermMonths))
	}
	if v.InterestRateMonthly.IsNegative() {
		verr.add("interestRateMonthly", "tasa inválida")
	} else if v.InterestRateMonthly.GreaterThan(decimal.NewFromInt(MaxInterestRateMonthly)) {
		verr.add("interestRateMonthly", fmt.Sprintf("tasa excede el máximo permitido de %d%%", MaxInterestRateMonthly))
	}
	for _, fee := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"adminFee", v.AdminFee},
		{"gpsFee", v.GPSFee},
		{"insuranceFee", v.InsuranceFee},
	} {
		if fee.value.IsNegative() {
			verr.add(fee.name, "el cargo no puede ser negativo")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Complete reports whether a vehicle has been chosen for the simulation.
func (v SimulatorValues) Complete() bool {
	return v.SelectedVehicle != nil
}

// Fees returns the sum of admin, GPS and insurance fees.
func (v SimulatorValues) Fees() decimal.Decimal {
	return v.AdminFee.Add(v.GPSFee).Add(v.InsuranceFee)
}

// CacheKey identifies the numeric inputs of a computation. Client identity is
// excluded so equal plans for different clients share a key.
func (v SimulatorValues) CacheKey(policy FeePolicy, disbursement time.Time) string {
	raw := strings.Join([]string{
		v.VehiclePrice.String(),
		v.DownPaymentPercentage.String(),
		fmt.Sprint(v.TermMonths),
		v.InterestRateMonthly.String(),
		v.AdminFee.String(),
		v.GPSFee.String(),
		v.InsuranceFee.String(),
		string(policy),
		disbursement.Format("2006-01-02"),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return "sim:" + hex.EncodeToString(sum[:16])
}
