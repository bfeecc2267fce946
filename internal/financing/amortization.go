package financing

import (
	"time"

	"github.com/shopspring/decimal"

	"concesionario/internal/core"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Option customizes a computation.
type Option func(*options)

type options struct {
	policy FeePolicy
}

// WithFeePolicy selects how fees are charged. Defaults to FeesFinanced.
func WithFeePolicy(p FeePolicy) Option {
	return func(o *options) {
		if p.IsValid() {
			o.policy = p
		}
	}
}

// Compute builds a French (annuity) amortization plan. The first installment
// falls one month after disbursement. Invalid input returns a
// *ValidationError and no partial result.
func Compute(v SimulatorValues, disbursement time.Time, opts ...Option) (SimulatorResults, error) {
	o := options{policy: FeesFinanced}
	for _, opt := range opts {
		opt(&o)
	}

	if err := v.Validate(); err != nil {
		return SimulatorResults{}, err
	}

	downPayment := v.VehiclePrice.Mul(v.DownPaymentPercentage).Div(hundred)
	balance := v.VehiclePrice.Sub(downPayment)

	capital := balance
	upfront := decimal.Zero
	if o.policy == FeesFinanced {
		capital = capital.Add(v.Fees())
	} else {
		upfront = v.Fees()
	}

	n := decimal.NewFromInt(int64(v.TermMonths))
	rate := v.InterestRateMonthly.DivRound(hundred, divisionPlaces)
	payment := annuityPayment(capital, rate, v.TermMonths)

	totalDebt := payment.Mul(n)
	res := SimulatorResults{
		DownPaymentAmount: downPayment,
		VehicleBalance:    balance,
		TotalCapital:      capital,
		TotalInterest:     totalDebt.Sub(capital),
		TotalDebt:         totalDebt,
		MonthlyPayment:    payment,
		UpfrontCharges:    upfront,
		FeePolicy:         o.policy,
		Schedule:          make([]Installment, v.TermMonths),
	}
	for i := range res.Schedule {
		res.Schedule[i] = Installment{
			CuotaNumber: i + 1,
			Date:        addMonths(disbursement, i+1),
			Amount:      payment,
		}
	}
	return res, nil
}

// annuityPayment returns capital*r / (1 - (1+r)^-n), or capital/n when r is zero.
func annuityPayment(capital, rate decimal.Decimal, months int) decimal.Decimal {
	n := decimal.NewFromInt(int64(months))
	if rate.IsZero() {
		return capital.DivRound(n, divisionPlaces)
	}
	growth := one.Add(rate).Pow(n)
	discount := one.Sub(one.DivRound(growth, divisionPlaces))
	return capital.Mul(rate).DivRound(discount, divisionPlaces)
}

// addMonths moves t forward by months, clamping to the last day of the target
// month so that a 31st disbursement never skips a month.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// Rounded returns a copy with every amount rounded half-up to two decimals,
// ready for display or export.
func (r SimulatorResults) Rounded() SimulatorResults {
	out := r
	out.DownPaymentAmount = core.RoundCurrency(r.DownPaymentAmount)
	out.VehicleBalance = core.RoundCurrency(r.VehicleBalance)
	out.TotalCapital = core.RoundCurrency(r.TotalCapital)
	out.TotalInterest = core.RoundCurrency(r.TotalInterest)
	out.TotalDebt = core.RoundCurrency(r.TotalDebt)
	out.MonthlyPayment = core.RoundCurrency(r.MonthlyPayment)
	out.UpfrontCharges = core.RoundCurrency(r.UpfrontCharges)
	out.Schedule = make([]Installment, len(r.Schedule))
	for i, inst := range r.Schedule {
		inst.Amount = core.RoundCurrency(inst.Amount)
		out.Schedule[i] = inst
	}
	return out
}

// BreakdownRow splits one installment into interest and principal.
type BreakdownRow struct {
	CuotaNumber int             `json:"cuotaNumber"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Interest    decimal.Decimal `json:"interest"`
	Principal   decimal.Decimal `json:"principal"`
	Balance     decimal.Decimal `json:"balance"`
}

// Breakdown derives the declining-balance view of the schedule for the given
// monthly rate (percent). The last row absorbs the residual so the balance
// closes at zero.
func (r SimulatorResults) Breakdown(interestRateMonthly decimal.Decimal) []BreakdownRow {
	rate := interestRateMonthly.DivRound(hundred, divisionPlaces)
	balance := r.TotalCapital
	rows := make([]BreakdownRow, len(r.Schedule))
	for i, inst := range r.Schedule {
		interest := balance.Mul(rate)
		principal := inst.Amount.Sub(interest)
		if i == len(r.Schedule)-1 {
			principal = balance
		}
		balance = balance.Sub(principal)
		rows[i] = BreakdownRow{
			CuotaNumber: inst.CuotaNumber,
			Date:        inst.Date,
			Amount:      inst.Amount,
			Interest:    interest,
			Principal:   principal,
			Balance:     balance,
		}
	}
	return rows
}
