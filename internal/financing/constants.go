package financing

const (
	MinTermMonths = 1
	MaxTermMonths = 600 // 50 años

	MaxDownPaymentPercentage = 100
	MaxInterestRateMonthly   = 100 // % mensual

	// divisionPlaces is the precision kept for intermediate divisions.
	divisionPlaces = 24
)
