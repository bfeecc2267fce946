package google

import (
	"fmt"
	"strings"

	"concesionario/internal/core"
	"concesionario/internal/financing"
)

// quoteHeaders documents the column layout written by quoteRow.
var quoteHeaders = []string{
	"ID", "Fecha", "Cliente", "Documento", "Teléfono", "Vehículo",
	"Precio", "Cuota inicial %", "Plazo", "Tasa mensual %",
	"Cuota mensual", "Deuda total", "Cargos", "Primer pago",
}

func quoteRow(q financing.Quote) []any {
	v := q.Values
	vehicle := ""
	if v.SelectedVehicle != nil {
		vehicle = v.SelectedVehicle.Label()
	}
	firstPayment := ""
	if !q.Disbursement.IsZero() {
		firstPayment = q.Disbursement.AddDate(0, 1, 0).Format("2006-01-02")
	}
	return []any{
		q.ID,
		q.CreatedAt.Format("2006-01-02"),
		v.ClientName,
		v.ClientID,
		v.ClientPhone,
		vehicle,
		core.RoundCurrency(v.VehiclePrice).StringFixed(2),
		v.DownPaymentPercentage.String(),
		v.TermMonths,
		v.InterestRateMonthly.String(),
		q.Summary.MonthlyPayment.StringFixed(2),
		q.Summary.TotalDebt.StringFixed(2),
		string(q.FeePolicy),
		firstPayment,
	}
}

// parseReport converts a values matrix into a report. Blank rows are skipped
// and numeric cells are summed per column into the summary.
func parseReport(values [][]any) core.Report {
	report := core.Report{Resumen: map[string]any{}, Listado: []core.Row{}}
	if len(values) == 0 {
		report.Resumen["registros"] = 0
		return report
	}

	headers := toStrings(values[0])
	totals := map[string]float64{}
	for _, raw := range values[1:] {
		cells := toStrings(raw)
		if isBlank(cells) {
			continue
		}
		row := core.Row{}
		for i, h := range headers {
			if h == "" {
				continue
			}
			cell := safeGet(cells, i)
			row[h] = cell
			if amount, err := core.ParseCurrency(cell); err == nil {
				f, _ := amount.Float64()
				totals[h] += f
			}
		}
		report.Listado = append(report.Listado, row)
	}

	report.Resumen["registros"] = len(report.Listado)
	for h, total := range totals {
		report.Resumen["total_"+strings.ToLower(strings.ReplaceAll(h, " ", "_"))] = total
	}
	return report
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
