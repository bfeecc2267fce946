package core

import "sort"

// Report is the payload shared by every dashboard endpoint: a summary block
// plus a detailed listing.
type Report struct {
	Resumen map[string]any `json:"resumen"`
	Listado []Row          `json:"listado"`
}

// SummaryKeys returns the summary keys sorted for stable rendering.
func (r Report) SummaryKeys() []string {
	keys := make([]string, 0, len(r.Resumen))
	for k := range r.Resumen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Columns returns the union of listing columns, sorted.
func (r Report) Columns() []string {
	seen := map[string]struct{}{}
	for _, row := range r.Listado {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
