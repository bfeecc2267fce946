package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ResourceKind names a dashboard resource served by the remote API.
type ResourceKind string

const (
	Cobros       ResourceKind = "cobros"
	Empleados    ResourceKind = "empleados"
	Finanzas     ResourceKind = "finanzas"
	Pagos        ResourceKind = "pagos"
	Treasury     ResourceKind = "treasury"
	Ventas       ResourceKind = "ventas"
	Contratos    ResourceKind = "contratos"
	Instaladores ResourceKind = "instaladores"
	Inventory    ResourceKind = "inventory"
)

var ErrUnknownResource = errors.New("unknown resource kind")

// ResourceKinds returns every known kind in display order.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{Cobros, Empleados, Finanzas, Pagos, Treasury, Ventas, Contratos, Instaladores, Inventory}
}

// String implements fmt.Stringer
func (k ResourceKind) String() string {
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k ResourceKind) IsValid() bool {
	for _, known := range ResourceKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseResourceKind normalizes and validates a kind coming from a URL or config.
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrUnknownResource
	}
	return k, nil
}

type (
	// Vehicle is an inventory record that can be selected in the simulator.
	Vehicle struct {
		ID     string          `json:"id"`
		Marca  string          `json:"marca"`
		Modelo string          `json:"modelo"`
		Anio   int             `json:"anio"`
		Precio decimal.Decimal `json:"precio"`
	}

	// Row is one record of a dashboard listing. Columns vary per resource.
	Row map[string]any
)

// Label returns a short human description of the vehicle.
func (v Vehicle) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Marca, v.Modelo} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if v.Anio > 0 {
		parts = append(parts, strconv.Itoa(v.Anio))
	}
	return strings.Join(parts, " ")
}
