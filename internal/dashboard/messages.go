package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"concesionario/internal/core"
)

// fallbackMessage is shown for kinds without a configured message.
const fallbackMessage = "No se pudo cargar la información"

// Messages maps each resource kind to the message users see when it fails to
// load.
type Messages map[core.ResourceKind]string

// DefaultMessages returns the built-in messages.
func DefaultMessages() Messages {
	return Messages{
		core.Cobros:       "No se pudo cargar el reporte de cobros",
		core.Empleados:    "No se pudo cargar la lista de empleados",
		core.Finanzas:     "No se pudo cargar el reporte de finanzas",
		core.Pagos:        "No se pudo cargar el reporte de pagos",
		core.Treasury:     "No se pudo cargar el reporte de tesorería",
		core.Ventas:       "No se pudo cargar el reporte de ventas",
		core.Contratos:    "No se pudieron cargar los contratos",
		core.Instaladores: "No se pudo cargar la lista de instaladores",
		core.Inventory:    "No se pudo cargar el inventario",
	}
}

// For returns the message for kind.
func (m Messages) For(kind core.ResourceKind) string {
	if msg := strings.TrimSpace(m[kind]); msg != "" {
		return msg
	}
	return fallbackMessage
}

// LoadMessages reads a JSON object of kind -> message from path and merges it
// over the defaults. An empty path returns the defaults.
func LoadMessages(path string) (Messages, error) {
	msgs := DefaultMessages()
	if strings.TrimSpace(path) == "" {
		return msgs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboard messages: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse dashboard messages %s: %w", path, err)
	}
	for k, v := range overrides {
		kind, err := core.ParseResourceKind(k)
		if err != nil {
			return nil, fmt.Errorf("dashboard messages %s: %q: %w", path, k, err)
		}
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("dashboard messages %s: empty message for %q", path, k)
		}
		msgs[kind] = strings.TrimSpace(v)
	}
	return msgs, nil
}
