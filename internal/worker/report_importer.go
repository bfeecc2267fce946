package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	applog "concesionario/internal/log"
	ports "concesionario/internal/sheets"
)

// ReportImporter copies dashboard reports from the spreadsheet into the local
// snapshot store served by GET /api/{kind}.
type ReportImporter struct {
	source ports.ReportReader
	target ports.ReportWriter
	kinds  []core.ResourceKind
	logger *slog.Logger
}

func NewReportImporter(source ports.ReportReader, target ports.ReportWriter, kinds ...core.ResourceKind) *ReportImporter {
	if len(kinds) == 0 {
		kinds = core.ResourceKinds()
	}
	return &ReportImporter{
		source: source,
		target: target,
		kinds:  kinds,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// ImportAll imports every kind. Kinds missing from the source are skipped;
// other failures are collected and returned together.
func (i *ReportImporter) ImportAll(ctx context.Context) (imported int, err error) {
	var errs []error
	for _, kind := range i.kinds {
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}

		report, rerr := i.source.ReadReport(ctx, kind)
		if errors.Is(rerr, apperr.ErrNotFound) {
			i.logger.DebugContext(ctx, "No source sheet for resource", applog.FieldResource, kind)
			continue
		}
		if rerr != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", kind, rerr))
			continue
		}
		if werr := i.target.WriteReport(ctx, kind, report); werr != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", kind, werr))
			continue
		}
		imported++
		i.logger.InfoContext(ctx, "Imported report",
			applog.FieldResource, kind,
			"rows", len(report.Listado))
	}
	return imported, errors.Join(errs...)
}
