package sheets

import (
	"context"
	"time"

	"concesionario/internal/core"
	"concesionario/internal/financing"
)

// Ports for outbound adapters.
type (
	// QuoteWriter exports a saved quote, typically as a spreadsheet row.
	QuoteWriter interface {
		AppendQuote(ctx context.Context, q financing.Quote) (rowRef string, err error)
	}

	// QuoteStore persists quotes and tracks their export state.
	QuoteStore interface {
		SaveQuote(ctx context.Context, q financing.Quote) (financing.Quote, error)
		GetQuote(ctx context.Context, id int64) (financing.Quote, error)
		ListPendingQuotes(ctx context.Context, limit int) ([]PendingQuote, error)
		MarkQuoteSynced(ctx context.Context, id int64, ref string) error
		MarkQuoteSyncError(ctx context.Context, id int64) error
	}

	// ReportReader returns the last stored report of a dashboard resource.
	ReportReader interface {
		ReadReport(ctx context.Context, kind core.ResourceKind) (core.Report, error)
	}

	// ReportWriter replaces the stored report of a dashboard resource.
	ReportWriter interface {
		WriteReport(ctx context.Context, kind core.ResourceKind, r core.Report) error
	}
)

// PendingQuote is the minimal data needed to queue a quote for export.
type PendingQuote struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}
