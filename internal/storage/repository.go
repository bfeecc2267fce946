package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	"concesionario/internal/financing"
	applog "concesionario/internal/log"
	ports "concesionario/internal/sheets"
)

const dateLayout = "2006-01-02"

var (
	_ ports.QuoteStore   = (*SQLiteRepository)(nil)
	_ ports.ReportReader = (*SQLiteRepository)(nil)
	_ ports.ReportWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *slog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  slog.Default().With(applog.FieldComponent, applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveQuote implements sheets.QuoteStore
func (r *SQLiteRepository) SaveQuote(ctx context.Context, q financing.Quote) (financing.Quote, error) {
	rec, err := toRecord(q)
	if err != nil {
		return financing.Quote{}, err
	}
	id, err := r.queries.CreateQuote(ctx, rec)
	if err != nil {
		return financing.Quote{}, fmt.Errorf("create quote: %w", err)
	}

	saved, err := r.GetQuote(ctx, id)
	if err != nil {
		return financing.Quote{}, err
	}
	r.logger.InfoContext(ctx, "Quote saved to SQLite",
		applog.FieldQuoteID, id,
		applog.FieldClientID, q.Values.ClientID,
		applog.FieldTermMonths, q.Values.TermMonths)
	return saved, nil
}

// GetQuote implements sheets.QuoteStore
func (r *SQLiteRepository) GetQuote(ctx context.Context, id int64) (financing.Quote, error) {
	rec, err := r.queries.GetQuote(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return financing.Quote{}, fmt.Errorf("quote %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return financing.Quote{}, fmt.Errorf("get quote %d: %w", id, err)
	}
	return fromRecord(rec)
}

// ListPendingQuotes implements sheets.QuoteStore
func (r *SQLiteRepository) ListPendingQuotes(ctx context.Context, limit int) ([]ports.PendingQuote, error) {
	rows, err := r.queries.GetPendingSyncQuotes(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync quotes: %w", err)
	}
	out := make([]ports.PendingQuote, len(rows))
	for i, row := range rows {
		out[i] = ports.PendingQuote{ID: row.ID, Version: row.Version, CreatedAt: row.CreatedAt}
	}
	return out, nil
}

// MarkQuoteSynced implements sheets.QuoteStore
func (r *SQLiteRepository) MarkQuoteSynced(ctx context.Context, id int64, ref string) error {
	n, err := r.queries.MarkQuoteSynced(ctx, ref, id)
	if err != nil {
		return fmt.Errorf("mark quote synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("quote %d: %w", id, apperr.ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Quote marked as synced", applog.FieldQuoteID, id, applog.FieldSheetsRef, ref)
	return nil
}

// MarkQuoteSyncError implements sheets.QuoteStore
func (r *SQLiteRepository) MarkQuoteSyncError(ctx context.Context, id int64) error {
	n, err := r.queries.MarkQuoteSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark quote sync error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("quote %d: %w", id, apperr.ErrNotFound)
	}
	r.logger.WarnContext(ctx, "Quote marked with sync error", applog.FieldQuoteID, id)
	return nil
}

// ReadReport implements sheets.ReportReader
func (r *SQLiteRepository) ReadReport(ctx context.Context, kind core.ResourceKind) (core.Report, error) {
	payload, err := r.queries.GetReport(ctx, kind.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, fmt.Errorf("report %s: %w", kind, apperr.ErrNotFound)
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("get report %s: %w", kind, err)
	}
	var report core.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return core.Report{}, fmt.Errorf("decode report %s: %w", kind, err)
	}
	return report, nil
}

// WriteReport implements sheets.ReportWriter
func (r *SQLiteRepository) WriteReport(ctx context.Context, kind core.ResourceKind, report core.Report) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %s", core.ErrUnknownResource, kind)
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", kind, err)
	}
	if err := r.queries.UpsertReport(ctx, kind.String(), string(payload)); err != nil {
		return fmt.Errorf("store report %s: %w", kind, err)
	}
	r.logger.InfoContext(ctx, "Report stored", applog.FieldResource, kind.String(), "rows", len(report.Listado))
	return nil
}

// ReportKinds lists the kinds with a stored report.
func (r *SQLiteRepository) ReportKinds(ctx context.Context) ([]core.ResourceKind, error) {
	raw, err := r.queries.ListReportKinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report kinds: %w", err)
	}
	out := make([]core.ResourceKind, len(raw))
	for i, k := range raw {
		out[i] = core.ResourceKind(k)
	}
	return out, nil
}

func toRecord(q financing.Quote) (QuoteRecord, error) {
	v := q.Values
	var vehicle sql.NullString
	if v.SelectedVehicle != nil {
		raw, err := json.Marshal(v.SelectedVehicle)
		if err != nil {
			return QuoteRecord{}, fmt.Errorf("encode vehicle: %w", err)
		}
		vehicle = sql.NullString{String: string(raw), Valid: true}
	}
	policy := q.FeePolicy
	if !policy.IsValid() {
		policy = financing.FeesFinanced
	}
	s := q.Summary
	return QuoteRecord{
		ClientName:            v.ClientName,
		ClientID:              v.ClientID,
		ClientPhone:           v.ClientPhone,
		ClientAddress:         v.ClientAddress,
		VehicleJSON:           vehicle,
		VehiclePrice:          v.VehiclePrice,
		DownPaymentPercentage: v.DownPaymentPercentage,
		TermMonths:            int64(v.TermMonths),
		InterestRateMonthly:   v.InterestRateMonthly,
		AdminFee:              v.AdminFee,
		GPSFee:                v.GPSFee,
		InsuranceFee:          v.InsuranceFee,
		FeePolicy:             string(policy),
		DisbursementDate:      q.Disbursement.Format(dateLayout),
		DownPaymentAmount:     s.DownPaymentAmount,
		VehicleBalance:        s.VehicleBalance,
		TotalCapital:          s.TotalCapital,
		TotalInterest:         s.TotalInterest,
		TotalDebt:             s.TotalDebt,
		MonthlyPayment:        s.MonthlyPayment,
		UpfrontCharges:        s.UpfrontCharges,
	}, nil
}

func fromRecord(rec QuoteRecord) (financing.Quote, error) {
	disbursement, err := time.Parse(dateLayout, rec.DisbursementDate)
	if err != nil {
		return financing.Quote{}, fmt.Errorf("quote %d: bad disbursement date %q: %w", rec.ID, rec.DisbursementDate, err)
	}
	v := financing.SimulatorValues{
		ClientName:            rec.ClientName,
		ClientID:              rec.ClientID,
		ClientPhone:           rec.ClientPhone,
		ClientAddress:         rec.ClientAddress,
		VehiclePrice:          rec.VehiclePrice,
		DownPaymentPercentage: rec.DownPaymentPercentage,
		TermMonths:            int(rec.TermMonths),
		InterestRateMonthly:   rec.InterestRateMonthly,
		AdminFee:              rec.AdminFee,
		GPSFee:                rec.GPSFee,
		InsuranceFee:          rec.InsuranceFee,
	}
	if rec.VehicleJSON.Valid {
		var vehicle core.Vehicle
		if err := json.Unmarshal([]byte(rec.VehicleJSON.String), &vehicle); err != nil {
			return financing.Quote{}, fmt.Errorf("quote %d: decode vehicle: %w", rec.ID, err)
		}
		v.SelectedVehicle = &vehicle
	}
	policy := financing.FeePolicy(rec.FeePolicy)
	return financing.Quote{
		ID:           rec.ID,
		Values:       v,
		FeePolicy:    policy,
		Disbursement: disbursement,
		Summary: financing.SimulatorResults{
			DownPaymentAmount: rec.DownPaymentAmount,
			VehicleBalance:    rec.VehicleBalance,
			TotalCapital:      rec.TotalCapital,
			TotalInterest:     rec.TotalInterest,
			TotalDebt:         rec.TotalDebt,
			MonthlyPayment:    rec.MonthlyPayment,
			UpfrontCharges:    rec.UpfrontCharges,
			FeePolicy:         policy,
		},
		CreatedAt:  rec.CreatedAt,
		Version:    rec.Version,
		SyncStatus: financing.SyncStatus(rec.SyncStatus),
		SheetsRef:  rec.SheetsRef.String,
	}, nil
}
