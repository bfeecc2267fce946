package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// QuoteRecord mirrors a row of the quotes table.
type QuoteRecord struct {
	ID                    int64
	ClientName            string
	ClientID              string
	ClientPhone           string
	ClientAddress         string
	VehicleJSON           sql.NullString
	VehiclePrice          decimal.Decimal
	DownPaymentPercentage decimal.Decimal
	TermMonths            int64
	InterestRateMonthly   decimal.Decimal
	AdminFee              decimal.Decimal
	GPSFee                decimal.Decimal
	InsuranceFee          decimal.Decimal
	FeePolicy             string
	DisbursementDate      string
	DownPaymentAmount     decimal.Decimal
	VehicleBalance        decimal.Decimal
	TotalCapital          decimal.Decimal
	TotalInterest         decimal.Decimal
	TotalDebt             decimal.Decimal
	MonthlyPayment        decimal.Decimal
	UpfrontCharges        decimal.Decimal
	CreatedAt             time.Time
	Version               int64
	SyncStatus            string
	SyncedAt              sql.NullTime
	SheetsRef             sql.NullString
}

const createQuote = `INSERT INTO quotes (
    client_name, client_id, client_phone, client_address, vehicle_json,
    vehicle_price, down_payment_percentage, term_months, interest_rate_monthly,
    admin_fee, gps_fee, insurance_fee, fee_policy, disbursement_date,
    down_payment_amount, vehicle_balance, total_capital, total_interest,
    total_debt, monthly_payment, upfront_charges
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateQuote inserts a quote and returns its ID.
func (q *Queries) CreateQuote(ctx context.Context, r QuoteRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx, createQuote,
		r.ClientName, r.ClientID, r.ClientPhone, r.ClientAddress, r.VehicleJSON,
		r.VehiclePrice, r.DownPaymentPercentage, r.TermMonths, r.InterestRateMonthly,
		r.AdminFee, r.GPSFee, r.InsuranceFee, r.FeePolicy, r.DisbursementDate,
		r.DownPaymentAmount, r.VehicleBalance, r.TotalCapital, r.TotalInterest,
		r.TotalDebt, r.MonthlyPayment, r.UpfrontCharges,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getQuote = `SELECT
    id, client_name, client_id, client_phone, client_address, vehicle_json,
    vehicle_price, down_payment_percentage, term_months, interest_rate_monthly,
    admin_fee, gps_fee, insurance_fee, fee_policy, disbursement_date,
    down_payment_amount, vehicle_balance, total_capital, total_interest,
    total_debt, monthly_payment, upfront_charges,
    created_at, version, sync_status, synced_at, sheets_ref
FROM quotes WHERE id = ?`

func (q *Queries) GetQuote(ctx context.Context, id int64) (QuoteRecord, error) {
	row := q.db.QueryRowContext(ctx, getQuote, id)
	var r QuoteRecord
	err := row.Scan(
		&r.ID, &r.ClientName, &r.ClientID, &r.ClientPhone, &r.ClientAddress, &r.VehicleJSON,
		&r.VehiclePrice, &r.DownPaymentPercentage, &r.TermMonths, &r.InterestRateMonthly,
		&r.AdminFee, &r.GPSFee, &r.InsuranceFee, &r.FeePolicy, &r.DisbursementDate,
		&r.DownPaymentAmount, &r.VehicleBalance, &r.TotalCapital, &r.TotalInterest,
		&r.TotalDebt, &r.MonthlyPayment, &r.UpfrontCharges,
		&r.CreatedAt, &r.Version, &r.SyncStatus, &r.SyncedAt, &r.SheetsRef,
	)
	return r, err
}

const getPendingSyncQuotes = `SELECT id, version, created_at
FROM quotes
WHERE sync_status = 'pending'
ORDER BY created_at, id
LIMIT ?`

type GetPendingSyncQuotesRow struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

func (q *Queries) GetPendingSyncQuotes(ctx context.Context, limit int64) ([]GetPendingSyncQuotesRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncQuotes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPendingSyncQuotesRow
	for rows.Next() {
		var i GetPendingSyncQuotesRow
		if err := rows.Scan(&i.ID, &i.Version, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markQuoteSynced = `UPDATE quotes
SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP, sheets_ref = ?
WHERE id = ?`

func (q *Queries) MarkQuoteSynced(ctx context.Context, ref string, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markQuoteSynced, ref, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markQuoteSyncError = `UPDATE quotes SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkQuoteSyncError(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markQuoteSyncError, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getReport = `SELECT payload FROM resource_reports WHERE kind = ?`

func (q *Queries) GetReport(ctx context.Context, kind string) (string, error) {
	var payload string
	err := q.db.QueryRowContext(ctx, getReport, kind).Scan(&payload)
	return payload, err
}

const upsertReport = `INSERT INTO resource_reports (kind, payload, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

func (q *Queries) UpsertReport(ctx context.Context, kind, payload string) error {
	_, err := q.db.ExecContext(ctx, upsertReport, kind, payload)
	return err
}

const listReportKinds = `SELECT kind FROM resource_reports ORDER BY kind`

func (q *Queries) ListReportKinds(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listReportKinds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}
