package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	"concesionario/internal/financing"
)

func testQuote(t *testing.T) financing.Quote {
	t.Helper()
	v := financing.SimulatorValues{
		ClientName:            "Ana",
		ClientID:              "1020",
		VehiclePrice:          decimal.NewFromInt(20000),
		DownPaymentPercentage: decimal.NewFromInt(20),
		TermMonths:            24,
		InterestRateMonthly:   decimal.RequireFromString("1.5"),
	}
	q, err := financing.NewQuote(v, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), financing.FeesFinanced)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestStoreQuoteLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	saved, err := s.SaveQuote(ctx, testQuote(t))
	if err != nil || saved.ID != 1 {
		t.Fatalf("unexpected save: id=%d err=%v", saved.ID, err)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("created at should be set")
	}

	pending, _ := s.ListPendingQuotes(ctx, 10)
	if len(pending) != 1 || pending[0].ID != 1 || pending[0].Version != 1 {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	ref, err := s.AppendQuote(ctx, saved)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if err := s.MarkQuoteSynced(ctx, saved.ID, ref); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetQuote(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SyncStatus != financing.SyncSynced || got.SheetsRef != "mem:1" {
		t.Errorf("unexpected quote after sync: %+v", got)
	}
	if pending, _ := s.ListPendingQuotes(ctx, 10); len(pending) != 0 {
		t.Errorf("synced quote still pending: %+v", pending)
	}
	if len(s.Exported()) != 1 {
		t.Error("expected one exported quote")
	}
}

func TestStoreMarkErrorAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	saved, _ := s.SaveQuote(ctx, testQuote(t))

	if err := s.MarkQuoteSyncError(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetQuote(ctx, saved.ID)
	if got.SyncStatus != financing.SyncError {
		t.Errorf("status = %s", got.SyncStatus)
	}

	if _, err := s.GetQuote(ctx, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetQuote(42) error = %v", err)
	}
	if err := s.MarkQuoteSynced(ctx, 0, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MarkQuoteSynced(0) error = %v", err)
	}
}

func TestStorePendingLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 5; i++ {
		_, _ = s.SaveQuote(ctx, testQuote(t))
	}
	pending, _ := s.ListPendingQuotes(ctx, 3)
	if len(pending) != 3 || pending[0].ID != 1 {
		t.Errorf("unexpected pending batch: %+v", pending)
	}
}

func TestStoreReports(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.ReadReport(ctx, core.Cobros); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing report error = %v", err)
	}
	r := core.Report{Resumen: map[string]any{"total": 10.0}}
	if err := s.WriteReport(ctx, core.Cobros, r); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadReport(ctx, core.Cobros)
	if err != nil || got.Resumen["total"] != 10.0 {
		t.Errorf("unexpected report %+v err=%v", got, err)
	}
	if err := s.WriteReport(ctx, "motos", r); !errors.Is(err, core.ErrUnknownResource) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestNewFromFilesSeedsReports(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("ventas.json", `{"resumen":{"vendidos":4},"listado":[{"modelo":"Picanto"}]}`)
	mustWrite("pagos.json", `not json`)

	s := NewFromFiles(dir)
	kinds := s.Kinds()
	if len(kinds) != 1 || kinds[0] != core.Ventas {
		t.Fatalf("unexpected seeded kinds: %v", kinds)
	}
	r, _ := s.ReadReport(context.Background(), core.Ventas)
	if len(r.Listado) != 1 || r.Listado[0]["modelo"] != "Picanto" {
		t.Errorf("unexpected seeded report: %+v", r)
	}
}
