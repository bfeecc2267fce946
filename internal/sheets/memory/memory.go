package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"concesionario/internal/apperr"
	"concesionario/internal/core"
	"concesionario/internal/financing"
	ports "concesionario/internal/sheets"
)

var (
	_ ports.QuoteStore   = (*Store)(nil)
	_ ports.QuoteWriter  = (*Store)(nil)
	_ ports.ReportReader = (*Store)(nil)
	_ ports.ReportWriter = (*Store)(nil)
)

// Store keeps quotes, exported rows and dashboard reports in memory.
type Store struct {
	mu       sync.Mutex
	quotes   []financing.Quote
	exported []financing.Quote
	reports  map[core.ResourceKind]core.Report
	now      func() time.Time
}

func New() *Store {
	return &Store{reports: map[core.ResourceKind]core.Report{}, now: time.Now}
}

// NewFromFiles seeds reports from <base>/<kind>.json. Missing or unreadable
// files are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, kind := range core.ResourceKinds() {
		r, ok := readReport(filepath.Join(base, kind.String()+".json"))
		if ok {
			s.reports[kind] = r
		}
	}
	return s
}

// SaveQuote assigns an ID and stores q.
func (s *Store) SaveQuote(_ context.Context, q financing.Quote) (financing.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = int64(len(s.quotes) + 1)
	q.CreatedAt = s.now().UTC()
	if q.Version == 0 {
		q.Version = 1
	}
	if q.SyncStatus == "" {
		q.SyncStatus = financing.SyncPending
	}
	s.quotes = append(s.quotes, q)
	return q, nil
}

// GetQuote returns the quote with id.
func (s *Store) GetQuote(_ context.Context, id int64) (financing.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > int64(len(s.quotes)) {
		return financing.Quote{}, fmt.Errorf("quote %d: %w", id, apperr.ErrNotFound)
	}
	return s.quotes[id-1], nil
}

// ListPendingQuotes returns up to limit pending quotes, oldest first.
func (s *Store) ListPendingQuotes(_ context.Context, limit int) ([]ports.PendingQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ports.PendingQuote
	for _, q := range s.quotes {
		if len(out) >= limit {
			break
		}
		if q.SyncStatus == financing.SyncPending {
			out = append(out, ports.PendingQuote{ID: q.ID, Version: q.Version, CreatedAt: q.CreatedAt})
		}
	}
	return out, nil
}

// MarkQuoteSynced records a successful export.
func (s *Store) MarkQuoteSynced(_ context.Context, id int64, ref string) error {
	return s.update(id, func(q *financing.Quote) {
		q.SyncStatus = financing.SyncSynced
		q.SheetsRef = ref
	})
}

// MarkQuoteSyncError records a failed export.
func (s *Store) MarkQuoteSyncError(_ context.Context, id int64) error {
	return s.update(id, func(q *financing.Quote) {
		q.SyncStatus = financing.SyncError
	})
}

func (s *Store) update(id int64, fn func(*financing.Quote)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > int64(len(s.quotes)) {
		return fmt.Errorf("quote %d: %w", id, apperr.ErrNotFound)
	}
	fn(&s.quotes[id-1])
	return nil
}

// AppendQuote records an exported quote and returns a synthetic row reference.
func (s *Store) AppendQuote(_ context.Context, q financing.Quote) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, q)
	return fmt.Sprintf("mem:%d", len(s.exported)), nil
}

// Exported returns the quotes passed to AppendQuote.
func (s *Store) Exported() []financing.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]financing.Quote(nil), s.exported...)
}

// ReadReport returns the stored report of kind.
func (s *Store) ReadReport(_ context.Context, kind core.ResourceKind) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[kind]
	if !ok {
		return core.Report{}, fmt.Errorf("report %s: %w", kind, apperr.ErrNotFound)
	}
	return r, nil
}

// WriteReport replaces the stored report of kind.
func (s *Store) WriteReport(_ context.Context, kind core.ResourceKind, r core.Report) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %s", core.ErrUnknownResource, kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[kind] = r
	return nil
}

// Kinds returns the kinds with a stored report, sorted.
func (s *Store) Kinds() []core.ResourceKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ResourceKind, 0, len(s.reports))
	for k := range s.reports {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func readReport(path string) (core.Report, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.Report{}, false
	}
	var r core.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return core.Report{}, false
	}
	return r, true
}
