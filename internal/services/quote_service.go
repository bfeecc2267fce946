package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"concesionario/internal/cache"
	"concesionario/internal/financing"
	applog "concesionario/internal/log"
	ports "concesionario/internal/sheets"
)

// Publisher announces saved quotes to the export worker.
type Publisher interface {
	PublishQuoteSync(ctx context.Context, id, version int64) error
}

// Simulation is a computed plan together with the parsed input.
type Simulation struct {
	Values  financing.SimulatorValues
	Results financing.SimulatorResults
	Cached  bool
}

// QuoteService orchestrates simulations and saved quotes across the cache,
// the quote store and AMQP.
type QuoteService struct {
	store     ports.QuoteStore
	publisher Publisher
	results   cache.Cache[financing.SimulatorResults]
	validate  *validator.Validate
	log       *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time
}

// NewQuoteService wires the service. publisher and results may be nil.
func NewQuoteService(store ports.QuoteStore, publisher Publisher, results cache.Cache[financing.SimulatorResults], logger *applog.Logger) *QuoteService {
	if logger == nil {
		logger = &applog.Logger{Logger: slog.Default()}
	}
	logger = logger.WithComponent(applog.ComponentQuote)
	return &QuoteService{
		store:     store,
		publisher: publisher,
		results:   results,
		validate:  newValidator(),
		log:       logger,
		events:    applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// Simulate computes the rounded payment plan for req. Client identity is
// optional here.
func (s *QuoteService) Simulate(ctx context.Context, req SimulationRequest) (Simulation, error) {
	if err := req.check(s.validate, false); err != nil {
		return Simulation{}, err
	}
	values, err := req.values()
	if err != nil {
		return Simulation{}, err
	}
	policy := req.policy()
	disbursement := req.disbursement(s.now())

	key := values.CacheKey(policy, disbursement)
	if s.results != nil {
		res, ok, err := s.results.Get(ctx, key)
		if err != nil {
			s.log.WarnContext(ctx, "Simulation cache read failed", applog.FieldCacheKey, key, applog.FieldError, err)
		} else if ok {
			return Simulation{Values: values, Results: res, Cached: true}, nil
		}
	}

	res, err := financing.Compute(values, disbursement, financing.WithFeePolicy(policy))
	if err != nil {
		return Simulation{}, err
	}
	res = res.Rounded()

	if s.results != nil {
		if err := s.results.Set(ctx, key, res); err != nil {
			s.log.WarnContext(ctx, "Simulation cache write failed", applog.FieldCacheKey, key, applog.FieldError, err)
		}
	}
	return Simulation{Values: values, Results: res}, nil
}

// CreateQuote saves a quote locally and publishes a sync message. A failed
// publish does not fail the request; the worker sweep exports it later.
func (s *QuoteService) CreateQuote(ctx context.Context, req SimulationRequest) (financing.Quote, error) {
	if err := req.check(s.validate, true); err != nil {
		return financing.Quote{}, err
	}
	values, err := req.values()
	if err != nil {
		return financing.Quote{}, err
	}

	now := s.now()
	q, err := financing.NewQuote(values, req.disbursement(now), req.policy())
	if err != nil {
		return financing.Quote{}, err
	}
	q.CreatedAt = now.UTC()

	saved, err := s.store.SaveQuote(ctx, q)
	if err != nil {
		return financing.Quote{}, fmt.Errorf("save quote: %w", err)
	}
	s.events.LogQuoteSaved(ctx, saved.ID, saved.Values.ClientID, saved.Values.TermMonths, saved.Summary.MonthlyPayment.StringFixed(2))

	if err := s.publishSyncMessage(ctx, saved.ID, saved.Version); err != nil {
		s.log.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldQuoteID, saved.ID, applog.FieldError, err)
	}
	return saved, nil
}

// GetQuote returns a saved quote.
func (s *QuoteService) GetQuote(ctx context.Context, id int64) (financing.Quote, error) {
	return s.store.GetQuote(ctx, id)
}

func (s *QuoteService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		s.log.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishQuoteSync(ctx, id, version)
}
