// Package pricing implements the price ledger: an append-only history of
// price records per offering plus the projections kept in step with it.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/metrics"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

const successMessage = "Price updated successfully"

// RecordPriceInput describes one price observation for an offering.
// An empty Currency falls back to the service's default currency.
type RecordPriceInput struct {
	OfferingID    uuid.UUID
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	Currency      string
	IsPromotion   bool
}

// PriceEntry is one line of a bulk price feed
type PriceEntry = RecordPriceInput

// BatchEntryResult reports the outcome of a single batch entry
type BatchEntryResult struct {
	OfferingID uuid.UUID
	Success    bool
	Message    string
	NewPrice   decimal.NullDecimal
}

// BatchResult aggregates a bulk price update
type BatchResult struct {
	TotalRequested int
	SuccessCount   int
	FailureCount   int
	Results        []BatchEntryResult
}

// Options tunes the PriceService
type Options struct {
	DefaultCurrency string
	// BatchRatePerSecond throttles BatchRecordPrice; zero disables throttling.
	BatchRatePerSecond float64
	BatchBurst         int
}

// PriceService handles price recording and history
type PriceService struct {
	OfferingRepo    domain.OfferingRepository
	PriceRecordRepo domain.PriceRecordRepository
	UnitOfWork      domain.UnitOfWork
	Projections     []Projection
	DefaultCurrency string

	limiter *rate.Limiter
	now     func() time.Time
	log     *logger.Entry
}

// NewPriceService creates a new PriceService instance with the current price projection installed
func NewPriceService(offeringRepo domain.OfferingRepository, priceRecordRepo domain.PriceRecordRepository,
	uow domain.UnitOfWork, opts Options, log *logger.Log) *PriceService {
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	s := &PriceService{
		OfferingRepo:    offeringRepo,
		PriceRecordRepo: priceRecordRepo,
		UnitOfWork:      uow,
		Projections:     []Projection{&CurrentPriceProjection{OfferingRepo: offeringRepo}},
		DefaultCurrency: currency,
		now:             time.Now,
		log:             log.WithComponent("pricing"),
	}
	if opts.BatchRatePerSecond > 0 {
		burst := opts.BatchBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.BatchRatePerSecond), burst)
	}
	return s
}

// AddProjection registers an additional projection, applied after the built-in ones
func (s *PriceService) AddProjection(p Projection) {
	s.Projections = append(s.Projections, p)
}

// RecordPrice appends a price record and updates every projection in one unit
// of work. When it returns successfully the offering's cached price equals in.Price.
func (s *PriceService) RecordPrice(ctx context.Context, in RecordPriceInput) (*domain.PriceRecord, error) {
	rec, err := s.recordPrice(ctx, in)
	metrics.RecordPriceUpdate(err == nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logger.Fields{
		"offering_id": in.OfferingID,
		"price":       rec.Price.String(),
		"currency":    rec.Currency,
	}).Debug("Price recorded")
	return rec, nil
}

func (s *PriceService) recordPrice(ctx context.Context, in RecordPriceInput) (*domain.PriceRecord, error) {
	currency := in.Currency
	if currency == "" {
		currency = s.DefaultCurrency
	}
	rec := &domain.PriceRecord{
		ID:            uuid.New(),
		OfferingID:    in.OfferingID,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Currency:      currency,
		IsPromotion:   in.IsPromotion,
	}
	// Validate before touching the store; Timestamp is filled in below.
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	err := s.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		// Concurrent recorders of one offering queue here, so each reads the
		// cache the previous one committed.
		if err := s.OfferingRepo.LockForUpdate(ctx, in.OfferingID); err != nil {
			return err
		}
		offering, err := s.OfferingRepo.GetByID(ctx, in.OfferingID)
		if err != nil {
			return err
		}

		rec.Timestamp = s.nextTimestamp(offering)
		if err := s.PriceRecordRepo.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to append price record: %w", err)
		}

		for _, p := range s.Projections {
			if err := p.Apply(ctx, offering, rec); err != nil {
				return fmt.Errorf("failed to apply %s projection: %w", p.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// nextTimestamp returns the current time at microsecond precision, nudged
// past the offering's last update so a new record never sorts behind it.
func (s *PriceService) nextTimestamp(offering *domain.Offering) time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if last := offering.LastPriceUpdate; last != nil && !ts.After(*last) {
		ts = last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return ts
}

// GetPriceHistory returns the offering's price records, newest first.
// An offering without records (or one that was deleted) yields an empty slice.
func (s *PriceService) GetPriceHistory(ctx context.Context, offeringID uuid.UUID) ([]*domain.PriceRecord, error) {
	records, err := s.PriceRecordRepo.ListByOfferingID(ctx, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	if records == nil {
		records = []*domain.PriceRecord{}
	}
	return records, nil
}

// BatchRecordPrice records each entry in its own unit of work. A failing entry
// never affects the others; once ctx is done the remaining entries fail with
// the context error.
func (s *PriceService) BatchRecordPrice(ctx context.Context, entries []PriceEntry) *BatchResult {
	result := &BatchResult{
		TotalRequested: len(entries),
		Results:        make([]BatchEntryResult, 0, len(entries)),
	}

	for _, entry := range entries {
		res := BatchEntryResult{OfferingID: entry.OfferingID}

		rec, err := s.recordBatchEntry(ctx, entry)
		if err != nil {
			res.Message = err.Error()
			result.FailureCount++
		} else {
			res.Success = true
			res.Message = successMessage
			res.NewPrice = decimal.NewNullDecimal(rec.Price)
			result.SuccessCount++
		}
		result.Results = append(result.Results, res)
	}

	s.log.WithFields(logger.Fields{
		"total":   result.TotalRequested,
		"success": result.SuccessCount,
		"failure": result.FailureCount,
	}).Info("Batch price update finished")
	return result
}

func (s *PriceService) recordBatchEntry(ctx context.Context, entry PriceEntry) (*domain.PriceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s.RecordPrice(ctx, entry)
}
