// Package reconcile periodically repairs the denormalized caches: the linkage
// sets on reference items and the price cache on offerings.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/metrics"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// LinkageRebuilder recomputes every reference item's linkage set
type LinkageRebuilder interface {
	RebuildAll(ctx context.Context) (int, error)
}

// Report summarizes one reconcile pass
type Report struct {
	LinkageRepairs    int
	PriceCacheRepairs int
	OfferingsChecked  int
}

// Reconciler repairs linkage and price cache drift on a cron schedule
type Reconciler struct {
	Linkage           LinkageRebuilder
	ReferenceItemRepo domain.ReferenceItemRepository
	OfferingRepo      domain.OfferingRepository
	PriceRecordRepo   domain.PriceRecordRepository
	UnitOfWork        domain.UnitOfWork
	Cron              *cron.Cron

	schedule string
	running  sync.Mutex
	initial  sync.WaitGroup
	log      *logger.Entry
}

// NewReconciler creates a Reconciler running on schedule, a six-field cron
// expression with seconds (e.g. "0 */15 * * * *").
func NewReconciler(
	linkage LinkageRebuilder,
	referenceItemRepo domain.ReferenceItemRepository,
	offeringRepo domain.OfferingRepository,
	priceRecordRepo domain.PriceRecordRepository,
	uow domain.UnitOfWork,
	schedule string,
	log *logger.Log,
) *Reconciler {
	return &Reconciler{
		Linkage:           linkage,
		ReferenceItemRepo: referenceItemRepo,
		OfferingRepo:      offeringRepo,
		PriceRecordRepo:   priceRecordRepo,
		UnitOfWork:        uow,
		Cron:              cron.New(cron.WithSeconds()),
		schedule:          schedule,
		log:               log.WithComponent("reconcile"),
	}
}

// Start runs a first pass in the background and schedules the next ones
func (r *Reconciler) Start() error {
	if _, err := r.Cron.AddFunc(r.schedule, r.runJob); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}

	r.initial.Add(1)
	go func() {
		defer r.initial.Done()
		r.runJob()
	}()
	r.Cron.Start()
	r.log.WithField("schedule", r.schedule).Info("Reconciler started")
	return nil
}

// Stop stops scheduling and waits for a running pass to finish
func (r *Reconciler) Stop() {
	<-r.Cron.Stop().Done()
	r.initial.Wait()
	r.log.Info("Reconciler stopped")
}

func (r *Reconciler) runJob() {
	if _, err := r.Run(context.Background()); err != nil {
		r.log.WithError(err).Error("Reconcile pass failed")
	}
}

// Run performs one reconcile pass. Passes never overlap.
//
//  1. Rebuild every linkage set from the offerings
//  2. For every offering, compare the price cache with the newest price record
//     and rewrite the cache when they differ
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	r.running.Lock()
	defer r.running.Unlock()

	start := time.Now()
	report := &Report{}

	linkRepairs, err := r.Linkage.RebuildAll(ctx)
	report.LinkageRepairs = linkRepairs
	if err != nil {
		return report, fmt.Errorf("failed to rebuild linkage: %w", err)
	}

	items, err := r.ReferenceItemRepo.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list reference items: %w", err)
	}
	for _, item := range items {
		offerings, err := r.OfferingRepo.ListByReferenceItemID(ctx, item.ID)
		if err != nil {
			return report, fmt.Errorf("failed to list offerings: %w", err)
		}
		for _, o := range offerings {
			report.OfferingsChecked++
			repaired, err := r.repairPriceCache(ctx, o)
			if err != nil {
				return report, err
			}
			if repaired {
				report.PriceCacheRepairs++
			}
		}
	}

	metrics.RecordLinkageRepairs(report.LinkageRepairs)
	metrics.RecordPriceCacheRepairs(report.PriceCacheRepairs)
	r.log.WithFields(logger.Fields{
		"linkage_repairs":     report.LinkageRepairs,
		"price_cache_repairs": report.PriceCacheRepairs,
		"offerings_checked":   report.OfferingsChecked,
	}).WithDuration(time.Since(start)).Info("Reconcile pass finished")
	return report, nil
}

// repairPriceCache re-checks the offering inside a unit of work so a price
// recorded concurrently is never overwritten by an older one.
func (r *Reconciler) repairPriceCache(ctx context.Context, offering *domain.Offering) (bool, error) {
	latest, err := r.PriceRecordRepo.GetLatest(ctx, offering.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get latest price of %s: %w", offering.ID, err)
	}
	if offering.MatchesRecord(latest) {
		return false, nil
	}

	repaired := false
	err = r.UnitOfWork.Do(ctx, func(ctx context.Context) error {
		if err := r.OfferingRepo.LockForUpdate(ctx, offering.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		current, err := r.OfferingRepo.GetByID(ctx, offering.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		latest, err := r.PriceRecordRepo.GetLatest(ctx, offering.ID)
		if err != nil {
			return err
		}
		if current.MatchesRecord(latest) {
			return nil
		}

		r.log.WithFields(logger.Fields{
			"offering_id":  offering.ID,
			"cached_price": current.CurrentPrice.Decimal.String(),
			"ledger_price": latest.Price.String(),
		}).Warn("Price cache drifted from ledger, rewriting")
		if err := r.OfferingRepo.UpdatePriceCache(ctx, offering.ID, domain.CacheFromRecord(latest)); err != nil {
			return err
		}
		repaired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to repair price cache of %s: %w", offering.ID, err)
	}
	return repaired, nil
}
