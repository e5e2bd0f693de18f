// Package seeder creates the markets and reference items listed in a YAML
// catalog fixture.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// Fixture is the on-disk catalog. IDs are fixed so seeding is repeatable.
type Fixture struct {
	Markets        []MarketFixture        `yaml:"markets"`
	ReferenceItems []ReferenceItemFixture `yaml:"reference_items"`
}

type MarketFixture struct {
	ID       uuid.UUID `yaml:"id"`
	Name     string    `yaml:"name"`
	Location string    `yaml:"location"`
	LogoURL  string    `yaml:"logo_url"`
	Active   *bool     `yaml:"active"`
}

// ReferenceItemFixture has no linked markets: those follow from offerings.
type ReferenceItemFixture struct {
	ID                  uuid.UUID   `yaml:"id"`
	Name                string      `yaml:"name"`
	CategoryID          string      `yaml:"category_id"`
	CategoryName        string      `yaml:"category_name"`
	Description         string      `yaml:"description"`
	Images              []string    `yaml:"images"`
	Active              *bool       `yaml:"active"`
	AvailableEverywhere *bool       `yaml:"available_everywhere"`
	RestrictedMarketIDs []uuid.UUID `yaml:"restricted_market_ids"`
}

// Report counts what a Seed call created and skipped
type Report struct {
	MarketsCreated        int
	MarketsSkipped        int
	ReferenceItemsCreated int
	ReferenceItemsSkipped int
}

// CatalogSeeder handles seeding of the catalog
type CatalogSeeder struct {
	marketRepo domain.MarketRepository
	itemRepo   domain.ReferenceItemRepository
	log        *logger.Entry
}

// NewCatalogSeeder creates a new CatalogSeeder instance
func NewCatalogSeeder(marketRepo domain.MarketRepository, itemRepo domain.ReferenceItemRepository, log *logger.Log) *CatalogSeeder {
	return &CatalogSeeder{
		marketRepo: marketRepo,
		itemRepo:   itemRepo,
		log:        log.WithComponent("seeder"),
	}
}

// LoadFixture reads a catalog fixture from path
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read fixture file: %w", err)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cannot parse fixture YAML: %w", err)
	}
	return &f, nil
}

// SeedFile loads the fixture at path and seeds it
func (s *CatalogSeeder) SeedFile(ctx context.Context, path string) (*Report, error) {
	f, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, f)
}

// Seed ensures every market and reference item of the fixture exists.
// Records that already exist are left untouched.
func (s *CatalogSeeder) Seed(ctx context.Context, f *Fixture) (*Report, error) {
	report := &Report{}

	for _, mf := range f.Markets {
		// Try to get the market by ID
		_, err := s.marketRepo.GetByID(ctx, mf.ID)
		if err == nil {
			report.MarketsSkipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("failed to look up market %s: %w", mf.ID, err)
		}

		market := &domain.Market{
			ID:       mf.ID,
			Name:     mf.Name,
			Location: mf.Location,
			LogoURL:  mf.LogoURL,
			Active:   boolOr(mf.Active, true),
		}
		if err := market.Validate(); err != nil {
			return report, fmt.Errorf("market %q: %w", mf.Name, err)
		}
		if err := s.marketRepo.Create(ctx, market); err != nil {
			return report, err
		}
		report.MarketsCreated++
	}

	for _, rf := range f.ReferenceItems {
		_, err := s.itemRepo.GetByID(ctx, rf.ID)
		if err == nil {
			report.ReferenceItemsSkipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("failed to look up reference item %s: %w", rf.ID, err)
		}

		item := &domain.ReferenceItem{
			ID:                  rf.ID,
			Name:                rf.Name,
			CategoryID:          rf.CategoryID,
			CategoryName:        rf.CategoryName,
			Description:         rf.Description,
			Images:              rf.Images,
			Active:              boolOr(rf.Active, true),
			AvailableEverywhere: boolOr(rf.AvailableEverywhere, true),
			RestrictedMarketIDs: rf.RestrictedMarketIDs,
		}
		if err := item.Validate(); err != nil {
			return report, fmt.Errorf("reference item %q: %w", rf.Name, err)
		}
		if err := s.itemRepo.Create(ctx, item); err != nil {
			return report, err
		}
		report.ReferenceItemsCreated++
	}

	s.log.WithFields(logger.Fields{
		"markets_created":         report.MarketsCreated,
		"markets_skipped":         report.MarketsSkipped,
		"reference_items_created": report.ReferenceItemsCreated,
		"reference_items_skipped": report.ReferenceItemsSkipped,
	}).Info("Catalog seeded")
	return report, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
