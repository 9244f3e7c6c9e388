package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Persister is the part of storage.Syncer the catalog needs.
type Persister interface {
	Get(ctx context.Context, key string) (string, error)
	Save(key, value string)
}

// Service owns the active price catalog. Every change is validated, swapped
// in atomically and queued for persistence.
type Service struct {
	mu      sync.RWMutex
	current models.Catalog
	store   Persister
	logger  *logger.Logger
}

// NewService starts from the compiled-in default until Load succeeds.
func NewService(store Persister, log *logger.Logger) *Service {
	return &Service{
		current: models.DefaultCatalog(),
		store:   store,
		logger:  log,
	}
}

// Load reads the persisted catalog. A missing or corrupt document is
// replaced by the last known good catalog (the default at startup) and that
// catalog is written back. A store error leaves the current catalog active
// and is returned wrapped in ErrPersistenceFailure.
func (s *Service) Load(ctx context.Context) (models.Catalog, error) {
	raw, err := s.store.Get(ctx, storage.KeyCatalog)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Info("catalog_defaulted", "No stored catalog, using default", "", nil)
		return s.persistCurrent(), nil
	case err != nil:
		s.logger.Error("catalog_load_failed", "Failed to read stored catalog", "", err, nil)
		return s.Catalog(), fmt.Errorf("%w: load catalog: %v", models.ErrPersistenceFailure, err)
	}

	loaded, err := models.DecodeCatalog([]byte(raw))
	if err != nil {
		s.logger.Warn("catalog_corrupt", "Stored catalog is invalid, restoring last known good", "", map[string]interface{}{
			"reason": err.Error(),
		})
		return s.persistCurrent(), nil
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.logger.Info("catalog_loaded", "Catalog loaded", "", map[string]interface{}{
		"tables":   len(loaded.Tables),
		"tax_rate": loaded.TaxRate.String(),
	})
	return loaded.Clone(), nil
}

func (s *Service) persistCurrent() models.Catalog {
	s.mu.RLock()
	c := s.current.Clone()
	s.mu.RUnlock()
	s.persist(c)
	return c
}

// Catalog returns a copy of the active catalog.
func (s *Service) Catalog() models.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// ResolvePrice returns the unit price of a product.
func (s *Service) ResolvePrice(section, category, variant string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Price(section, category, variant)
}

// Product resolves both display name and unit price.
func (s *Service) Product(section, category, variant string) (string, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, err := s.current.Price(section, category, variant)
	if err != nil {
		return "", decimal.Zero, err
	}
	return s.current.ProductName(section, category, variant), price, nil
}

func (s *Service) TaxRate() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.TaxRate
}

// Tables returns the roster in ascending order.
func (s *Service) Tables() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.current.Tables...)
}

func (s *Service) SetPrice(section, category, variant string, price decimal.Decimal) error {
	return s.update("price_updated", map[string]interface{}{
		"section":  section,
		"category": category,
		"variant":  variant,
		"price":    price.String(),
	}, func(c models.Catalog) (models.Catalog, error) {
		return c.WithPrice(section, category, variant, price)
	})
}

func (s *Service) AddTable(n int) error {
	return s.update("table_added", map[string]interface{}{"table": n}, func(c models.Catalog) (models.Catalog, error) {
		return c.WithTable(n)
	})
}

func (s *Service) RemoveTable(n int) error {
	return s.update("table_removed", map[string]interface{}{"table": n}, func(c models.Catalog) (models.Catalog, error) {
		return c.WithoutTable(n)
	})
}

// SetTaxRate takes a fraction, e.g. 0.08 for 8%.
func (s *Service) SetTaxRate(rate decimal.Decimal) error {
	return s.update("tax_rate_updated", map[string]interface{}{"tax_rate": rate.String()}, func(c models.Catalog) (models.Catalog, error) {
		return c.WithTaxRate(rate)
	})
}

func (s *Service) SetDarkMode(on bool) error {
	return s.update("dark_mode_updated", map[string]interface{}{"dark_mode": on}, func(c models.Catalog) (models.Catalog, error) {
		return c.WithDarkMode(on), nil
	})
}

// ResetToDefault replaces the whole catalog with the compiled-in default.
func (s *Service) ResetToDefault() error {
	return s.update("catalog_reset", nil, func(models.Catalog) (models.Catalog, error) {
		return models.DefaultCatalog(), nil
	})
}

func (s *Service) update(action string, fields map[string]interface{}, change func(models.Catalog) (models.Catalog, error)) error {
	s.mu.Lock()
	next, err := change(s.current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	snapshot := next.Clone()
	s.mu.Unlock()

	s.persist(snapshot)
	s.logger.Info(action, "Catalog updated", "", fields)
	return nil
}

func (s *Service) persist(c models.Catalog) {
	raw, err := c.Encode()
	if err != nil {
		s.logger.Error("catalog_encode_failed", "Failed to encode catalog", "", err, nil)
		return
	}
	s.store.Save(storage.KeyCatalog, string(raw))
}
