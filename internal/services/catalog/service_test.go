package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore, *storage.Syncer) {
	t.Helper()
	store := storage.NewMemoryStore()
	syncer := storage.NewSyncer(store, logger.NewNop())
	t.Cleanup(func() { syncer.Close() })
	return NewService(syncer, logger.NewNop()), store, syncer
}

func storedCatalog(t *testing.T, store *storage.MemoryStore, syncer *storage.Syncer) models.Catalog {
	t.Helper()
	require.NoError(t, syncer.Flush(context.Background()))
	raw, err := store.Get(context.Background(), storage.KeyCatalog)
	require.NoError(t, err)
	c, err := models.DecodeCatalog([]byte(raw))
	require.NoError(t, err)
	return c
}

func TestLoadWithoutStoredCatalog(t *testing.T) {
	svc, store, syncer := newTestService(t)

	c, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCatalog().Tables, c.Tables)

	persisted := storedCatalog(t, store, syncer)
	assert.Equal(t, "0.08", persisted.TaxRate.String())
}

func TestLoadCorruptCatalogFallsBackAndRepersists(t *testing.T) {
	svc, store, syncer := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, storage.KeyCatalog, `{"prices":{},"tables":[1,2],"tax_rate":"0.1"}`))

	c, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.08", c.TaxRate.String())

	persisted := storedCatalog(t, store, syncer)
	assert.Len(t, persisted.Tables, 8)
	assert.NoError(t, persisted.Validate())
}

func TestLoadStoredCatalog(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	stored, err := models.DefaultCatalog().WithTaxRate(decimal.RequireFromString("0.16"))
	require.NoError(t, err)
	raw, err := stored.Encode()
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, storage.KeyCatalog, string(raw)))

	_, err = svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.16", svc.TaxRate().String())
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) { return "", errors.New("unreachable") }
func (brokenStore) Save(string, string)                          {}

func TestLoadStoreFailureKeepsDefault(t *testing.T) {
	svc := NewService(brokenStore{}, logger.NewNop())

	c, err := svc.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.NoError(t, c.Validate())
	assert.Equal(t, "0.08", svc.TaxRate().String())
}

func TestResolvePrice(t *testing.T) {
	svc, _, _ := newTestService(t)

	price, err := svc.ResolvePrice(models.SectionTacos, "carnitas", "surtida")
	require.NoError(t, err)
	assert.Equal(t, "10", price.String())

	_, err = svc.ResolvePrice(models.SectionTacos, "carnitas", "ojo")
	assert.ErrorIs(t, err, models.ErrPriceNotFound)

	name, price, err := svc.Product(models.SectionSpecialties, "carnitas", "costilla")
	require.NoError(t, err)
	assert.Equal(t, "Carnitas costilla (kg)", name)
	assert.Equal(t, "100", price.String())
}

func TestAdminOperationsPersist(t *testing.T) {
	svc, store, syncer := newTestService(t)

	require.NoError(t, svc.SetPrice(models.SectionDrinks, "agua", "natural", decimal.NewFromInt(7)))
	require.NoError(t, svc.AddTable(12))
	require.NoError(t, svc.RemoveTable(1))
	require.NoError(t, svc.SetTaxRate(decimal.RequireFromString("0.16")))
	require.NoError(t, svc.SetDarkMode(true))

	persisted := storedCatalog(t, store, syncer)
	price, err := persisted.Price(models.SectionDrinks, "agua", "natural")
	require.NoError(t, err)
	assert.Equal(t, "7", price.String())
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 12}, persisted.Tables)
	assert.Equal(t, "0.16", persisted.TaxRate.String())
	assert.True(t, persisted.DarkMode)

	require.NoError(t, svc.ResetToDefault())
	persisted = storedCatalog(t, store, syncer)
	assert.Equal(t, models.DefaultCatalog().Tables, persisted.Tables)
	assert.False(t, persisted.DarkMode)
}

func TestAdminOperationErrorsLeaveCatalogUnchanged(t *testing.T) {
	svc, _, _ := newTestService(t)
	before := svc.Catalog()

	assert.ErrorIs(t, svc.AddTable(3), models.ErrDuplicateTable)
	assert.ErrorIs(t, svc.RemoveTable(99), models.ErrTableNotFound)
	assert.ErrorIs(t, svc.SetTaxRate(decimal.RequireFromString("1.5")), models.ErrInvalidTaxRate)
	assert.ErrorIs(t, svc.SetPrice(models.SectionTacos, "asada", "bistec", decimal.NewFromInt(-2)), models.ErrInvalidPrice)

	assert.Equal(t, before, svc.Catalog())
}
