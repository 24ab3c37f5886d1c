package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"labelcheck/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database shared across queries.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return NewStore(db, 0.84)
}

func TestStoreCreateDerivesMatchColumns(t *testing.T) {
	store := newTestStore(t)

	p := &models.Product{Name: "Diet Cola Soft Drink 330ml", Brand: "Acme", Source: "analysis"}
	require.NoError(t, store.Create(p))

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "diet cola soft drink 330ml", p.NormName)
	assert.Equal(t, "acme", p.NormBrand)
	assert.Equal(t, "acme diet cola 330ml", p.MatchKey)
}

func TestStoreFindExactNormalizesInput(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Create(&models.Product{Name: "Diet Cola", Brand: "Acme"}))

	found, err := store.FindExact("  diet   COLA ", "ACME")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "diet cola", found.NormName)

	missing, err := store.FindExact("diet cola", "other brand")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreFindFuzzyConvergesOnVariants(t *testing.T) {
	store := newTestStore(t)
	p := &models.Product{Name: "Diet Cola 330ml", Brand: "Acme"}
	require.NoError(t, store.Create(p))

	// Same product read off a different label framing.
	found, err := store.FindFuzzy("Diet Cola Soft Drink 330ml", "Acme")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)
}

func TestStoreFindFuzzyRejectsDifferentProducts(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Create(&models.Product{Name: "Cola Classic", Brand: "Coca"}))

	found, err := store.FindFuzzy("Lemon Lime", "Sprite")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStoreFindFuzzyEmptyKeyNeverMatches(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Create(&models.Product{Name: "Cola", Brand: "Acme"}))

	found, err := store.FindFuzzy("The Original", "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestResolveOrCreateReusesExisting(t *testing.T) {
	store := newTestStore(t)
	first := &models.Product{Name: "Diet Cola", Brand: "Acme"}
	require.NoError(t, store.Create(first))

	dup := &models.Product{Name: "Diet  Cola", Brand: "ACME"}
	resolved, created, err := store.ResolveOrCreate(dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, resolved.ID)
}

func TestResolveOrCreateSingleWinnerUnderRace(t *testing.T) {
	store := newTestStore(t)

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	createdFlags := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &models.Product{Name: "Diet Cola 330ml", Brand: "Acme"}
			resolved, created, err := store.ResolveOrCreate(p)
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = resolved.ID
			createdFlags[i] = created
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], "all callers must resolve to one record")
	}
	for _, c := range createdFlags {
		if c {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller creates")

	var count int64
	require.NoError(t, store.db.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
