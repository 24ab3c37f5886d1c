package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"labelcheck/internal/models"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.ScanRecord{}))
	return NewLedger(db), db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{JID: "628111@s.whatsapp.net", DisplayName: "Tester"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAppendRollsUpUserTotals(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := seedUser(t, db)

	cost1 := decimal.RequireFromString("0.012345")
	cost2 := decimal.RequireFromString("0.000155")

	require.NoError(t, ledger.Append(&models.ScanRecord{
		UserID: user.ID, TotalTokens: 900, Cost: cost1,
	}))
	require.NoError(t, ledger.Append(&models.ScanRecord{
		UserID: user.ID, CacheHit: true, TotalTokens: 120, Cost: cost2,
	}))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, int64(2), reloaded.ScanCount)
	assert.True(t, reloaded.TotalCost.Equal(cost1.Add(cost2)),
		"want %s got %s", cost1.Add(cost2), reloaded.TotalCost)
}

func TestAppendUnknownUserRollsBack(t *testing.T) {
	ledger, db := newTestLedger(t)

	err := ledger.Append(&models.ScanRecord{UserID: 999, Cost: decimal.NewFromInt(1)})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.ScanRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "failed rollup must not leave a record behind")
}

func TestHistoryNewestFirstWithProduct(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := seedUser(t, db)
	other := &models.User{JID: "628222@s.whatsapp.net"}
	require.NoError(t, db.Create(other).Error)

	product := &models.Product{ID: "11111111-1111-1111-1111-111111111111", Name: "Diet Cola", Brand: "Acme"}
	require.NoError(t, db.Create(product).Error)

	older := &models.ScanRecord{UserID: user.ID, ProductID: &product.ID, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.ScanRecord{UserID: user.ID, CreatedAt: time.Now()}
	foreign := &models.ScanRecord{UserID: other.ID, CreatedAt: time.Now()}
	require.NoError(t, ledger.Append(older))
	require.NoError(t, ledger.Append(newer))
	require.NoError(t, ledger.Append(foreign))

	records, err := ledger.History(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
	require.NotNil(t, records[1].Product)
	assert.Equal(t, "Diet Cola", records[1].Product.Name)
}

func TestHistoryLimit(t *testing.T) {
	ledger, db := newTestLedger(t)
	user := seedUser(t, db)

	for i := 0; i < 4; i++ {
		require.NoError(t, ledger.Append(&models.ScanRecord{
			UserID:    user.ID,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := ledger.History(user.ID, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecentSpansUsers(t *testing.T) {
	ledger, db := newTestLedger(t)
	a := seedUser(t, db)
	b := &models.User{JID: "628333@s.whatsapp.net"}
	require.NoError(t, db.Create(b).Error)

	require.NoError(t, ledger.Append(&models.ScanRecord{UserID: a.ID}))
	require.NoError(t, ledger.Append(&models.ScanRecord{UserID: b.ID}))

	records, err := ledger.Recent(10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
