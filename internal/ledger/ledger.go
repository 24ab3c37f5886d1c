package ledger

import (
	"fmt"

	"gorm.io/gorm"

	"labelcheck/internal/models"
)

// Ledger appends scan records and rolls usage cost into the owning user's
// running totals. Records are append-only.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a scan ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append writes one scan record and bumps the user's scan count and
// cumulative cost in the same transaction.
func (l *Ledger) Append(record *models.ScanRecord) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("append scan record: %w", err)
		}

		var user models.User
		if err := tx.First(&user, record.UserID).Error; err != nil {
			return fmt.Errorf("load user for rollup: %w", err)
		}
		user.ScanCount++
		user.TotalCost = user.TotalCost.Add(record.Cost)
		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("roll up user totals: %w", err)
		}
		return nil
	})
}

// History returns a user's most recent scan records, newest first.
func (l *Ledger) History(userID uint, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []models.ScanRecord
	err := l.db.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Recent returns the latest scan records across all users.
func (l *Ledger) Recent(limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.ScanRecord
	err := l.db.Preload("Product").
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
