package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanRecord is one ledger entry per resolved scan. Append-only: records are
// never edited or removed.
type ScanRecord struct {
	ID        uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint    `json:"user_id" gorm:"not null;index"`
	ProductID *string `json:"product_id" gorm:"size:36"`
	CacheHit  bool    `json:"cache_hit"`

	// Compatibility is null when the compatibility call failed and the scan
	// degraded to an ingredient-only result.
	CompatibilityLevel  *string `json:"compatibility_level" gorm:"size:20"`
	CompatibilityReason string  `json:"compatibility_reason" gorm:"type:text"`

	PromptTokens   int64 `json:"prompt_tokens"`
	OutputTokens   int64 `json:"output_tokens"`
	ThoughtTokens  int64 `json:"thought_tokens"`
	TotalTokens    int64 `json:"total_tokens"`
	SearchRequests int64 `json:"search_requests"`

	Cost decimal.Decimal `json:"cost" gorm:"type:decimal(14,6);default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// TableName specifies the table name for ScanRecord
func (ScanRecord) TableName() string {
	return "scan_records"
}
