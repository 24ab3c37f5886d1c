package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StringList is a json-serialized list column.
type StringList []string

// HealthProfile is the five tag sets extracted from the onboarding answers.
// The pipeline treats it as read-only input.
type HealthProfile struct {
	Diet                    StringList `json:"diet" gorm:"type:text;serializer:json"`
	FoodAllergies           StringList `json:"food_allergies" gorm:"type:text;serializer:json"`
	IngredientSensitivities StringList `json:"ingredient_sensitivities" gorm:"type:text;serializer:json"`
	SkinSensitivities       StringList `json:"skin_sensitivities" gorm:"type:text;serializer:json"`
	HealthConditions        StringList `json:"health_conditions" gorm:"type:text;serializer:json"`
}

// Empty reports whether no tags are set at all.
func (p HealthProfile) Empty() bool {
	return len(p.Diet) == 0 && len(p.FoodAllergies) == 0 && len(p.IngredientSensitivities) == 0 &&
		len(p.SkinSensitivities) == 0 && len(p.HealthConditions) == 0
}

// User is one chat identity. ScanCount and TotalCost are the per-user running
// totals rolled up by the ledger.
type User struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	JID         string `json:"jid" gorm:"uniqueIndex;size:100;not null"`
	DisplayName string `json:"display_name" gorm:"size:100"`

	HealthProfile HealthProfile `json:"health_profile" gorm:"embedded"`
	ProfileReady  bool          `json:"profile_ready" gorm:"default:false"`

	ScanCount int64           `json:"scan_count" gorm:"default:0"`
	TotalCost decimal.Decimal `json:"total_cost" gorm:"type:decimal(14,6);default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	ScanRecords []ScanRecord `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
