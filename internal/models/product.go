package models

import (
	"time"
)

// Ingredient is a single classified ingredient. Immutable once produced by
// deep analysis.
type Ingredient struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IngredientSet groups ingredients by verdict. Order within each list follows
// model output order and carries no meaning.
type IngredientSet struct {
	Good []Ingredient `json:"good"`
	Okay []Ingredient `json:"okay"`
	Bad  []Ingredient `json:"bad"`
}

// Empty reports whether the set holds no ingredients at all.
func (s IngredientSet) Empty() bool {
	return len(s.Good) == 0 && len(s.Okay) == 0 && len(s.Bad) == 0
}

// Product is the canonical, deduplicated product record. It is created exactly
// once, on the first successful deep analysis, and never mutated afterward:
// cache hits reuse the stored record verbatim.
type Product struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	Name        string        `json:"product_name" gorm:"size:255"`
	Brand       string        `json:"brand" gorm:"size:255"`
	NormName    string        `json:"-" gorm:"size:255;index:idx_products_exact"`
	NormBrand   string        `json:"-" gorm:"size:255;index:idx_products_exact"`
	MatchKey    string        `json:"-" gorm:"size:512;index"`
	HealthScore *int          `json:"health_score"`
	Ingredients IngredientSet `json:"ingredients" gorm:"type:text;serializer:json"`
	Source      string        `json:"source" gorm:"size:50"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// CompatibilityLevel is the personalized verdict for one (product, profile)
// pair. Never stored on the product.
type CompatibilityLevel string

const (
	CompatibilityVeryHigh CompatibilityLevel = "VERY_HIGH"
	CompatibilityHigh     CompatibilityLevel = "HIGH"
	CompatibilityMedium   CompatibilityLevel = "MEDIUM"
	CompatibilityLow      CompatibilityLevel = "LOW"
	CompatibilityNone     CompatibilityLevel = "NONE"
)

// Valid reports whether the level is one of the known enum values.
func (l CompatibilityLevel) Valid() bool {
	switch l {
	case CompatibilityVeryHigh, CompatibilityHigh, CompatibilityMedium, CompatibilityLow, CompatibilityNone:
		return true
	}
	return false
}

// CompatibilityResult is recomputed on every scan against the caller's
// current health profile.
type CompatibilityResult struct {
	Level  CompatibilityLevel `json:"compatibility_level"`
	Reason string             `json:"reason"`
}
