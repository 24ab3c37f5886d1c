package catalog

import (
	"fmt"
	"log"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"labelcheck/internal/models"
)

// Store resolves product identity and persists canonical product records.
// Creation is serialized per normalized key so that two scans racing on the
// same never-before-seen product converge on a single record.
type Store struct {
	db        *gorm.DB
	threshold float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a product store. threshold is the minimum normalized
// levenshtein similarity for a fuzzy match to be accepted.
func NewStore(db *gorm.DB, threshold float64) *Store {
	return &Store{
		db:        db,
		threshold: threshold,
		locks:     map[string]*sync.Mutex{},
	}
}

// keyLock returns the mutex guarding creation for one normalized key.
func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// FindExact looks a product up by case-/whitespace-normalized equality on
// both name and brand.
func (s *Store) FindExact(name, brand string) (*models.Product, error) {
	normName := normalizeField(name)
	normBrand := normalizeField(brand)
	if normName == "" && normBrand == "" {
		return nil, nil
	}

	var product models.Product
	err := s.db.Where("norm_name = ? AND norm_brand = ?", normName, normBrand).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	return &product, nil
}

// FindFuzzy scores the normalized query key against every stored match key
// and returns the best candidate, but only if it clears the acceptance
// threshold. The threshold is tuned tight: a false negative costs one deep
// analysis, a false positive returns the wrong product's ingredients.
func (s *Store) FindFuzzy(name, brand string) (*models.Product, error) {
	key := NormalizeKey(brand, name)
	if key == "" {
		return nil, nil
	}

	type candidate struct {
		ID       string
		MatchKey string
	}
	var candidates []candidate
	if err := s.db.Model(&models.Product{}).Select("id", "match_key").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("fuzzy scan: %w", err)
	}

	bestID := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := similarity(key, c.MatchKey)
		if score > bestScore {
			bestScore = score
			bestID = c.ID
		}
	}
	if bestID == "" || bestScore < s.threshold {
		return nil, nil
	}

	var product models.Product
	if err := s.db.First(&product, "id = ?", bestID).Error; err != nil {
		return nil, fmt.Errorf("fuzzy load: %w", err)
	}
	log.Printf("catalog: fuzzy match %q -> %q (score %.3f)", key, product.MatchKey, bestScore)
	return &product, nil
}

// Create persists a new product record with a fresh id and the derived
// matching columns. Existing records are never overwritten.
func (s *Store) Create(product *models.Product) error {
	product.ID = uuid.New().String()
	product.NormName = normalizeField(product.Name)
	product.NormBrand = normalizeField(product.Brand)
	product.MatchKey = NormalizeKey(product.Brand, product.Name)
	if err := s.db.Create(product).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// ResolveOrCreate runs build's result through the exact-match recheck under
// the per-key creation lock: if a concurrent scan already committed a record
// for the same item, that record is reused and created is false.
func (s *Store) ResolveOrCreate(product *models.Product) (*models.Product, bool, error) {
	key := NormalizeKey(product.Brand, product.Name)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.FindExact(product.Name, product.Brand)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if err := s.Create(product); err != nil {
		return nil, false, err
	}
	return product, true, nil
}

// All returns every stored product, newest first.
func (s *Store) All() ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// similarity is 1 - levenshtein/maxlen over two keys, in [0,1].
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1 - float64(dist)/float64(maxLen)
}
