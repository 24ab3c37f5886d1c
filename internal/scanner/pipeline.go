package scanner

import (
	"context"
	"fmt"
	"log"

	"labelcheck/internal/catalog"
	"labelcheck/internal/inference"
	"labelcheck/internal/ledger"
	"labelcheck/internal/models"
)

// Outcome is the terminal state of one scan.
type Outcome string

const (
	// OutcomeRejected means the photo does not show a product. A valid
	// negative classification, not an error.
	OutcomeRejected Outcome = "rejected"
	// OutcomeResolved means a product was resolved and analyzed.
	OutcomeResolved Outcome = "resolved"
	// OutcomeFailed means the scan aborted before resolving a product.
	OutcomeFailed Outcome = "failed"
)

// Result is what one scan produced. Compatibility is nil when the
// compatibility call failed and the scan degraded to an ingredient-only
// result.
type Result struct {
	Outcome         Outcome
	RejectionReason string
	Product         *models.Product
	CacheHit        bool
	Compatibility   *models.CompatibilityResult
	Usage           inference.Usage
}

// Asker is the gateway capability the pipeline consumes.
type Asker interface {
	Ask(ctx context.Context, req inference.Request, out any) (inference.Usage, error)
}

// Options carries the per-call-site models and the output ceiling.
type Options struct {
	ExtractModel    string
	AnalysisModel   string
	MaxOutputTokens int64
}

// Pipeline orchestrates one scan: cheap extraction, store probe, deep
// analysis on a miss, always-fresh compatibility scoring, ledger entry.
type Pipeline struct {
	gateway Asker
	store   *catalog.Store
	ledger  *ledger.Ledger
	opts    Options
}

// NewPipeline wires the analysis pipeline.
func NewPipeline(gateway Asker, store *catalog.Store, ldg *ledger.Ledger, opts Options) *Pipeline {
	return &Pipeline{gateway: gateway, store: store, ledger: ldg, opts: opts}
}

type extractionResponse struct {
	IsProduct       bool   `json:"is_product"`
	RejectionReason string `json:"rejection_reason"`
	ProductName     string `json:"product_name"`
	Brand           string `json:"brand"`
}

type deepAnalysisResponse struct {
	IsProduct       bool                 `json:"is_product"`
	RejectionReason string               `json:"rejection_reason"`
	ProductName     string               `json:"product_name"`
	Brand           string               `json:"brand"`
	HealthScore     int                  `json:"health_score"`
	Ingredients     models.IngredientSet `json:"ingredients"`
}

// Scan runs the full pipeline for one photo. A non-nil Result is always
// returned; err is non-nil only for OutcomeFailed. Rejected and Failed scans
// touch neither the product store nor the ledger.
func (p *Pipeline) Scan(ctx context.Context, userID uint, image []byte, mime string, profile models.HealthProfile) (*Result, error) {
	result := &Result{}

	// Step 1: cheap extraction, no search tool.
	var extracted extractionResponse
	usage, err := p.gateway.Ask(ctx, inference.Request{
		System:      extractionSystem,
		Prompt:      extractionPrompt,
		Image:       image,
		ImageMIME:   mime,
		Model:       p.opts.ExtractModel,
		Temperature: 0.2,
		MaxTokens:   p.opts.MaxOutputTokens,
	}, &extracted)
	result.Usage = result.Usage.Add(usage)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("extraction: %w", err)
	}
	if !extracted.IsProduct {
		result.Outcome = OutcomeRejected
		result.RejectionReason = extracted.RejectionReason
		return result, nil
	}

	// Step 2: fuzzy probe on the extracted identity.
	product, err := p.store.FindFuzzy(extracted.ProductName, extracted.Brand)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, fmt.Errorf("store probe: %w", err)
	}

	if product != nil {
		result.CacheHit = true
	} else {
		// Step 3: deep analysis with web search, then resolve-or-create.
		var deep deepAnalysisResponse
		usage, err := p.gateway.Ask(ctx, inference.Request{
			System:       deepAnalysisSystem,
			Prompt:       deepAnalysisPrompt,
			Image:        image,
			ImageMIME:    mime,
			Model:        p.opts.AnalysisModel,
			Temperature:  0.2,
			MaxTokens:    p.opts.MaxOutputTokens,
			EnableSearch: true,
		}, &deep)
		result.Usage = result.Usage.Add(usage)
		if err != nil {
			result.Outcome = OutcomeFailed
			return result, fmt.Errorf("deep analysis: %w", err)
		}
		if !deep.IsProduct {
			result.Outcome = OutcomeRejected
			result.RejectionReason = deep.RejectionReason
			return result, nil
		}

		score := clampScore(deep.HealthScore)
		candidate := &models.Product{
			Name:        pickName(deep.ProductName, extracted.ProductName),
			Brand:       pickName(deep.Brand, extracted.Brand),
			HealthScore: &score,
			Ingredients: deep.Ingredients,
			Source:      "deep_analysis",
		}
		resolved, created, err := p.store.ResolveOrCreate(candidate)
		if err != nil {
			result.Outcome = OutcomeFailed
			return result, fmt.Errorf("persist product: %w", err)
		}
		product = resolved
		// A lost create race counts as a hit: the other scan's record is
		// reused and this one analyzed for nothing but stays consistent.
		result.CacheHit = !created
	}
	result.Product = product

	// Step 4: compatibility, always fresh. Failure degrades the response
	// instead of aborting it.
	var compat models.CompatibilityResult
	usage, err = p.gateway.Ask(ctx, inference.Request{
		System:      compatibilitySystem,
		Prompt:      compatibilityPrompt(product, profile),
		Model:       p.opts.ExtractModel,
		Temperature: 0.2,
		MaxTokens:   p.opts.MaxOutputTokens,
	}, &compat)
	result.Usage = result.Usage.Add(usage)
	switch {
	case err != nil:
		log.Printf("scanner: compatibility call failed, returning ingredient-only result: %v", err)
	case !compat.Level.Valid():
		log.Printf("scanner: compatibility returned unknown level %q, omitting", compat.Level)
	default:
		result.Compatibility = &compat
	}

	result.Outcome = OutcomeResolved

	// Step 5: record. A ledger failure must not withhold the analysis the
	// user already paid inference cost for.
	if err := p.ledger.Append(p.buildRecord(userID, result)); err != nil {
		log.Printf("scanner: ledger append failed for user %d: %v", userID, err)
	}
	return result, nil
}

func (p *Pipeline) buildRecord(userID uint, result *Result) *models.ScanRecord {
	record := &models.ScanRecord{
		UserID:         userID,
		CacheHit:       result.CacheHit,
		PromptTokens:   result.Usage.PromptTokens,
		OutputTokens:   result.Usage.OutputTokens,
		ThoughtTokens:  result.Usage.ThoughtTokens,
		TotalTokens:    result.Usage.TotalTokens,
		SearchRequests: result.Usage.SearchRequests,
		Cost:           result.Usage.RoundedCost(),
	}
	if result.Product != nil {
		id := result.Product.ID
		record.ProductID = &id
	}
	if result.Compatibility != nil {
		level := string(result.Compatibility.Level)
		record.CompatibilityLevel = &level
		record.CompatibilityReason = result.Compatibility.Reason
	}
	return record
}

// ExtractProfile converts the five free-text onboarding answers into health
// profile tag sets with one cheap call.
func (p *Pipeline) ExtractProfile(ctx context.Context, answers []string) (models.HealthProfile, inference.Usage, error) {
	var profile models.HealthProfile
	usage, err := p.gateway.Ask(ctx, inference.Request{
		System:      profileSystem,
		Prompt:      profilePrompt(answers),
		Model:       p.opts.ExtractModel,
		Temperature: 0,
		MaxTokens:   p.opts.MaxOutputTokens,
	}, &profile)
	if err != nil {
		return models.HealthProfile{}, usage, fmt.Errorf("profile extraction: %w", err)
	}
	return profile, usage, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func pickName(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}
