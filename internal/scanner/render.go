package scanner

import (
	"fmt"
	"strings"

	"labelcheck/internal/models"
)

// RenderResult formats a scan result as a chat reply. Markup and emoji are
// presentation only; nothing here feeds back into the pipeline.
func RenderResult(result *Result) string {
	switch result.Outcome {
	case OutcomeRejected:
		reason := result.RejectionReason
		if reason == "" {
			reason = "I couldn't find a packaged product in this photo."
		}
		return "🚫 " + reason + "\n\nSend a photo of a packaged product and I'll break down its ingredients."
	case OutcomeFailed:
		return "⚠️ Something went wrong analyzing that photo. Please try again with a clearer picture of the product."
	}

	var b strings.Builder
	product := result.Product

	title := product.Name
	if product.Brand != "" && !strings.EqualFold(product.Brand, product.Name) {
		title = product.Brand + " " + product.Name
	}
	fmt.Fprintf(&b, "*%s*\n", title)
	if product.HealthScore != nil {
		fmt.Fprintf(&b, "Health score: %d/100\n", *product.HealthScore)
	}

	renderSection(&b, "✅ Good", product.Ingredients.Good)
	renderSection(&b, "😐 Okay", product.Ingredients.Okay)
	renderSection(&b, "❌ Bad", product.Ingredients.Bad)

	if result.Compatibility != nil {
		fmt.Fprintf(&b, "\n*Compatibility with your profile: %s*\n%s\n",
			compatLabel(result.Compatibility.Level), result.Compatibility.Reason)
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderSection(b *strings.Builder, header string, list []models.Ingredient) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s*\n", header)
	for _, ing := range list {
		if ing.Reason != "" {
			fmt.Fprintf(b, "• %s — %s\n", ing.Name, ing.Reason)
		} else {
			fmt.Fprintf(b, "• %s\n", ing.Name)
		}
	}
}

func compatLabel(level models.CompatibilityLevel) string {
	switch level {
	case models.CompatibilityVeryHigh:
		return "Very high"
	case models.CompatibilityHigh:
		return "High"
	case models.CompatibilityMedium:
		return "Medium"
	case models.CompatibilityLow:
		return "Low"
	case models.CompatibilityNone:
		return "None"
	}
	return string(level)
}
