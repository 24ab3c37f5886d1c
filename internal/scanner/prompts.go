package scanner

import (
	"fmt"
	"strings"

	"labelcheck/internal/models"
)

const extractionSystem = "You identify packaged products from photos. Answer in JSON only."

const extractionPrompt = `Look at this photo. Decide whether it shows a packaged consumer product (food, drink, cosmetics, household).

Output ONLY a valid JSON object matching this exact schema:
{
  "is_product": <true|false>,
  "rejection_reason": "<why this is not a usable product photo, empty if is_product>",
  "product_name": "<product name as printed on the packaging, empty if unreadable>",
  "brand": "<brand name, empty if unreadable>"
}

Rules:
- Do not guess a name you cannot read; leave it empty instead
- Output ONLY the JSON, no markdown, no explanations`

const deepAnalysisSystem = "You are a consumer product ingredient analyst. Answer in JSON only."

const deepAnalysisPrompt = `Analyze the packaged product in this photo. Use web search to find its full ingredient list if the label is not fully readable.

Output ONLY a valid JSON object matching this exact schema:
{
  "is_product": <true|false>,
  "rejection_reason": "<why this is not a usable product photo, empty if is_product>",
  "product_name": "<canonical product name>",
  "brand": "<brand name>",
  "health_score": <integer 0-100, overall healthiness of the product>,
  "ingredients": {
    "good": [{"name": "<ingredient>", "reason": "<one short sentence>"}],
    "okay": [{"name": "<ingredient>", "reason": "<one short sentence>"}],
    "bad": [{"name": "<ingredient>", "reason": "<one short sentence>"}]
  }
}

Rules:
- Classify every identifiable ingredient into exactly one of good/okay/bad
- Keep reasons to one short sentence each
- Output ONLY the JSON, no markdown, no explanations`

const compatibilitySystem = "You score how compatible a product is with one person's health profile. Answer in JSON only."

func compatibilityPrompt(product *models.Product, profile models.HealthProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s", product.Name)
	if product.Brand != "" {
		fmt.Fprintf(&b, " (brand: %s)", product.Brand)
	}
	b.WriteString("\nIngredients:\n")
	writeIngredients(&b, "good", product.Ingredients.Good)
	writeIngredients(&b, "okay", product.Ingredients.Okay)
	writeIngredients(&b, "bad", product.Ingredients.Bad)

	b.WriteString("\nHealth profile:\n")
	writeTags(&b, "diet", profile.Diet)
	writeTags(&b, "food allergies", profile.FoodAllergies)
	writeTags(&b, "ingredient sensitivities", profile.IngredientSensitivities)
	writeTags(&b, "skin sensitivities", profile.SkinSensitivities)
	writeTags(&b, "health conditions", profile.HealthConditions)

	b.WriteString(`
Score the compatibility of this product with this person.

Output ONLY a valid JSON object matching this exact schema:
{
  "compatibility_level": "<VERY_HIGH|HIGH|MEDIUM|LOW|NONE>",
  "reason": "<two sentences at most, addressed to the person>"
}

Rules:
- An allergy or condition directly conflicting with an ingredient caps the level at LOW
- Output ONLY the JSON, no markdown, no explanations`)
	return b.String()
}

const profileSystem = "You turn free-text health questionnaire answers into short tags. Answer in JSON only."

func profilePrompt(answers []string) string {
	var b strings.Builder
	b.WriteString("Questionnaire answers:\n")
	labels := []string{"diet", "food allergies", "ingredient sensitivities", "skin sensitivities", "health conditions"}
	for i, label := range labels {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, answer)
	}

	b.WriteString(`
Convert each answer into a list of short lowercase tags. "none", "no", "-" and similar mean an empty list.

Output ONLY a valid JSON object matching this exact schema:
{
  "diet": ["<tag>"],
  "food_allergies": ["<tag>"],
  "ingredient_sensitivities": ["<tag>"],
  "skin_sensitivities": ["<tag>"],
  "health_conditions": ["<tag>"]
}

Rules:
- Tags are 1-3 words each, lowercase
- Output ONLY the JSON, no markdown, no explanations`)
	return b.String()
}

func writeIngredients(b *strings.Builder, label string, list []models.Ingredient) {
	if len(list) == 0 {
		return
	}
	names := make([]string, 0, len(list))
	for _, ing := range list {
		names = append(names, ing.Name)
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(names, ", "))
}

func writeTags(b *strings.Builder, label string, tags models.StringList) {
	if len(tags) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(tags, ", "))
}
