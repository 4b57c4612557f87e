package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bensky103/SalaDBot/internal/catalog"
	"github.com/bensky103/SalaDBot/internal/query"
)

// Result tags the generator is trained on. Exhausted and no-match get
// distinct tags so the model never blurs "you saw everything" with
// "nothing exists".
const (
	allShownResult = "[ALL_DISHES_SHOWN] כל המנות בקטגוריה זו כבר הוצגו."
	noMatchResult  = "[NO_RESULTS] לא נמצאו מנות התואמות את הקריטריונים."
)

// formatResult renders a classified catalog result as the tool response
// handed to the generator. Browse turns get the minimal [B] listing;
// detail turns get [D] with allergens, availability and ingredients.
func formatResult(res query.Result, includeDetails bool) string {
	switch res.Outcome {
	case query.OutcomeExhausted:
		return allShownResult
	case query.OutcomeNoMatch:
		return noMatchResult
	}

	// A single dish in detail mode gets the long natural format. Feeding
	// the model one clearly laid out dish prevents it from mixing fields
	// across dishes.
	if includeDetails && len(res.Items) == 1 {
		return formatSingleDetail(res.Items[0])
	}

	var lines []string
	if includeDetails {
		lines = append(lines, "[D] Full details\n")
	} else {
		lines = append(lines, "[B] Name, price, package only\n")
	}

	for i, item := range res.Items {
		var parts []string
		if len(res.Items) > 1 {
			parts = append(parts, fmt.Sprintf("[DISH #%d]", i+1))
		}
		parts = append(parts, item.Name)

		var prices []string
		if item.PricePer100g > 0 {
			prices = append(prices, formatPrice(item.PricePer100g)+"₪/100g")
		}
		if item.PricePerUnit > 0 {
			prices = append(prices, formatPrice(item.PricePerUnit)+"₪/יח")
		}
		if len(prices) > 0 {
			parts = append(parts, strings.Join(prices, " "))
		}
		if item.PackageType != "" {
			parts = append(parts, "📦"+item.PackageType)
		}

		if includeDetails {
			var flags []string
			if item.IsVegan {
				flags = append(flags, "🌱")
			}
			if item.IsGlutenFree {
				flags = append(flags, "ללא גלוטן")
			}
			if len(flags) > 0 {
				parts = append(parts, strings.Join(flags, " "))
			}

			var allergens []string
			if item.AllergensContains != "" {
				allergens = append(allergens, "⚠️"+item.AllergensContains)
			}
			if item.AllergensTraces != "" {
				allergens = append(allergens, "⚠️עקבות:"+item.AllergensTraces)
			}
			if len(allergens) > 0 {
				parts = append(parts, strings.Join(allergens, " "))
			}

			if item.AvailabilityDays != "" {
				parts = append(parts, "📅"+item.AvailabilityDays)
			}
			if item.Description != "" {
				parts = append(parts, item.Description)
			}
		}

		line := strings.Join(parts, " | ")
		if len(res.Items) > 1 {
			line = "--- " + line + " ---"
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n\n")
}

func formatSingleDetail(item catalog.Item) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("=== %s ===\n", item.Name))

	if item.PricePer100g > 0 {
		parts = append(parts, fmt.Sprintf("💰 מחיר: %s₪ ל-100 גרם", formatPrice(item.PricePer100g)))
	}
	if item.PricePerUnit > 0 {
		parts = append(parts, fmt.Sprintf("💰 מחיר: %s₪ ליחידה", formatPrice(item.PricePerUnit)))
	}
	if item.PackageType != "" {
		parts = append(parts, "📦 אריזה: "+item.PackageType)
	}
	if item.Description != "" {
		parts = append(parts, "\n🥘 "+item.Description)
	}
	if item.AllergensContains != "" {
		parts = append(parts, "\n⚠️ מכילה: "+item.AllergensContains)
	}
	if item.AllergensTraces != "" {
		parts = append(parts, "⚠️ עלולה להכיל עקבות של: "+item.AllergensTraces)
	}
	if item.AvailabilityDays != "" {
		parts = append(parts, "\n📅 זמינות: "+item.AvailabilityDays)
	}

	return strings.Join(parts, "\n")
}

// formatPrice renders shekel amounts without trailing zeros (9, 9.5).
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// menuLookup pairs a per-dish search with its classified result, for
// the multi-dish pre-formatting path.
type menuLookup struct {
	searchTerm string
	result     query.Result
}

// formatDishFacts builds the reply for "what are the ingredients /
// allergens of X and Y" directly from catalog fields, skipping the
// generator. ok is false when the question is not an ingredient or
// allergen comparison, or when no dish resolved.
func formatDishFacts(userText string, lookups []menuLookup) (string, bool) {
	askingAllergens := strings.Contains(userText, "אלרגן") || strings.Contains(userText, "אלרג")
	askingIngredients := strings.Contains(userText, "רכיבים") || strings.Contains(userText, "מרכיבים")
	if !askingAllergens && !askingIngredients {
		return "", false
	}

	var parts []string
	for _, l := range lookups {
		if l.result.Outcome != query.OutcomeItems || len(l.result.Items) == 0 {
			continue
		}
		item := l.result.Items[0]

		if askingAllergens {
			var lines []string
			if item.AllergensContains != "" {
				lines = append(lines, "מכילה: "+item.AllergensContains)
			}
			if item.AllergensTraces != "" {
				lines = append(lines, "עלולה להכיל עקבות של: "+item.AllergensTraces)
			}
			if len(lines) > 0 {
				parts = append(parts, item.Name+"\n"+strings.Join(lines, "\n"))
			}
		} else if item.Description != "" {
			parts = append(parts, item.Name+" מכילה: "+item.Description)
		}
	}

	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n"), true
}
