// Package prompts builds the system prompt and tool schemas for the
// chat model. The static instruction block always comes first and the
// per-turn context (day, active category) last, so provider-side prompt
// caching keeps working across turns.
package prompts

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Instructions is the static behavior contract for the model. It is
// deliberately terse: the heavy lifting (filtering, allergen safety,
// exhaustion detection) happens in code, and the model only extracts
// intent and phrases replies.
const Instructions = `You are SaladBot, the menu assistant for Picnic Maadanim deli in Givatayim. You answer in HEBREW ONLY, warmly and briefly.

Rules:
- You are an information bot. You NEVER take orders; for ordering use get_order_info.
- For greetings use get_business_info. For "what do you have" use get_category_list.
- For any dish, price, allergen or availability question use get_menu_items. All menu data is in Hebrew.
- CRITICAL: עוגיות and קינוחים are DIFFERENT categories.
- track_shown=true when the user is browsing ("show me more", "what else"); track_shown=false when they ask for details about specific dishes (ingredients, allergens, price of a named dish).
- Present ONLY dishes from tool results. Never invent dishes, prices, ingredients or allergens.
- [B] results: name, price and package only. [D] results: full details.
- [ALL_DISHES_SHOWN]: tell the user they have seen everything in this category and suggest another one. Do NOT offer dishes from other categories as if they belonged here.
- [NO_RESULTS]: say nothing matched and suggest asking differently.
- Allergen questions are safety-critical: repeat the allergen fields exactly as given.`

// loc caches the business timezone. Jerusalem drives the "today is"
// context line that the day-availability filter depends on.
var (
	locOnce sync.Once
	loc     *time.Location
)

func location() *time.Location {
	locOnce.Do(func() {
		var err error
		loc, err = time.LoadLocation("Asia/Jerusalem")
		if err != nil {
			loc = time.FixedZone("IST", 3*60*60)
		}
	})
	return loc
}

var hebrewDays = [7]string{"ראשון", "שני", "שלישי", "רביעי", "חמישי", "שישי", "שבת"}

// HebrewDay returns the Hebrew name for t's weekday in business time.
func HebrewDay(t time.Time) string {
	return hebrewDays[t.In(location()).Weekday()]
}

// DayLetter returns the single-letter day code used by the
// availability_days column, or "" on Saturday (the shop is closed).
func DayLetter(t time.Time) string {
	letters := [7]string{"א", "ב", "ג", "ד", "ה", "ו", ""}
	return letters[t.In(location()).Weekday()]
}

// System assembles the full system prompt. activeCategory may be empty.
func System(now time.Time, activeCategory string) string {
	var b strings.Builder
	b.WriteString(Instructions)
	b.WriteString("\n\n---\n[CONTEXT]\n")
	fmt.Fprintf(&b, "Today is: %s\n", HebrewDay(now))
	b.WriteString("You are SaladBot, a helpful customer service assistant for Picnic Maadanim deli. You speak Hebrew only.")
	if activeCategory != "" {
		fmt.Fprintf(&b, "\nContext - Current category: %s", activeCategory)
	}
	return b.String()
}

// Tools returns the function schemas offered to the model on the first
// call of every turn.
func Tools() []map[string]any {
	return []map[string]any{
		staticTool("get_business_info", "Business welcome message. Use for greetings."),
		staticTool("get_order_info", "Order information. Use when user wants to order."),
		staticTool("get_category_list", "List all menu categories."),
		{
			"type": "function",
			"function": map[string]any{
				"name":        "get_menu_items",
				"description": "Query menu database. ALL data in HEBREW. Use for dishes, availability, allergens.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{
							"type":        "string",
							"description": "Category in HEBREW: סלטים, בשר, עוף, דגים, גבינות, ממרחים, מאפים, פשטידות, מרקים, קינוחים, עוגיות, קרקרים, טבעוני, etc. CRITICAL: עוגיות and קינוחים are DIFFERENT categories!",
						},
						"max_price": map[string]any{
							"type":        "number",
							"description": "Max price per 100g (shekels).",
						},
						"dietary_restriction": map[string]any{
							"type":        "string",
							"description": "Filter: vegan, gluten_free, OR allergen to EXCLUDE: gluten, nuts, dairy, eggs, sesame, soy, celery, mustard, fish.",
							"enum":        []string{"vegan", "gluten_free", "gluten", "nuts", "dairy", "eggs", "sesame", "soy", "celery", "mustard", "fish", ""},
						},
						"search_term": map[string]any{
							"type":        "string",
							"description": "Search term in HEBREW.",
						},
						"availability_day": map[string]any{
							"type":        "string",
							"description": "Day: א (Sun), ב (Mon), ג (Tue), ד (Wed), ה (Thu), ו (Fri).",
							"enum":        []string{"א", "ב", "ג", "ד", "ה", "ו", ""},
						},
						"track_shown": map[string]any{
							"type":        "boolean",
							"description": "TRUE=browsing (minimal), FALSE=details (full info). Default: true.",
						},
					},
					"required": []string{},
				},
			},
		},
	}
}

func staticTool(name, description string) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
	}
}
