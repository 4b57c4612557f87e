// Package intent defines the closed set of intents the bot handles.
// The language model extracts them via function calling; this package
// converts the loosely-typed tool arguments into typed values so the
// rest of the pipeline never touches map[string]any.
package intent

import "fmt"

// Kind identifies an intent variant.
type Kind int

const (
	// KindGreeting is a greeting / business-info request. Resets
	// browsing state.
	KindGreeting Kind = iota

	// KindOrderInfo redirects the user to the ordering site.
	KindOrderInfo

	// KindCategoryList asks for the menu category overview. Resets
	// browsing state.
	KindCategoryList

	// KindMenuQuery is a catalog lookup (browse or detail).
	KindMenuQuery
)

// Tool names as exposed to the model.
const (
	ToolBusinessInfo = "get_business_info"
	ToolOrderInfo    = "get_order_info"
	ToolCategoryList = "get_category_list"
	ToolMenuItems    = "get_menu_items"
)

func (k Kind) String() string {
	switch k {
	case KindGreeting:
		return "greeting"
	case KindOrderInfo:
		return "order_info"
	case KindCategoryList:
		return "category_list"
	case KindMenuQuery:
		return "menu_query"
	default:
		return "unknown"
	}
}

// MenuArgs are the extracted arguments of a menu query.
type MenuArgs struct {
	// Category in Hebrew (e.g. קינוחים). Empty when the user did not
	// name one this turn.
	Category string
	// SearchTerm is a specific dish or ingredient lookup. A turn with a
	// search term is never narrowed by stored category context.
	SearchTerm string
	// MaxPrice filters by price per 100g in shekels. Zero means no
	// filter.
	MaxPrice float64
	// Dietary is vegan, gluten_free, or an allergen to exclude.
	Dietary string
	// Day is a Hebrew day letter (א..ו) filtering availability.
	Day string
	// TrackShown is true for browsing turns (results join the shown
	// set) and false for detail/ingredient/allergen lookups. Defaults
	// to true when the model omits the field; callers that want the
	// opposite default use TrackShownOr.
	TrackShown bool

	trackShownSet bool
}

// TrackShownOr returns the extracted track_shown value, or def when the
// model omitted the field. Single browsing calls default to tracking;
// multi-call detail turns default the other way, so the caller picks.
func (m MenuArgs) TrackShownOr(def bool) bool {
	if m.trackShownSet {
		return m.TrackShown
	}
	return def
}

// Intent is one extracted intent. Menu holds arguments only for
// KindMenuQuery.
type Intent struct {
	Kind Kind
	Menu MenuArgs
}

// FromToolCall maps a tool name and its decoded JSON arguments to a
// typed Intent. Unknown tool names are an error; the model is
// constrained to the four registered tools, so hitting this means the
// schema and this table drifted apart.
func FromToolCall(name string, args map[string]any) (Intent, error) {
	switch name {
	case ToolBusinessInfo:
		return Intent{Kind: KindGreeting}, nil
	case ToolOrderInfo:
		return Intent{Kind: KindOrderInfo}, nil
	case ToolCategoryList:
		return Intent{Kind: KindCategoryList}, nil
	case ToolMenuItems:
		return Intent{Kind: KindMenuQuery, Menu: decodeMenuArgs(args)}, nil
	default:
		return Intent{}, fmt.Errorf("unknown tool %q", name)
	}
}

// decodeMenuArgs pulls typed fields out of the model's argument map.
// Absent or mistyped fields fall back to zero values; track_shown
// defaults to true because browsing is the common case.
func decodeMenuArgs(args map[string]any) MenuArgs {
	m := MenuArgs{TrackShown: true}
	if args == nil {
		return m
	}

	m.Category = stringArg(args, "category")
	m.SearchTerm = stringArg(args, "search_term")
	m.Dietary = stringArg(args, "dietary_restriction")
	m.Day = stringArg(args, "availability_day")

	if v, ok := args["max_price"]; ok {
		switch n := v.(type) {
		case float64:
			m.MaxPrice = n
		case int:
			m.MaxPrice = float64(n)
		}
	}
	if v, ok := args["track_shown"].(bool); ok {
		m.TrackShown = v
		m.trackShownSet = true
	}
	return m
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
