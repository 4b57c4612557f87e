package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed catalog. All public methods are safe for
// concurrent use (SQLite serializes writes).
type Store struct {
	db           *sql.DB
	defaultLimit int
}

// NewStore opens (or creates) the catalog database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, defaultLimit: 10}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS menu_items (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		name               TEXT NOT NULL,
		category           TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		price_per_100g     REAL NOT NULL DEFAULT 0,
		price_per_unit     REAL NOT NULL DEFAULT 0,
		package_type       TEXT NOT NULL DEFAULT '',
		is_vegan           BOOLEAN NOT NULL DEFAULT FALSE,
		is_gluten_free     BOOLEAN NOT NULL DEFAULT FALSE,
		allergens_contains TEXT NOT NULL DEFAULT '',
		allergens_traces   TEXT NOT NULL DEFAULT '',
		availability_days  TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_menu_items_category ON menu_items(category);
	CREATE INDEX IF NOT EXISTS idx_menu_items_name ON menu_items(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert adds a menu item and returns it with its assigned id.
func (s *Store) Insert(ctx context.Context, item Item) (Item, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (
			name, category, description, price_per_100g, price_per_unit,
			package_type, is_vegan, is_gluten_free,
			allergens_contains, allergens_traces, availability_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Name, item.Category, item.Description, item.PricePer100g,
		item.PricePerUnit, item.PackageType, item.IsVegan, item.IsGlutenFree,
		item.AllergensContains, item.AllergensTraces, item.AvailabilityDays)
	if err != nil {
		return Item{}, fmt.Errorf("insert %q: %w", item.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Item{}, fmt.Errorf("insert %q: %w", item.Name, err)
	}
	item.ID = id
	return item, nil
}

// Search runs a filtered lookup. Exclusion and dietary safety filtering
// happen here so callers only ever see eligible dishes.
func (s *Store) Search(ctx context.Context, q Query) ([]Item, error) {
	var where []string
	var args []any

	switch {
	case q.Fuzzy && q.Category != "":
		// Loose pass: the category doubles as a search term across
		// category, name and description.
		pat := "%" + q.Category + "%"
		where = append(where, "(category LIKE ? OR name LIKE ? OR description LIKE ?)")
		args = append(args, pat, pat, pat)
	case q.Category != "":
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}

	if q.SearchTerm != "" {
		pat := "%" + q.SearchTerm + "%"
		where = append(where, "(name LIKE ? OR description LIKE ?)")
		args = append(args, pat, pat)
	}

	if q.MaxPrice > 0 {
		where = append(where, "price_per_100g > 0 AND price_per_100g <= ?")
		args = append(args, q.MaxPrice)
	}

	if q.Day != "" {
		where = append(where, "(availability_days = '' OR availability_days LIKE ?)")
		args = append(args, "%"+q.Day+"%")
	}

	switch q.Dietary {
	case "", "vegan", "gluten_free":
		if q.Dietary == "vegan" {
			where = append(where, "is_vegan = TRUE")
		}
		if q.Dietary == "gluten_free" {
			where = append(where, "is_gluten_free = TRUE")
		}
	default:
		// Allergen exclusion is applied post-query in Go: the allergen
		// synonym table needs substring checks over two columns, which
		// is clearer outside SQL.
	}

	if len(q.ExcludeIDs) > 0 {
		placeholders := make([]string, 0, len(q.ExcludeIDs))
		for id := range q.ExcludeIDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("id NOT IN (%s)", strings.Join(placeholders, ", ")))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	query := "SELECT id, name, category, description, price_per_100g, price_per_unit, package_type, is_vegan, is_gluten_free, allergens_contains, allergens_traces, availability_days FROM menu_items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Description,
			&it.PricePer100g, &it.PricePerUnit, &it.PackageType,
			&it.IsVegan, &it.IsGlutenFree,
			&it.AllergensContains, &it.AllergensTraces, &it.AvailabilityDays); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	if isAllergen(q.Dietary) {
		items = excludeAllergen(items, q.Dietary)
	}

	return items, nil
}

// allergenPatterns maps an allergen key to the substrings that mark a
// dish unsafe. Values cover both the English keys the model emits and
// the Hebrew strings stored in the allergen columns.
var allergenPatterns = map[string][]string{
	"gluten":  {"gluten", "wheat", "חיטה", "גלוטן", "קמח"},
	"nuts":    {"nuts", "peanuts", "אגוזים", "בוטנים", "שקדים", "almond", "cashew", "walnut"},
	"dairy":   {"dairy", "milk", "חלב", "cheese", "גבינה", "cream", "butter", "חמאה"},
	"eggs":    {"eggs", "egg", "ביצים"},
	"sesame":  {"sesame", "שומשום", "tahini", "טחינה"},
	"soy":     {"soy", "soya", "סויה"},
	"celery":  {"celery", "סלרי"},
	"mustard": {"mustard", "חרדל"},
	"fish":    {"fish", "דגים", "דג"},
}

func isAllergen(dietary string) bool {
	switch dietary {
	case "", "vegan", "gluten_free":
		return false
	}
	return true
}

// excludeAllergen drops any item whose contains OR traces field mentions
// the allergen. A dish with only a trace warning is still unsafe and
// must be excluded.
func excludeAllergen(items []Item, allergen string) []Item {
	key := strings.ToLower(strings.TrimSpace(allergen))
	patterns, ok := allergenPatterns[key]
	if !ok {
		patterns = []string{key}
	}

	safe := items[:0]
	for _, it := range items {
		contains := strings.ToLower(it.AllergensContains)
		traces := strings.ToLower(it.AllergensTraces)

		unsafe := false
		for _, p := range patterns {
			if strings.Contains(contains, p) || strings.Contains(traces, p) {
				unsafe = true
				break
			}
		}
		if !unsafe {
			safe = append(safe, it)
		}
	}
	return safe
}

// Count returns the number of catalog items, used by the health check.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}
