package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/bensky103/SalaDBot/internal/intent"
	"github.com/bensky103/SalaDBot/internal/session"
)

func newResolver(t *testing.T, ttl time.Duration) (*Resolver, *session.Store) {
	t.Helper()
	sessions := session.NewStore(nil, 25)
	return New(sessions, ttl, nil), sessions
}

func TestExplicitCategoryWins(t *testing.T) {
	r, sessions := newResolver(t, 10*time.Minute)
	sessions.SetLastCategory("u1", "סלטים")

	q, err := r.Resolve("u1", intent.MenuArgs{Category: "קינוחים", TrackShown: true})
	if err != nil {
		t.Fatal(err)
	}
	if q.Category != "קינוחים" {
		t.Errorf("Category = %q, want קינוחים (explicit wins over stored)", q.Category)
	}
	if q.SetCategory != "קינוחים" {
		t.Errorf("SetCategory = %q, want קינוחים", q.SetCategory)
	}
}

func TestSearchTermBypassesStoredContext(t *testing.T) {
	r, sessions := newResolver(t, 10*time.Minute)
	sessions.SetLastCategory("u1", "קינוחים") // still within TTL

	q, err := r.Resolve("u1", intent.MenuArgs{SearchTerm: "מרק ירקות"})
	if err != nil {
		t.Fatal(err)
	}
	if q.Category != "" {
		t.Errorf("Category = %q, want empty: search must scan the whole catalog", q.Category)
	}
	if q.SetCategory != "" {
		t.Error("search turn must not overwrite the stored category")
	}
}

func TestImplicitRestoresWithinTTL(t *testing.T) {
	r, sessions := newResolver(t, 10*time.Minute)
	sessions.SetLastCategory("u1", "קינוחים")

	q, err := r.Resolve("u1", intent.MenuArgs{TrackShown: true})
	if err != nil {
		t.Fatal(err)
	}
	if q.Category != "קינוחים" {
		t.Errorf("Category = %q, want restored קינוחים", q.Category)
	}
	if q.SetCategory != "" {
		t.Error("implicit restore must not refresh the category timestamp")
	}
}

func TestImplicitWithoutContextFails(t *testing.T) {
	r, _ := newResolver(t, 10*time.Minute)

	_, err := r.Resolve("u1", intent.MenuArgs{TrackShown: true})
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("err = %v, want ErrNoContext", err)
	}
}

func TestImplicitExpiredContextFails(t *testing.T) {
	// Zero TTL makes any stored category immediately stale.
	r, sessions := newResolver(t, 0)
	sessions.SetLastCategory("u1", "קינוחים")

	_, err := r.Resolve("u1", intent.MenuArgs{TrackShown: true})
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("err = %v, want ErrNoContext for expired context", err)
	}
}

func TestExclusionsOnlyForBrowsingTurns(t *testing.T) {
	r, sessions := newResolver(t, 10*time.Minute)
	sessions.AddShownIDs("u1", []int64{1, 2, 3})

	browse, err := r.Resolve("u1", intent.MenuArgs{Category: "קינוחים", TrackShown: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(browse.ExcludeIDs) != 3 {
		t.Errorf("browsing ExcludeIDs = %d, want 3", len(browse.ExcludeIDs))
	}

	detail, err := r.Resolve("u1", intent.MenuArgs{SearchTerm: "טירמיסו", TrackShown: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.ExcludeIDs) != 0 {
		t.Errorf("detail ExcludeIDs = %d, want 0 so shown dishes can re-surface", len(detail.ExcludeIDs))
	}
}

func TestFiltersForwarded(t *testing.T) {
	r, _ := newResolver(t, 10*time.Minute)

	q, err := r.Resolve("u1", intent.MenuArgs{
		Category:   "סלטים",
		MaxPrice:   12,
		Dietary:    "nuts",
		Day:        "ו",
		TrackShown: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.MaxPrice != 12 || q.Dietary != "nuts" || q.Day != "ו" {
		t.Errorf("filters not forwarded: %+v", q)
	}
	if !q.TrackShown {
		t.Error("TrackShown not forwarded")
	}
}
