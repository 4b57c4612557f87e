// Package query issues resolved catalog lookups and classifies the raw
// result into one of three unambiguous outcomes: fresh items, category
// exhausted, or no match at all. The distinction matters — telling a
// user "everything was already shown" when the category is empty, or
// padding an exhausted category with unrelated dishes, are exactly the
// failures this gate exists to prevent.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bensky103/SalaDBot/internal/catalog"
	"github.com/bensky103/SalaDBot/internal/resolver"
)

// Outcome classifies a turn's catalog result.
type Outcome int

const (
	// OutcomeItems means fresh dishes were found.
	OutcomeItems Outcome = iota

	// OutcomeExhausted means the filters match dishes, but every one of
	// them was already shown to this user.
	OutcomeExhausted

	// OutcomeNoMatch means the filters match nothing, independent of
	// what was shown.
	OutcomeNoMatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeItems:
		return "items"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeNoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// Result is a classified catalog lookup.
type Result struct {
	Outcome Outcome
	// Items is populated for OutcomeItems, capped at the configured
	// maximum per turn.
	Items []catalog.Item
	// NewlyShownIDs are the ids to union into the shown set at commit.
	// Empty unless the turn tracks shown dishes.
	NewlyShownIDs []int64
	// Fallback marks results produced by the fuzzy retry.
	Fallback bool
}

// Limits bound catalog fetches.
type Limits struct {
	// Fetch is rows requested when no exclusions apply.
	Fetch int
	// FetchExcluding is rows requested alongside exclusions, oversized
	// so filtering still leaves enough results.
	FetchExcluding int
	// MaxReturned caps dishes handed onward per turn.
	MaxReturned int
}

// Gate runs resolved queries against the catalog.
type Gate struct {
	catalog catalog.Querier
	limits  Limits
	logger  *slog.Logger
}

// New creates a query gate.
func New(c catalog.Querier, limits Limits, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.Fetch <= 0 {
		limits.Fetch = 5
	}
	if limits.FetchExcluding <= 0 {
		limits.FetchExcluding = 10
	}
	if limits.MaxReturned <= 0 {
		limits.MaxReturned = 5
	}
	return &Gate{catalog: c, limits: limits, logger: logger}
}

// Run issues the primary query and classifies the result.
//
// A zero-row primary result with exclusions in play is re-probed with
// an empty exclusion set to distinguish "all shown" from "nothing
// matches". Only a genuine no-match may trigger the single fuzzy
// fallback, and that fallback stays inside the resolved category scope
// — an exhausted category is answered as exhausted, never padded from
// elsewhere. Catalog failures surface unmodified; there is no
// network-level retry here.
func (g *Gate) Run(ctx context.Context, rq resolver.Query) (Result, error) {
	res, err := g.classify(ctx, rq, false)
	if err != nil {
		return Result{}, err
	}

	// Fuzzy fallback: one attempt, category turns only, never after
	// Exhausted.
	if res.Outcome == OutcomeNoMatch && rq.Category != "" && rq.SearchTerm == "" {
		g.logger.Debug("no match, retrying fuzzy", "category", rq.Category)
		fuzzy, err := g.classify(ctx, rq, true)
		if err != nil {
			return Result{}, err
		}
		if fuzzy.Outcome != OutcomeNoMatch {
			fuzzy.Fallback = true
			return fuzzy, nil
		}
	}

	return res, nil
}

func (g *Gate) classify(ctx context.Context, rq resolver.Query, fuzzy bool) (Result, error) {
	q := catalog.Query{
		Category:   rq.Category,
		SearchTerm: rq.SearchTerm,
		MaxPrice:   rq.MaxPrice,
		Dietary:    rq.Dietary,
		Day:        rq.Day,
		ExcludeIDs: rq.ExcludeIDs,
		Fuzzy:      fuzzy,
		Limit:      g.limits.Fetch,
	}
	if len(rq.ExcludeIDs) > 0 {
		q.Limit = g.limits.FetchExcluding
	}

	items, err := g.catalog.Search(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("catalog query: %w", err)
	}

	if len(items) > 0 {
		if len(items) > g.limits.MaxReturned {
			items = items[:g.limits.MaxReturned]
		}
		res := Result{Outcome: OutcomeItems, Items: items}
		if rq.TrackShown {
			res.NewlyShownIDs = make([]int64, 0, len(items))
			for _, it := range items {
				res.NewlyShownIDs = append(res.NewlyShownIDs, it.ID)
			}
		}
		return res, nil
	}

	if len(rq.ExcludeIDs) == 0 {
		// Nothing was excluded, so nothing matches at all.
		return Result{Outcome: OutcomeNoMatch}, nil
	}

	// Zero rows with exclusions in play: probe without the exclusion
	// set to tell "all shown" apart from "no such dishes". The probe
	// keeps the full fetch limit: allergen filtering trims rows after
	// the SQL limit, so a one-row probe could drop the only safe dish
	// and misreport an exhausted category as empty.
	probe := q
	probe.ExcludeIDs = nil

	probed, err := g.catalog.Search(ctx, probe)
	if err != nil {
		return Result{}, fmt.Errorf("catalog probe: %w", err)
	}
	if len(probed) > 0 {
		return Result{Outcome: OutcomeExhausted}, nil
	}
	return Result{Outcome: OutcomeNoMatch}, nil
}
