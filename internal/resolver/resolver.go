// Package resolver decides what category and exclusion scope actually
// apply to a turn, merging the extracted intent with stored session
// context. Historically the most bug-prone corner of the bot, so the
// rules are deliberately rigid — see Resolve.
package resolver

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bensky103/SalaDBot/internal/intent"
	"github.com/bensky103/SalaDBot/internal/session"
)

// ErrNoContext means the turn named neither a category nor a search
// term and no stored category is valid. The caller should ask the user
// to clarify rather than guess.
var ErrNoContext = errors.New("no category or search term, and no valid browsing context")

// Query is a fully resolved catalog lookup for one turn.
type Query struct {
	Category   string
	SearchTerm string
	MaxPrice   float64
	Dietary    string
	Day        string

	// ExcludeIDs is the user's shown set for browsing turns, empty for
	// detail turns so an already-shown dish can always be re-surfaced.
	ExcludeIDs map[int64]struct{}

	// TrackShown is forwarded unchanged from the intent.
	TrackShown bool

	// SetCategory carries an explicitly supplied category to the turn
	// commit. Restored (implicit) categories never set this: their
	// timestamp must not be refreshed.
	SetCategory string
}

// Resolver merges menu-query intents with session context.
type Resolver struct {
	sessions *session.Store
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates a resolver. ttl bounds how long a browsed category stays
// valid as implicit context.
func New(sessions *session.Store, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sessions: sessions, ttl: ttl, logger: logger}
}

// Resolve applies the context rules, in order:
//
//  1. An explicit category always wins and is recorded as the new
//     browsing context.
//  2. A search term bypasses stored context entirely, even when a
//     category is still valid — a targeted lookup searches the whole
//     catalog. Narrowing it to a stale browsing category produced
//     cross-category false negatives in the past.
//  3. Otherwise the stored category is restored if within its TTL;
//     with no stored context the turn is ambiguous and fails with
//     ErrNoContext.
//
// The exclusion set is read only for browsing turns (TrackShown);
// detail lookups run with an empty exclusion set.
func (r *Resolver) Resolve(userID string, m intent.MenuArgs) (Query, error) {
	q := Query{
		SearchTerm: m.SearchTerm,
		MaxPrice:   m.MaxPrice,
		Dietary:    m.Dietary,
		Day:        m.Day,
		TrackShown: m.TrackShown,
		ExcludeIDs: map[int64]struct{}{},
	}

	switch {
	case m.Category != "":
		q.Category = m.Category
		q.SetCategory = m.Category
		r.logger.Debug("explicit category", "user", userID, "category", m.Category)

	case m.SearchTerm != "":
		// Whole-catalog search; stored context deliberately ignored.
		r.logger.Debug("search bypasses context", "user", userID, "term", m.SearchTerm)

	default:
		cat, ok := r.sessions.LastCategory(userID, r.ttl)
		if !ok {
			return Query{}, ErrNoContext
		}
		q.Category = cat
		r.logger.Debug("restored category", "user", userID, "category", cat)
	}

	if m.TrackShown {
		q.ExcludeIDs = r.sessions.ShownIDs(userID)
	}

	return q, nil
}
