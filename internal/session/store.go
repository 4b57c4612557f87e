// Package session holds per-user conversational state: bounded exchange
// history, the set of dishes already shown, and the last browsed
// category with a time-to-live.
//
// Mutations for one user are serialized by that user's own lock; the
// store-wide lock guards only map membership, so unrelated users never
// block each other. Category expiry is a pure read-time check — there is
// no background expiry thread.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Exchange is one completed user/assistant round trip.
type Exchange struct {
	UserText      string
	AssistantText string
	At            time.Time
}

// session is the per-user record. All fields are guarded by mu.
type session struct {
	mu sync.Mutex

	history      []Exchange
	shownIDs     map[int64]struct{}
	lastCategory string
	categorySet  time.Time

	createdAt time.Time
	updatedAt time.Time
}

// Store manages sessions for all users.
type Store struct {
	logger     *slog.Logger
	maxHistory int

	mu       sync.RWMutex
	sessions map[string]*session

	clock func() time.Time // overridable in tests
}

// NewStore creates a session store. maxHistory bounds the number of
// stored exchanges per user; oldest are evicted first.
func NewStore(logger *slog.Logger, maxHistory int) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if maxHistory <= 0 {
		maxHistory = 25
	}
	return &Store{
		logger:     logger,
		maxHistory: maxHistory,
		sessions:   make(map[string]*session),
		clock:      time.Now,
	}
}

// getOrCreate returns the user's session, creating an empty one on
// first contact. Never fails; an absent session is not an error.
func (s *Store) getOrCreate(userID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; another goroutine may have won.
	if sess, ok = s.sessions[userID]; ok {
		return sess
	}
	now := s.clock()
	sess = &session{
		shownIDs:  make(map[int64]struct{}),
		createdAt: now,
		updatedAt: now,
	}
	s.sessions[userID] = sess
	s.logger.Debug("session created", "user", userID)
	return sess
}

// Touch ensures a session exists and refreshes its activity timestamp.
// Called at the start of a turn so the reaper never evicts a session
// that is mid-turn.
func (s *Store) Touch(userID string) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	sess.updatedAt = s.clock()
	sess.mu.Unlock()
}

// AppendExchange records a completed exchange, trimming the oldest
// entries once the history bound is exceeded.
func (s *Store) AppendExchange(userID, userText, assistantText string) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.appendLocked(sess, userText, assistantText)
}

// appendLocked assumes sess.mu is held.
func (s *Store) appendLocked(sess *session, userText, assistantText string) {
	now := s.clock()
	sess.history = append(sess.history, Exchange{
		UserText:      userText,
		AssistantText: assistantText,
		At:            now,
	})
	if over := len(sess.history) - s.maxHistory; over > 0 {
		sess.history = sess.history[over:]
	}
	sess.updatedAt = now
}

// History returns a snapshot of the user's exchanges, most recent last.
func (s *Store) History(userID string) []Exchange {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]Exchange, len(sess.history))
	copy(out, sess.history)
	return out
}

// ShownIDs returns a copy of the dish ids already presented to the user.
func (s *Store) ShownIDs(userID string) map[int64]struct{} {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make(map[int64]struct{}, len(sess.shownIDs))
	for id := range sess.shownIDs {
		out[id] = struct{}{}
	}
	return out
}

// AddShownIDs unions ids into the user's shown set. Duplicates are
// no-ops. The set only grows; it is cleared by ResetBrowsing.
func (s *Store) AddShownIDs(userID string, ids []int64) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.addShownLocked(sess, ids)
}

func (s *Store) addShownLocked(sess *session, ids []int64) {
	for _, id := range ids {
		sess.shownIDs[id] = struct{}{}
	}
	sess.updatedAt = s.clock()
}

// SetLastCategory stores the category with the current time,
// unconditionally replacing any prior value.
func (s *Store) SetLastCategory(userID, category string) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	now := s.clock()
	sess.lastCategory = category
	sess.categorySet = now
	sess.updatedAt = now
}

// LastCategory returns the stored category if it was set less than ttl
// ago, and ok=false otherwise. A stale value is cleared opportunistically
// on read; there is no background sweep.
func (s *Store) LastCategory(userID string, ttl time.Duration) (string, bool) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.lastCategory == "" {
		return "", false
	}
	if s.clock().Sub(sess.categorySet) >= ttl {
		sess.lastCategory = ""
		sess.categorySet = time.Time{}
		return "", false
	}
	return sess.lastCategory, true
}

// ClearLastCategory resets browsing category context. Used on greeting
// and category-list intents.
func (s *Store) ClearLastCategory(userID string) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastCategory = ""
	sess.categorySet = time.Time{}
	sess.updatedAt = s.clock()
}

// ResetBrowsing clears both the shown-dish set and the category
// context. Triggered by explicit browsing-reset intents (greeting,
// category list), never automatically.
func (s *Store) ResetBrowsing(userID string) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.shownIDs = make(map[int64]struct{})
	sess.lastCategory = ""
	sess.categorySet = time.Time{}
	sess.updatedAt = s.clock()
}

// TurnCommit carries every mutation a completed turn produced.
type TurnCommit struct {
	UserText      string
	AssistantText string
	// NewShownIDs are dish ids to union into the shown set. Empty for
	// detail turns.
	NewShownIDs []int64
	// SetCategory records an explicitly supplied category. Ignored when
	// empty. Implicit (restored) categories never set this.
	SetCategory string
	// ClearCategory resets category context (greeting / category list).
	ClearCategory bool
	// ResetShown clears the shown-dish set alongside ClearCategory.
	ResetShown bool
}

// CommitTurn applies all of a turn's mutations under one acquisition of
// the user's lock. Either the whole exchange commits or none of it does;
// an abandoned turn simply never calls CommitTurn.
func (s *Store) CommitTurn(userID string, c TurnCommit) {
	sess := s.getOrCreate(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if c.ClearCategory {
		sess.lastCategory = ""
		sess.categorySet = time.Time{}
	}
	if c.ResetShown {
		sess.shownIDs = make(map[int64]struct{})
	}
	if c.SetCategory != "" {
		sess.lastCategory = c.SetCategory
		sess.categorySet = s.clock()
	}
	if len(c.NewShownIDs) > 0 {
		s.addShownLocked(sess, c.NewShownIDs)
	}
	s.appendLocked(sess, c.UserText, c.AssistantText)
}

// Info reports session statistics for the debug endpoints.
type Info struct {
	Exists        bool      `json:"exists"`
	ExchangeCount int       `json:"exchange_count"`
	ShownCount    int       `json:"shown_count"`
	LastCategory  string    `json:"last_category,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// GetInfo returns statistics without creating a session.
func (s *Store) GetInfo(userID string) Info {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return Info{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Info{
		Exists:        true,
		ExchangeCount: len(sess.history),
		ShownCount:    len(sess.shownIDs),
		LastCategory:  sess.lastCategory,
		UpdatedAt:     sess.updatedAt,
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than maxIdle and returns how many
// were evicted. Eviction is a resource bound, not a correctness
// requirement; the per-user lock is taken before the final idle check so
// a session is never removed mid-commit.
func (s *Store) Sweep(maxIdle time.Duration) int {
	s.mu.RLock()
	candidates := make(map[string]*session)
	now := s.clock()
	for id, sess := range s.sessions {
		candidates[id] = sess
	}
	s.mu.RUnlock()

	evicted := 0
	for id, sess := range candidates {
		sess.mu.Lock()
		idle := now.Sub(sess.updatedAt) > maxIdle
		sess.mu.Unlock()
		if !idle {
			continue
		}

		s.mu.Lock()
		// Re-check: the session may have seen activity since.
		if cur, ok := s.sessions[id]; ok && cur == sess {
			cur.mu.Lock()
			if now.Sub(cur.updatedAt) > maxIdle {
				delete(s.sessions, id)
				evicted++
			}
			cur.mu.Unlock()
		}
		s.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Debug("idle sessions evicted", "count", evicted)
	}
	return evicted
}

// StartReaper runs Sweep every interval until ctx is cancelled.
func (s *Store) StartReaper(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(maxIdle)
			}
		}
	}()
}
