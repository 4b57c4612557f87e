package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxHistory int) *Store {
	t.Helper()
	return NewStore(nil, maxHistory)
}

func TestAppendExchangeTrimsOldest(t *testing.T) {
	s := newTestStore(t, 3)

	for i := 1; i <= 5; i++ {
		s.AppendExchange("u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	hist := s.History("u1")
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	// Oldest evicted first: q3..q5 remain, most recent last.
	if hist[0].UserText != "q3" || hist[2].UserText != "q5" {
		t.Errorf("history = [%s .. %s], want [q3 .. q5]", hist[0].UserText, hist[2].UserText)
	}
}

func TestHistoryIsSnapshot(t *testing.T) {
	s := newTestStore(t, 10)
	s.AppendExchange("u1", "q1", "a1")

	hist := s.History("u1")
	hist[0].UserText = "mutated"

	if got := s.History("u1")[0].UserText; got != "q1" {
		t.Errorf("stored history mutated through snapshot: %q", got)
	}
}

func TestShownIDsUnion(t *testing.T) {
	s := newTestStore(t, 10)

	s.AddShownIDs("u1", []int64{1, 2})
	s.AddShownIDs("u1", []int64{2, 3}) // duplicate 2 is a no-op

	shown := s.ShownIDs("u1")
	if len(shown) != 3 {
		t.Fatalf("shown count = %d, want 3", len(shown))
	}
	for _, id := range []int64{1, 2, 3} {
		if _, ok := shown[id]; !ok {
			t.Errorf("missing id %d", id)
		}
	}
}

func TestShownIDsPerUser(t *testing.T) {
	s := newTestStore(t, 10)

	s.AddShownIDs("u1", []int64{1})
	s.AddShownIDs("u2", []int64{2})

	if _, ok := s.ShownIDs("u1")[2]; ok {
		t.Error("u1 sees u2's shown ids")
	}
	if _, ok := s.ShownIDs("u2")[1]; ok {
		t.Error("u2 sees u1's shown ids")
	}
}

func TestLastCategoryTTL(t *testing.T) {
	s := newTestStore(t, 10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.SetLastCategory("u1", "קינוחים")

	ttl := 10 * time.Minute

	// Just inside the window.
	now = now.Add(ttl - time.Second)
	if got, ok := s.LastCategory("u1", ttl); !ok || got != "קינוחים" {
		t.Errorf("LastCategory inside TTL = (%q, %v), want (קינוחים, true)", got, ok)
	}

	// Exactly at the boundary: now - set == ttl is expired.
	now = now.Add(time.Second)
	if got, ok := s.LastCategory("u1", ttl); ok {
		t.Errorf("LastCategory at TTL boundary = (%q, true), want absent", got)
	}

	// The stale value was cleared on read; a later in-window read still
	// sees nothing.
	now = now.Add(-5 * time.Minute)
	if _, ok := s.LastCategory("u1", ttl); ok {
		t.Error("stale category should have been cleared on read")
	}
}

func TestSetLastCategoryOverwrites(t *testing.T) {
	s := newTestStore(t, 10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.SetLastCategory("u1", "סלטים")
	now = now.Add(9 * time.Minute)
	s.SetLastCategory("u1", "קינוחים") // timestamp resets here

	now = now.Add(9 * time.Minute)
	got, ok := s.LastCategory("u1", 10*time.Minute)
	if !ok || got != "קינוחים" {
		t.Errorf("LastCategory = (%q, %v), want (קינוחים, true)", got, ok)
	}
}

func TestClearLastCategory(t *testing.T) {
	s := newTestStore(t, 10)

	s.SetLastCategory("u1", "מרקים")
	s.ClearLastCategory("u1")

	if _, ok := s.LastCategory("u1", time.Hour); ok {
		t.Error("category should be absent after clear")
	}
}

func TestResetBrowsing(t *testing.T) {
	s := newTestStore(t, 10)

	s.AddShownIDs("u1", []int64{1, 2, 3})
	s.SetLastCategory("u1", "סלטים")
	s.ResetBrowsing("u1")

	if n := len(s.ShownIDs("u1")); n != 0 {
		t.Errorf("shown count after reset = %d, want 0", n)
	}
	if _, ok := s.LastCategory("u1", time.Hour); ok {
		t.Error("category should be absent after reset")
	}
}

func TestCommitTurnAtomic(t *testing.T) {
	s := newTestStore(t, 10)

	s.CommitTurn("u1", TurnCommit{
		UserText:      "מה יש בקינוחים?",
		AssistantText: "יש טירמיסו ומוס שוקולד",
		NewShownIDs:   []int64{7, 8},
		SetCategory:   "קינוחים",
	})

	if n := len(s.History("u1")); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
	if n := len(s.ShownIDs("u1")); n != 2 {
		t.Errorf("shown count = %d, want 2", n)
	}
	if got, ok := s.LastCategory("u1", time.Hour); !ok || got != "קינוחים" {
		t.Errorf("LastCategory = (%q, %v), want (קינוחים, true)", got, ok)
	}
}

func TestCommitTurnResetClearsBeforeAppend(t *testing.T) {
	s := newTestStore(t, 10)
	s.AddShownIDs("u1", []int64{1, 2})
	s.SetLastCategory("u1", "סלטים")

	// A greeting turn resets browsing state but still records the
	// exchange.
	s.CommitTurn("u1", TurnCommit{
		UserText:      "שלום",
		AssistantText: "ברוכים הבאים",
		ClearCategory: true,
		ResetShown:    true,
	})

	if n := len(s.ShownIDs("u1")); n != 0 {
		t.Errorf("shown count = %d, want 0", n)
	}
	if _, ok := s.LastCategory("u1", time.Hour); ok {
		t.Error("category should be cleared")
	}
	if n := len(s.History("u1")); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestConcurrentSameUserNoLostUpdate(t *testing.T) {
	s := newTestStore(t, 200)

	const turns = 100
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.CommitTurn("u1", TurnCommit{
				UserText:      fmt.Sprintf("q%d", i),
				AssistantText: fmt.Sprintf("a%d", i),
				NewShownIDs:   []int64{int64(i)},
			})
		}(i)
	}
	wg.Wait()

	if n := len(s.History("u1")); n != turns {
		t.Errorf("history length = %d, want %d (lost update)", n, turns)
	}
	if n := len(s.ShownIDs("u1")); n != turns {
		t.Errorf("shown count = %d, want %d", n, turns)
	}
	// Each exchange is intact: its user and assistant texts pair up.
	for _, ex := range s.History("u1") {
		if "a"+ex.UserText[1:] != ex.AssistantText {
			t.Errorf("torn exchange: %q / %q", ex.UserText, ex.AssistantText)
		}
	}
}

func TestSweepEvictsIdleOnly(t *testing.T) {
	s := newTestStore(t, 10)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.AppendExchange("idle", "q", "a")
	now = now.Add(31 * time.Minute)
	s.AppendExchange("active", "q", "a")

	if got := s.Sweep(30 * time.Minute); got != 1 {
		t.Errorf("Sweep evicted %d, want 1", got)
	}
	if s.Len() != 1 {
		t.Errorf("sessions remaining = %d, want 1", s.Len())
	}
	if !s.GetInfo("active").Exists {
		t.Error("active session was evicted")
	}
	if s.GetInfo("idle").Exists {
		t.Error("idle session survived sweep")
	}
}

func TestGetInfoDoesNotCreate(t *testing.T) {
	s := newTestStore(t, 10)

	if s.GetInfo("ghost").Exists {
		t.Error("GetInfo reported a session that was never created")
	}
	if s.Len() != 0 {
		t.Error("GetInfo created a session")
	}
}
