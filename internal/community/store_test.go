package community

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestCreate_ReturnsStoredCommunity(t *testing.T) {
	s := NewStore()

	c, err := s.Create("gamers", []string{"No spam allowed", "Be respectful"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.ID != "gamers" {
		t.Errorf("ID = %q, want %q", c.ID, "gamers")
	}
	if len(c.Rules) != 2 || c.Rules[0] != "No spam allowed" || c.Rules[1] != "Be respectful" {
		t.Errorf("Rules = %v, want the two rules in order", c.Rules)
	}
}

func TestCreate_NilRulesMeansEmpty(t *testing.T) {
	s := NewStore()

	c, err := s.Create("quiet", nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.Rules == nil {
		t.Error("Rules should be an empty slice, not nil")
	}
	if len(c.Rules) != 0 {
		t.Errorf("Rules = %v, want empty", c.Rules)
	}
}

func TestCreate_DuplicateConflicts(t *testing.T) {
	s := NewStore()

	if _, err := s.Create("gamers", []string{"rule one"}); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}

	// A different rules payload must not matter: the id is taken.
	_, err := s.Create("gamers", []string{"completely different"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second Create error = %v, want ErrConflict", err)
	}

	// The original community is untouched.
	c, err := s.Get("gamers")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(c.Rules) != 1 || c.Rules[0] != "rule one" {
		t.Errorf("Rules = %v, want the original rule set", c.Rules)
	}
}

func TestGet_UnknownNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestSetRules_RoundTrip(t *testing.T) {
	s := NewStore()
	if _, err := s.Create("gamers", nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	rules := []string{"No spam allowed", "No spam allowed", "English only"}
	if _, err := s.SetRules("gamers", rules); err != nil {
		t.Fatalf("SetRules returned error: %v", err)
	}

	c, err := s.Get("gamers")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	// Exact round trip: same order, duplicates preserved.
	if len(c.Rules) != len(rules) {
		t.Fatalf("Rules length = %d, want %d", len(c.Rules), len(rules))
	}
	for i := range rules {
		if c.Rules[i] != rules[i] {
			t.Errorf("Rules[%d] = %q, want %q", i, c.Rules[i], rules[i])
		}
	}
}

func TestSetRules_EmptyReplacesAll(t *testing.T) {
	s := NewStore()
	if _, err := s.Create("gamers", []string{"No spam allowed"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	c, err := s.SetRules("gamers", []string{})
	if err != nil {
		t.Fatalf("SetRules returned error: %v", err)
	}
	if len(c.Rules) != 0 {
		t.Errorf("Rules = %v, want empty", c.Rules)
	}
}

func TestSetRules_UnknownNotFoundNoSideEffect(t *testing.T) {
	s := NewStore()

	_, err := s.SetRules("ghost", []string{"rule"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRules error = %v, want ErrNotFound", err)
	}

	// The failed call must not create the community as a side effect.
	if _, err := s.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after failed SetRules error = %v, want ErrNotFound", err)
	}
}

func TestDefensiveCopies(t *testing.T) {
	s := NewStore()

	input := []string{"No spam allowed"}
	c1, err := s.Create("gamers", input)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Mutating the caller's input slice must not affect stored state.
	input[0] = "mutated"
	c2, _ := s.Get("gamers")
	if c2.Rules[0] != "No spam allowed" {
		t.Errorf("stored rule = %q, input mutation leaked into the store", c2.Rules[0])
	}

	// Replacing rules must not retroactively change an already returned copy.
	if _, err := s.SetRules("gamers", []string{"new rule"}); err != nil {
		t.Fatalf("SetRules returned error: %v", err)
	}
	if c1.Rules[0] != "No spam allowed" {
		t.Errorf("previously returned copy changed to %q after SetRules", c1.Rules[0])
	}

	// Mutating a returned copy must not affect the store.
	c3, _ := s.Get("gamers")
	c3.Rules[0] = "hijacked"
	c4, _ := s.Get("gamers")
	if c4.Rules[0] != "new rule" {
		t.Errorf("stored rule = %q, returned-copy mutation leaked into the store", c4.Rules[0])
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	if _, err := s.Create("gamers", nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := s.Delete("gamers"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := s.Get("gamers"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("gamers"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}

	// The id is free again after deletion.
	if _, err := s.Create("gamers", nil); err != nil {
		t.Errorf("Create after Delete returned error: %v", err)
	}
}

func TestList_InsertionOrder(t *testing.T) {
	s := NewStore()
	ids := []string{"charlie", "alpha", "bravo"}
	for _, id := range ids {
		if _, err := s.Create(id, nil); err != nil {
			t.Fatalf("Create %q returned error: %v", id, err)
		}
	}

	got := s.List()
	if len(got) != len(ids) {
		t.Fatalf("List length = %d, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i].ID != id {
			t.Errorf("List[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestCreate_ConcurrentSameID(t *testing.T) {
	s := NewStore()

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create("contested", []string{fmt.Sprintf("rule from goroutine %d", i)})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestSetRules_ConcurrentNoInterleave(t *testing.T) {
	s := NewStore()
	if _, err := s.Create("gamers", nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Each writer sets a rule set whose entries all carry its own tag.
	// Readers must never observe a mix of two writers' entries.
	const writers = 8
	const rounds = 50

	var wg sync.WaitGroup
	wg.Add(writers + 1)

	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			tag := fmt.Sprintf("writer-%d", w)
			rules := []string{tag + " rule a", tag + " rule b", tag + " rule c"}
			for r := 0; r < rounds; r++ {
				if _, err := s.SetRules("gamers", rules); err != nil {
					t.Errorf("SetRules returned error: %v", err)
					return
				}
			}
		}(w)
	}

	go func() {
		defer wg.Done()
		for r := 0; r < rounds*writers; r++ {
			c, err := s.Get("gamers")
			if err != nil {
				t.Errorf("Get returned error: %v", err)
				return
			}
			if len(c.Rules) == 0 {
				continue
			}
			prefix := c.Rules[0][:len("writer-0")]
			for _, rule := range c.Rules {
				if rule[:len(prefix)] != prefix {
					t.Errorf("observed mixed rule set: %v", c.Rules)
					return
				}
			}
		}
	}()

	wg.Wait()
}
