package cache

import (
	"strings"
	"testing"
)

func TestKey_Deterministic(t *testing.T) {
	rules := []string{"No spam allowed", "English only"}

	k1 := Key(rules, "hello")
	k2 := Key([]string{"No spam allowed", "English only"}, "hello")
	if k1 != k2 {
		t.Errorf("same input produced different keys: %s vs %s", k1, k2)
	}
	if !strings.HasPrefix(k1, VerdictPrefix) {
		t.Errorf("key %q missing prefix %q", k1, VerdictPrefix)
	}
}

func TestKey_SensitiveToInput(t *testing.T) {
	base := Key([]string{"No spam allowed", "English only"}, "hello")

	variants := map[string]string{
		"different message": Key([]string{"No spam allowed", "English only"}, "hello!"),
		"different rule":    Key([]string{"No spam allowed", "Be kind"}, "hello"),
		"reordered rules":   Key([]string{"English only", "No spam allowed"}, "hello"),
		"no rules":          Key(nil, "hello"),
	}

	for name, key := range variants {
		if key == base {
			t.Errorf("%s produced the same key as the base input", name)
		}
	}
}

func TestKey_BoundaryShiftDoesNotCollide(t *testing.T) {
	// Moving characters between the last rule and the message must change
	// the key.
	k1 := Key([]string{"ab"}, "cd")
	k2 := Key([]string{"abc"}, "d")
	if k1 == k2 {
		t.Error("boundary-shifted inputs collided")
	}

	// Same for rule boundaries.
	k3 := Key([]string{"ab", "cd"}, "x")
	k4 := Key([]string{"a", "bcd"}, "x")
	if k3 == k4 {
		t.Error("rule-boundary-shifted inputs collided")
	}
}
