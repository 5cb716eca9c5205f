// Package community maintains the in-memory registry of communities and
// their moderation rule sets. It is the single source of truth for community
// state shared by concurrent request handlers; all access goes through the
// Store, which never exposes its internal map.
package community

// Community is a named policy domain with its own ordered rule set.
// The ID is chosen by the caller at creation time and immutable afterwards.
// Rules is an ordered list of natural-language policy statements; order is
// preserved because it is visible to the moderation backend.
type Community struct {
	ID    string   `json:"id"`
	Rules []string `json:"rules"`
}

// clone returns a deep copy so that callers can never mutate stored state
// (and stored state can never mutate what a caller already holds).
func (c *Community) clone() *Community {
	return &Community{
		ID:    c.ID,
		Rules: copyRules(c.Rules),
	}
}

// copyRules copies a rule slice. The result is never nil so that the JSON
// encoding of Rules is always an array, even when empty.
func copyRules(rules []string) []string {
	out := make([]string, len(rules))
	copy(out, rules)
	return out
}
