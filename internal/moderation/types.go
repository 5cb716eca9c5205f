package moderation

import "context"

// Completer is the narrow interface to the text-completion backend. The
// engine never assumes anything about the backend beyond this contract, so
// the oracle is swappable and trivially faked in tests.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Verdict is the structured result of checking one message against one
// community's rules.
type Verdict struct {
	// IsValid is true when no rule was violated.
	IsValid bool `json:"isValid"`

	// ViolatedRule is the text of the violated rule, set only when IsValid
	// is false. When the backend cites a rule that does not match any stored
	// rule, this is UnspecifiedRule instead of the model's paraphrase.
	ViolatedRule string `json:"violatedRule,omitempty"`
}
