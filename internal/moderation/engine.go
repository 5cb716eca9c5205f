// Package moderation decides whether a message violates a community's rules
// by delegating the judgment to a text-completion backend. The package owns
// the two halves of the verdict protocol: building a strict-format prompt
// from the rule set and message, and defensively parsing the backend's
// free-text reply into a typed Verdict.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when the completion backend fails or times out.
// It is never coerced into a verdict: callers can always distinguish "the
// message was valid" from "the check could not be performed".
var ErrUnavailable = errors.New("moderation backend unavailable")

// UnspecifiedRule is the ViolatedRule marker used when the backend reports a
// violation but cites text that matches none of the community's rules.
const UnspecifiedRule = "violated an unspecified rule"

// violatedPrefix is the reply prefix the backend must use to report a
// violation. Matching is case-sensitive and exact.
const violatedPrefix = "VIOLATED:"

// Engine evaluates messages against rule sets. It is stateless per call and
// safe for concurrent use.
type Engine struct {
	completer Completer
}

// NewEngine creates an Engine backed by the given completion client.
func NewEngine(c Completer) *Engine {
	return &Engine{completer: c}
}

// Evaluate checks message against rules and returns a Verdict. The rules
// slice is a point-in-time snapshot supplied by the caller; the engine never
// re-fetches it, so a concurrent rule change does not affect an in-flight
// check.
//
// An empty rule set short-circuits to a valid verdict without touching the
// backend: there is nothing to violate, and the ambiguous no-rules prompt
// would waste a costly external call.
func (e *Engine) Evaluate(ctx context.Context, message string, rules []string) (Verdict, error) {
	if len(rules) == 0 {
		return Verdict{IsValid: true}, nil
	}

	reply, err := e.completer.Complete(ctx, BuildPrompt(message, rules))
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation: evaluate: %w: %w", ErrUnavailable, err)
	}

	return parseReply(reply, rules), nil
}

// BuildPrompt renders the moderation request as a single text prompt: the
// moderator persona, the rules one per line in the exact order given, the
// message quoted so its content cannot be mistaken for instructions, and the
// strict VALID / VIOLATED: output-format contract.
func BuildPrompt(message string, rules []string) string {
	var b strings.Builder

	b.WriteString("You are a community content moderator. Your task is to check if a message violates any community rules.\n\n")
	b.WriteString("Community Rules:\n")
	b.WriteString(strings.Join(rules, "\n"))
	b.WriteString("\n\nMessage to check:\n")
	b.WriteString(fmt.Sprintf("%q", message))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Analyze the message carefully against each rule, in order\n")
	b.WriteString("- If the message violates ANY rule, respond with: VIOLATED: [exact rule text that was violated]\n")
	b.WriteString("- If the message is acceptable, respond with: VALID\n")
	b.WriteString("- Respond with exactly one of those two forms and nothing else: no explanations, no markdown\n")
	b.WriteString("\nYour response:")

	return b.String()
}

// parseReply converts the backend's raw reply into a Verdict. The reply is
// untrusted free text: only a trimmed reply starting with the exact
// VIOLATED: prefix counts as a violation; everything else (canonically the
// literal VALID) passes.
func parseReply(reply string, rules []string) Verdict {
	trimmed := strings.TrimSpace(reply)

	if !strings.HasPrefix(trimmed, violatedPrefix) {
		return Verdict{IsValid: true}
	}

	cited := strings.TrimSpace(strings.TrimPrefix(trimmed, violatedPrefix))
	return Verdict{IsValid: false, ViolatedRule: matchRule(cited, rules)}
}

// matchRule verifies the backend's citation against the known rule list.
// Exact match wins; otherwise a substring match in either direction accepts
// citations wrapped in punctuation ("[No spam allowed]") or shortened ones.
// A citation matching no rule at all is replaced with UnspecifiedRule so the
// verdict never carries a rule the community does not have.
func matchRule(cited string, rules []string) string {
	if cited == "" {
		return UnspecifiedRule
	}

	for _, rule := range rules {
		if cited == rule {
			return rule
		}
	}
	for _, rule := range rules {
		if strings.Contains(cited, rule) || strings.Contains(rule, cited) {
			return rule
		}
	}
	return UnspecifiedRule
}
