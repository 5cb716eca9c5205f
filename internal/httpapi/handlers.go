package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flagwise/moderation/internal/audit"
	"github.com/flagwise/moderation/internal/cache"
	"github.com/flagwise/moderation/internal/events"
	"github.com/flagwise/moderation/internal/messaging"
	"github.com/flagwise/moderation/internal/metrics"
	"github.com/flagwise/moderation/internal/moderation"
	"github.com/flagwise/moderation/internal/ratelimit"
)

// Request bodies.

type createRequest struct {
	ID    string   `json:"id"`
	Rules []string `json:"rules"`
}

type setRulesRequest struct {
	Rules []string `json:"rules"`
}

type checkRequest struct {
	Message string `json:"message"`
}

// decisionResponse is the JSON shape of one audit row.
type decisionResponse struct {
	ID           string    `json:"id"`
	Message      string    `json:"message"`
	IsValid      bool      `json:"isValid"`
	ViolatedRule string    `json:"violatedRule,omitempty"`
	Cached       bool      `json:"cached"`
	DurationMs   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// decodeJSON decodes the request body into v, bounding its size.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// validateRules rejects rule lists containing blank entries. An empty list
// itself is fine ("no rules, everything passes").
func validateRules(rules []string) error {
	for i, rule := range rules {
		if strings.TrimSpace(rule) == "" {
			return fmt.Errorf("rules[%d] must be a non-empty string", i)
		}
	}
	return nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "id must be a non-empty string")
		return
	}
	if err := validateRules(req.Rules); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}

	c, err := s.registry.Create(req.ID, req.Rules)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	metrics.Communities.Set(float64(s.registry.Count()))
	s.publishCommunityEvent(messaging.SubjectCommunityCreated, events.TypeCommunityCreated, c.ID, len(c.Rules))
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}

	metrics.Communities.Set(float64(s.registry.Count()))
	s.publishCommunityEvent(messaging.SubjectCommunityDeleted, events.TypeCommunityDeleted, id, 0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRules(w http.ResponseWriter, r *http.Request) {
	var req setRulesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err := validateRules(req.Rules); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}

	c, err := s.registry.SetRules(r.PathValue("id"), req.Rules)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.publishCommunityEvent(messaging.SubjectCommunityRules, events.TypeCommunityRulesSet, c.ID, len(c.Rules))
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "message must be a non-empty string")
		return
	}

	if s.limiter != nil {
		if allowed, _ := s.limiter.Allow(r.Context(), clientIP(r), ratelimit.RuleCheck); !allowed {
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "check rate limit exceeded")
			return
		}
	}

	c, err := s.registry.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Everything below runs against this point-in-time snapshot; a
	// concurrent rule edit does not affect this check.
	rules := c.Rules

	start := time.Now()
	checkID := uuid.New()

	var verdict moderation.Verdict
	cached := false

	if s.cache != nil && len(rules) > 0 {
		key := cache.Key(rules, req.Message)
		if v, ok := s.cache.Get(r.Context(), key); ok {
			verdict = v
			cached = true
		} else {
			verdict, err = s.evaluate(r.Context(), req.Message, rules)
			if err != nil {
				s.checkFailed(w, err)
				return
			}
			s.cache.Set(r.Context(), key, verdict)
		}
	} else {
		verdict, err = s.evaluate(r.Context(), req.Message, rules)
		if err != nil {
			s.checkFailed(w, err)
			return
		}
	}

	duration := time.Since(start)
	metrics.CheckDuration.Observe(duration.Seconds())
	metrics.ChecksTotal.WithLabelValues(checkOutcome(verdict, cached)).Inc()

	s.recordDecision(&audit.Decision{
		ID:           checkID,
		CommunityID:  id,
		Message:      req.Message,
		IsValid:      verdict.IsValid,
		ViolatedRule: verdict.ViolatedRule,
		RuleCount:    len(rules),
		Cached:       cached,
		Duration:     duration,
	})

	s.publishVerdict(events.VerdictEvent{
		Type:         events.TypeVerdict,
		CheckID:      checkID.String(),
		CommunityID:  id,
		IsValid:      verdict.IsValid,
		ViolatedRule: verdict.ViolatedRule,
		Cached:       cached,
		Ts:           time.Now().Unix(),
	})

	writeJSON(w, http.StatusOK, verdict)
}

// evaluate runs the engine under the configured check deadline. The deadline
// is attached to the request context, so a caller disconnect also cancels
// the in-flight backend call.
func (s *Server) evaluate(ctx context.Context, message string, rules []string) (moderation.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()
	return s.engine.Evaluate(ctx, message, rules)
}

// checkFailed reports a failed check. The failure is surfaced as its own
// error, never coerced into a pass or a violation.
func (s *Server) checkFailed(w http.ResponseWriter, err error) {
	metrics.ChecksTotal.WithLabelValues("unavailable").Inc()
	metrics.CompletionErrors.Inc()
	writeDomainError(w, err)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.registry.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	out := []decisionResponse{}
	if s.audit != nil {
		decisions, err := s.audit.RecentByCommunity(r.Context(), id, s.config.DecisionLimit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for _, d := range decisions {
			out = append(out, decisionResponse{
				ID:           d.ID.String(),
				Message:      d.Message,
				IsValid:      d.IsValid,
				ViolatedRule: d.ViolatedRule,
				Cached:       d.Cached,
				DurationMs:   d.Duration.Milliseconds(),
				CreatedAt:    d.CreatedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recordDecision persists the decision to the audit store, best effort. The
// client's response never waits on or fails with the audit write.
func (s *Server) recordDecision(d *audit.Decision) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.Record(ctx, d); err != nil {
		log.Printf("[http] audit record failed community=%s: %v", d.CommunityID, err)
	}
}

// publishVerdict fans the verdict event out to NATS and WebSocket clients.
func (s *Server) publishVerdict(event events.VerdictEvent) {
	if s.publisher != nil {
		data, err := json.Marshal(event)
		if err == nil {
			if err := s.publisher.PublishVerdict(event.CommunityID, data); err != nil {
				log.Printf("[http] publish verdict community=%s: %v", event.CommunityID, err)
			}
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(event)
	}
}

// publishCommunityEvent fans a lifecycle event out to NATS and WebSocket
// clients.
func (s *Server) publishCommunityEvent(subject, eventType, communityID string, ruleCount int) {
	event := events.CommunityEvent{
		Type:        eventType,
		CommunityID: communityID,
		RuleCount:   ruleCount,
		Ts:          time.Now().Unix(),
	}
	if s.publisher != nil {
		data, err := json.Marshal(event)
		if err == nil {
			if err := s.publisher.PublishCommunityEvent(subject, data); err != nil {
				log.Printf("[http] publish %s community=%s: %v", subject, communityID, err)
			}
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(event)
	}
}

// clientIP extracts the client address for rate limiting.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func checkOutcome(v moderation.Verdict, cached bool) string {
	switch {
	case cached:
		return "cached"
	case v.IsValid:
		return "valid"
	default:
		return "violated"
	}
}
