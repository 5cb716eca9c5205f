package events

// Event type discriminators, carried in the "type" field of every payload.
const (
	TypeVerdict           = "verdict"
	TypeCommunityCreated  = "community_created"
	TypeCommunityRulesSet = "community_rules_updated"
	TypeCommunityDeleted  = "community_deleted"
)

// VerdictEvent is broadcast after every completed moderation check. The same
// JSON payload is published to NATS and fanned out to WebSocket clients.
type VerdictEvent struct {
	Type         string `json:"type"` // TypeVerdict
	CheckID      string `json:"check_id"`
	CommunityID  string `json:"community_id"`
	IsValid      bool   `json:"is_valid"`
	ViolatedRule string `json:"violated_rule,omitempty"`
	Cached       bool   `json:"cached"`
	Ts           int64  `json:"ts"`
}

// CommunityEvent is broadcast on community lifecycle changes.
type CommunityEvent struct {
	Type        string `json:"type"` // one of the TypeCommunity* constants
	CommunityID string `json:"community_id"`
	RuleCount   int    `json:"rule_count"`
	Ts          int64  `json:"ts"`
}
