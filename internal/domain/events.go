package domain

// Canonical event names. Each logical action has exactly one canonical name;
// older widget and dashboard builds listen on the legacy aliases, which the
// hub re-emits alongside the canonical event.
const (
	EventVisitorJoin      = "visitor:join"
	EventVisitorHeartbeat = "visitor:heartbeat"
	EventVisitorMessage   = "visitor-message"
	EventAgentMessage     = "agent-message"
	EventLeadCapture      = "lead:capture"
	EventAgentJoin        = "agent-join"

	EventVisitorJoined    = "visitor:joined"
	EventSessionUpdated   = "session-updated"
	EventChatMessage      = "chat:message"
	EventChatCreated      = "chat-created"
	EventLeadCaptured     = "lead:captured"
	EventLeadConfirmation = "lead:captured-confirmation"
	EventVisitorUpdated   = "visitor-updated"

	EventVisitorRegistered = "visitor-registered"
	EventActiveVisitors    = "active-visitors"
	EventDashboardMetrics  = "dashboard:metrics"
	EventError             = "error"
)

// LegacyAliases maps a canonical event to the additional names it is emitted
// under. Handlers never branch on the alias names.
var LegacyAliases = map[string][]string{
	EventVisitorJoined: {"session-created"},
	EventChatMessage:   {"new-message"},
}

// EmitNames returns the canonical name followed by any legacy aliases.
func EmitNames(event string) []string {
	names := []string{event}
	return append(names, LegacyAliases[event]...)
}

// Error codes carried on the error envelope.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
)
