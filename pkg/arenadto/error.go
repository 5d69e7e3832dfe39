package arenadto

// Stable error codes for the engine's rejection kinds.
const (
	CodeInvalidRoster   = "INVALID_ROSTER"
	CodeNotYourTurn     = "NOT_YOUR_TURN"
	CodeIllegalMove     = "ILLEGAL_MOVE"
	CodeSessionTerminal = "SESSION_TERMINAL"
	CodeAgentProvider   = "AGENT_PROVIDER"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "arena error"
}
