package chat

// Phase is the send-protocol state of a session controller.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseSending            Phase = "sending"
	PhaseAwaitingCompletion Phase = "awaiting_completion"
	PhaseError              Phase = "error"
)

// Status labels shown next to the chat input.
const (
	StatusReady    = "Ready"
	StatusSending  = "Sending..."
	StatusThinking = "Thinking..."
	StatusError    = "Error"
)

// Session is the runtime view of one user's chat surface. It is never persisted.
type Session struct {
	ActivePersona string    `json:"activePersona,omitempty"`
	Phase         Phase     `json:"phase"`
	IsSending     bool      `json:"isSending"`
	IsTyping      bool      `json:"isTyping"`
	LastError     string    `json:"lastError,omitempty"`
	Status        string    `json:"status"`
	Warning       string    `json:"warning,omitempty"`
	Messages      []Message `json:"messages"`
}
