package store

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultContextName is used for contexts created implicitly or from the selector.
	DefaultContextName = "New chat"
	// SystemPrompt seeds every new context.
	SystemPrompt = "You are a useful assistant."
)

// Identity is how the transport names a user. UserID is authoritative;
// Username is only consulted when UserID is zero.
type Identity struct {
	UserID   int64
	Username string
}

type User struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"user_id"`
	Username         string `json:"username"`
	CurrentContextID *int64 `json:"current_context_id"` // Nullable
	HasAccess        bool   `json:"has_access"`
}

type Context struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"context_name"`
}

type Message struct {
	ID        int64  `json:"id"`
	ContextID int64  `json:"context_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// ChatMessage is the role-tagged pair exchanged with the completion API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
