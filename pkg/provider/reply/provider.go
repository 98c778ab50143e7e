// Package reply defines the Provider interface for reply-generation
// backends.
//
// The engine treats reply generation as an opaque text-in/text-out call: the
// host's dialogue layer supplies the system/persona prompt and conversation
// history as an ordered message list, and the provider returns the text to
// speak. Intent detection, tool use, and persistence of conversation
// outcomes all live on the host side of this boundary.
//
// Implementations must be safe for concurrent use.
package reply

import "context"

// Conversation roles used in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the conversation history handed to the
// provider.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// Request carries a conversation to complete.
type Request struct {
	// Messages is the ordered conversation history, including any system
	// prompt supplied by the dialogue layer. The last message is typically
	// the user's transcript.
	Messages []Message

	// Model selects a specific model within the provider. Empty uses the
	// provider default.
	Model string

	// MaxTokens caps the length of the generated reply. Zero means the
	// provider default.
	MaxTokens int
}

// Provider is the abstraction over any reply-generation backend.
//
// Implementations must respect ctx cancellation promptly — the coordinator
// cancels the context of superseded work.
type Provider interface {
	// Generate produces the reply text for the given conversation. An empty
	// reply with a nil error is valid; callers decide how to treat it.
	Generate(ctx context.Context, req Request) (string, error)
}
