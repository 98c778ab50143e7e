package pipeline

import (
	"sync"

	"github.com/duplexvoice/duplex/pkg/provider/reply"
)

// DefaultHistoryLimit is the number of user/assistant exchange pairs a
// ConversationLog retains.
const DefaultHistoryLimit = 20

// ConversationLog is the built-in [Dialogue]: a fixed system persona plus a
// bounded window of recent exchanges. Hosts with their own dialogue
// management (agent directories, persistence) supply their own Dialogue
// instead.
//
// Safe for concurrent use.
type ConversationLog struct {
	mu     sync.Mutex
	system string
	limit  int
	turns  []exchange
}

type exchange struct {
	user      string
	assistant string
}

// NewConversationLog creates a log with the given system prompt. A
// historyLimit <= 0 means [DefaultHistoryLimit] exchange pairs.
func NewConversationLog(systemPrompt string, historyLimit int) *ConversationLog {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ConversationLog{
		system: systemPrompt,
		limit:  historyLimit,
	}
}

// Messages returns the system prompt, the retained history in order, and the
// new transcript as the final user message.
func (cl *ConversationLog) Messages(transcript string) []reply.Message {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	msgs := make([]reply.Message, 0, len(cl.turns)*2+2)
	if cl.system != "" {
		msgs = append(msgs, reply.Message{Role: reply.RoleSystem, Content: cl.system})
	}
	for _, t := range cl.turns {
		msgs = append(msgs,
			reply.Message{Role: reply.RoleUser, Content: t.user},
			reply.Message{Role: reply.RoleAssistant, Content: t.assistant},
		)
	}
	return append(msgs, reply.Message{Role: reply.RoleUser, Content: transcript})
}

// RecordExchange appends one completed turn, evicting the oldest once the
// history limit is reached.
func (cl *ConversationLog) RecordExchange(transcript, replyText string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.turns = append(cl.turns, exchange{user: transcript, assistant: replyText})
	if len(cl.turns) > cl.limit {
		cl.turns = cl.turns[len(cl.turns)-cl.limit:]
	}
}

// Reset clears the retained history, keeping the system prompt.
func (cl *ConversationLog) Reset() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.turns = nil
}

// Ensure ConversationLog satisfies Dialogue at compile time.
var _ Dialogue = (*ConversationLog)(nil)
