package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/shl518/vchat/internal/vchat"
)

// Session represents a conversation session
type Session struct {
	ID           string          `json:"id"`            // UUID v4 (e.g., "550e8400-e29b-41d4-a716-446655440000")
	Name         string          `json:"name"`          // Optional session name (empty by default)
	Topic        string          `json:"topic"`         // Generated summary title, see "sessions topic"
	TemplateName string          `json:"template_name"` // Prompt template name (reference info, can be empty)
	SystemPrompt string          `json:"system_prompt"` // System prompt snapshot (can be empty)
	Model        string          `json:"model"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Messages     []vchat.Message `json:"messages"`
}

// NewSession creates a new session for the given model
func NewSession(model string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []vchat.Message{},
	}
}

// AddMessage appends a message dated now and returns its index
func (s *Session) AddMessage(role, content string) int {
	s.Messages = append(s.Messages, vchat.NewMessage(role, content))
	s.UpdatedAt = time.Now()
	return len(s.Messages) - 1
}

// SetContent replaces the content of the message at index i.
// Out of range indexes are ignored.
func (s *Session) SetContent(i int, content string) {
	if i < 0 || i >= len(s.Messages) {
		return
	}
	s.Messages[i].Content = content
	s.UpdatedAt = time.Now()
}

// GetShortID returns the shortened session ID (first 8 characters)
func (s *Session) GetShortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

// GetDisplayName returns the name, then the topic, then the short ID.
func (s *Session) GetDisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Topic != "" {
		return s.Topic
	}
	return s.GetShortID()
}

// MessageCount returns the number of messages in the session
func (s *Session) MessageCount() int {
	return len(s.Messages)
}
