package vchat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DateLayout is the layout used for the display timestamp of a message.
const DateLayout = "2006/1/2 15:04:05"

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`    // "user", "assistant" or "system"
	Content string `json:"content"` // Message content
	Date    string `json:"date"`    // Display timestamp
}

// NewMessage returns a message dated now.
func NewMessage(role, content string) Message {
	return Message{
		Role:    role,
		Content: content,
		Date:    FormatDate(time.Now()),
	}
}

// FormatDate formats t as a message display timestamp.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
