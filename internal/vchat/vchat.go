// Package vchat provides the core types shared by the vchat client.
// It defines the conversation Message, the model configuration snapshot,
// the request sent to the generation worker and the collaborator interfaces
// (configuration, access control, notifications) the request layer calls into.
package vchat

// ModelConfig is a read-only snapshot of the model parameters taken when a
// request is built.
type ModelConfig struct {
	Model       string  `toml:"model" json:"model"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	MaxTokens   *int    `toml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// GenerationRequest is the body sent to a vicuna worker (and, for
// non-streaming chat, to the proxy). It is built fresh for every call.
type GenerationRequest struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxNewTokens *int    `json:"max_new_tokens"` // null when unset
	Stop         string  `json:"stop"`
}

// ModelSource supplies the current model configuration.
type ModelSource interface {
	ModelConfig() ModelConfig
}

// Access supplies the access-control settings forwarded as request headers.
//
// Example usage:
//
//	if access.EnabledAccessControl() {
//	    req.Header.Set("access-code", access.GetAccessCode())
//	}
type Access interface {
	// EnabledAccessControl reports whether the proxy requires an access code.
	EnabledAccessControl() bool

	// GetAccessCode returns the configured access code.
	GetAccessCode() string

	// GetToken returns the configured API token, possibly empty.
	GetToken() string
}

// Notifier displays short messages to the user.
type Notifier interface {
	ShowToast(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// ShowToast calls f(message).
func (f NotifierFunc) ShowToast(message string) {
	f(message)
}
