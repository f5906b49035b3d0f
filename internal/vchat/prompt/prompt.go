package prompt

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shl518/vchat/internal/vchat"
)

// Prompt represents the structure of a TOML prompt file
type Prompt struct {
	System      string   `toml:"system"`
	User        string   `toml:"user"`
	Model       *string  `toml:"model,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`
}

// LoadPrompt loads a prompt file and returns its contents
func LoadPrompt(filePath string) (*Prompt, error) {
	var prompt Prompt
	if _, err := toml.DecodeFile(filePath, &prompt); err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %v", err)
	}
	return &prompt, nil
}

// Apply overrides the model settings set in the template.
func (p *Prompt) Apply(model *vchat.ModelConfig) {
	if p.Model != nil {
		model.Model = *p.Model
	}
	if p.Temperature != nil {
		model.Temperature = *p.Temperature
	}
}
