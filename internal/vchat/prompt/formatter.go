package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shl518/vchat/internal/vchat"
)

// FindPrompt returns the path of the named template. Later directories take
// precedence over earlier ones.
func FindPrompt(promptName string, promptDirs []string) (string, error) {
	promptFile := promptName
	if !strings.HasSuffix(promptFile, ".toml") {
		promptFile = promptFile + ".toml"
	}

	var promptPath string
	for _, promptDir := range promptDirs {
		candidatePath := filepath.Join(promptDir, promptFile)
		if _, err := os.Stat(candidatePath); err == nil {
			promptPath = candidatePath
		}
	}

	if promptPath == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", promptFile, promptDirs)
	}
	return promptPath, nil
}

// FormatMessage expands the named template around message and returns the
// messages to append to the conversation together with the template.
// Without a template the message is returned as a single user message.
func FormatMessage(message string, promptName string, promptDirs []string, args []string) ([]vchat.Message, *Prompt, error) {
	if promptName == "" {
		return []vchat.Message{vchat.NewMessage(vchat.RoleUser, message)}, nil, nil
	}

	promptPath, err := FindPrompt(promptName, promptDirs)
	if err != nil {
		return nil, nil, err
	}

	promptTemplate, err := LoadPrompt(promptPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading prompt file: %v", err)
	}

	argMap, err := processArgs(args)
	if err != nil {
		return nil, nil, fmt.Errorf("error processing arguments: %v", err)
	}

	replacements := make(map[string]string)
	replacements["input"] = message
	for key, value := range argMap {
		replacements[key] = value
	}

	systemPrompt := promptTemplate.System
	userPrompt := promptTemplate.User
	if userPrompt == "" {
		userPrompt = "{{input}}"
	}
	for key, value := range replacements {
		placeholder := fmt.Sprintf("{{%s}}", key)
		systemPrompt = strings.ReplaceAll(systemPrompt, placeholder, value)
		userPrompt = strings.ReplaceAll(userPrompt, placeholder, value)
	}

	var messages []vchat.Message
	if systemPrompt != "" {
		messages = append(messages, vchat.NewMessage(vchat.RoleSystem, systemPrompt))
	}
	messages = append(messages, vchat.NewMessage(vchat.RoleUser, userPrompt))

	return messages, promptTemplate, nil
}

// processArgs processes the command line arguments and returns a map of key-value pairs
func processArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = strings.Trim(arg, `"`)
		}

		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}

// Template is a prompt file found in one of the prompt directories.
type Template struct {
	Name string // relative path without extension, slash separated
	Dir  string
}

// ListPrompts scans promptDirs recursively for templates, sorted by name.
// A name found in several directories resolves to the last one, like
// FindPrompt. Missing directories are skipped.
func ListPrompts(promptDirs []string) ([]Template, error) {
	found := make(map[string]string)
	for _, promptDir := range promptDirs {
		if _, err := os.Stat(promptDir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(promptDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".toml") {
				return nil
			}
			relPath, err := filepath.Rel(promptDir, path)
			if err != nil {
				return nil
			}
			found[filepath.ToSlash(strings.TrimSuffix(relPath, ".toml"))] = promptDir
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking prompt directory %s: %w", promptDir, err)
		}
	}

	templates := make([]Template, 0, len(found))
	for name, dir := range found {
		templates = append(templates, Template{Name: name, Dir: dir})
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}
