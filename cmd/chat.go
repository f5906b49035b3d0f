package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/shl518/vchat/internal/chat"
	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/config"
	"github.com/shl518/vchat/internal/vchat/controller"
	promptpkg "github.com/shl518/vchat/internal/vchat/prompt"
	"github.com/shl518/vchat/internal/vchat/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	model       string
	temperature float64
	prompt      string
	argFlags    []string
	useEditor   bool
	noStream    bool
	sessionID   string
	newSession  bool
	sessionName string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the model",
	Long: `Send a message to the model and print the reply.
The reply is streamed from the worker as it is generated. With --no-stream
the request goes through the proxy instead and the reply is printed at once.

For interactive multi-turn conversations, use 'vchat sessions start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

The prompt file should be in TOML format with the following structure:
system = "System prompt with optional {{input}} placeholder"
user = "User prompt with optional {{input}} placeholder"
model = "optional-model-name"  # Optional: overrides the default model for this prompt
temperature = 0.2              # Optional: overrides the default temperature`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if sessionID != "" && newSession {
			return fmt.Errorf("cannot specify both --session and --new-session")
		}
		if sessionID != "" && prompt != "" {
			return fmt.Errorf("cannot use --prompt with existing session")
		}

		message, err := readMessage(args)
		if err != nil {
			return err
		}
		if message == "" {
			return fmt.Errorf("empty message")
		}

		var sess *session.Session
		var store *session.Store
		isNewSession := false

		if sessionID != "" || newSession {
			store, err = openStore()
			if err != nil {
				return err
			}
		}

		if sessionID != "" {
			sess, err = store.FindByPrefix(sessionID)
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
			cfg.Model = sess.Model
			applyModelFlags(cmd, cfg)
			sess.AddMessage(vchat.RoleUser, message)
			logger.Debug("continuing session", "session", sess.GetShortID(), "model", cfg.Model)
		} else {
			messages, tmpl, err := promptpkg.FormatMessage(message, prompt, cfg.PromptDirs, argFlags)
			if err != nil {
				return fmt.Errorf("formatting message with prompt: %w", err)
			}
			if tmpl != nil {
				mc := cfg.ModelConfig()
				tmpl.Apply(&mc)
				cfg.SetModelConfig(mc)
			}
			applyModelFlags(cmd, cfg)

			sess = session.NewSession(cfg.Model)
			sess.Name = sessionName
			sess.TemplateName = prompt
			for _, m := range messages {
				if m.Role == vchat.RoleSystem {
					sess.SystemPrompt = m.Content
				}
			}
			sess.Messages = append(sess.Messages, messages...)
			isNewSession = newSession
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		svc := newChatService(cfg, controller.NewRegistry())
		sessionIndex := 0
		if store != nil && !isNewSession {
			sessionIndex = store.Index(sess.ID)
		}

		reply, err := sendMessage(ctx, svc, sess, sessionIndex, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("chat request failed: %w", err)
		}

		if store == nil {
			return nil
		}
		if reply == "" {
			// nothing to keep for this turn
			sess.Messages = sess.Messages[:len(sess.Messages)-1]
		}
		if err := store.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		if isNewSession {
			fmt.Fprintf(os.Stderr, "\nSession created: %s\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s\n", store.Path(sess.ID))
			fmt.Fprintf(os.Stderr, "\nNext time, use:\n  vchat chat -s %s \"your message\"\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "For interactive mode, use:\n  vchat sessions start %s\n", sess.GetShortID())
		}
		return nil
	},
}

// sendMessage requests a reply to the session's messages and appends it as
// an assistant message. The reply is streamed to out unless --no-stream is
// set. A cancelled stream keeps the partial reply.
func sendMessage(ctx context.Context, svc *chat.Service, sess *session.Session, sessionIndex int, out io.Writer) (string, error) {
	history := append([]vchat.Message(nil), sess.Messages...)
	replyIndex := sess.AddMessage(vchat.RoleAssistant, "")

	if noStream {
		res, err := svc.RequestChat(ctx, history)
		if err != nil {
			return "", err
		}
		if res == nil || len(res.Choices) == 0 {
			return "", fmt.Errorf("no reply from proxy")
		}
		reply := res.Choices[0].Message.Content
		sess.SetContent(replyIndex, reply)
		fmt.Fprintln(out, reply)
		return reply, nil
	}

	printer := newStreamPrinter(out)
	reply, err := svc.Stream(ctx, sessionIndex, replyIndex, history, printer.update)
	printer.end()
	sess.SetContent(replyIndex, reply)
	return reply, err
}

// applyModelFlags applies --model and --temperature over the configuration.
func applyModelFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("model") {
		cfg.Model = model
	}
	if cmd.Flags().Changed("temperature") {
		cfg.Temperature = temperature
	}
}

// readMessage returns the message from the editor, the arguments or stdin.
func readMessage(args []string) (string, error) {
	if useEditor {
		message, err := getMessageFromEditor()
		if err != nil {
			return "", fmt.Errorf("getting message from editor: %w", err)
		}
		return message, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Reading message from stdin (Ctrl+D to send)...")
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(input)), nil
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "vchat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (e.g., vicuna-13b)")
	chatCmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "Sampling temperature")
	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Send the request through the proxy and print the reply at once")

	// Session flags
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID (short or full UUID, or 'latest' for most recent session)")
	chatCmd.Flags().BoolVarP(&newSession, "new-session", "n", false, "Create a new session")
	chatCmd.Flags().StringVar(&sessionName, "session-name", "", "Name for the new session (optional)")
}
