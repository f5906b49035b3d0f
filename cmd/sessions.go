package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/shl518/vchat/internal/chat"
	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/controller"
	"github.com/shl518/vchat/internal/vchat/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// topicPrompt asks the model for a short title of the conversation.
const topicPrompt = "Summarize the topic of our conversation in no more than five words. Reply with the title only, without quotes or punctuation."

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
	Long: `Manage conversation sessions including listing, viewing, and deleting sessions.

Sessions allow you to maintain conversation history across multiple interactions.`,
}

// sessionsListCmd represents the sessions list command
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Long:  `List all conversation sessions sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		sessions, err := store.List()
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			fmt.Println("\nCreate a new session with:")
			fmt.Println("  vchat chat --new-session \"your message\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODEL\tCREATED\tMESSAGES\tNAME")
		fmt.Fprintln(w, "--\t-----\t-------\t--------\t----")
		for _, sess := range sessions {
			name := sess.GetDisplayName()
			if name == sess.GetShortID() {
				name = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				sess.GetShortID(),
				sess.Model,
				sess.CreatedAt.Format("2006-01-02"),
				sess.MessageCount(),
				name,
			)
		}
		w.Flush()

		fmt.Println("\nUse 'vchat sessions show <id>' to view session details.")
		return nil
	},
}

// sessionsShowCmd represents the sessions show command
var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show session details and history",
	Long: `Show detailed information about a session including all messages.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := findSession(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Session: %s\n", sess.ID)
		if sess.Name != "" {
			fmt.Printf("Name: %s\n", sess.Name)
		}
		if sess.Topic != "" {
			fmt.Printf("Topic: %s\n", sess.Topic)
		}
		fmt.Printf("Model: %s\n", sess.Model)
		fmt.Printf("Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
		if sess.TemplateName != "" {
			fmt.Printf("Template: %s\n", sess.TemplateName)
		}
		if sess.SystemPrompt != "" {
			fmt.Printf("System Prompt: %s\n", sess.SystemPrompt)
		}
		fmt.Printf("Messages: %d\n", sess.MessageCount())
		fmt.Println()

		if len(sess.Messages) == 0 {
			fmt.Println("No messages in this session.")
			return nil
		}

		fmt.Println("Message History:")
		fmt.Println("----------------")
		for i, msg := range sess.Messages {
			roleLabel := "You"
			switch msg.Role {
			case vchat.RoleAssistant:
				roleLabel = "Assistant"
			case vchat.RoleSystem:
				roleLabel = "System"
			}
			fmt.Printf("\n[%d] %s (%s):\n%s\n", i+1, roleLabel, msg.Date, msg.Content)
		}

		fmt.Printf("\nContinue this session with:\n  vchat chat -s %s \"your message\"\n", sess.GetShortID())
		return nil
	},
}

// sessionsDeleteCmd represents the sessions delete command
var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Long: `Delete a conversation session permanently.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent session.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		if !confirm(fmt.Sprintf("Are you sure you want to delete session %s?", sess.GetShortID())) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		if err := store.Delete(sess.ID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		fmt.Printf("Session %s deleted successfully.\n", sess.GetShortID())
		return nil
	},
}

// sessionsRenameCmd represents the sessions rename command
var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a session",
	Long: `Rename a conversation session.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent session.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		sess.Name = args[1]
		if err := store.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		fmt.Printf("Session %s renamed to %q.\n", sess.GetShortID(), sess.Name)
		return nil
	},
}

// sessionsClearCmd represents the sessions clear command
var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old sessions",
	Long: `Delete old conversation sessions permanently.

By default, deletes sessions created more than session_retention_days (30) days ago.
Use --before to specify a different date, or --all to delete all sessions.

Warning: This action cannot be undone.

Examples:
  vchat sessions clear                      # Delete sessions older than the retention period
  vchat sessions clear --before 2024-01-01  # Delete sessions created before 2024-01-01
  vchat sessions clear --before 2024-12     # Delete sessions created before 2024-12-01
  vchat sessions clear --all                # Delete all sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")

		store, err := openStore()
		if err != nil {
			return err
		}

		var sessionsToDelete []session.Session
		var question string

		switch {
		case deleteAll:
			sessionsToDelete, err = store.List()
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			question = fmt.Sprintf("Are you sure you want to delete all %d sessions?", len(sessionsToDelete))
		case beforeDateStr != "":
			beforeDate, err := parseDate(beforeDateStr)
			if err != nil {
				return fmt.Errorf("parsing date: %w", err)
			}
			sessionsToDelete, err = store.CreatedBefore(beforeDate)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			question = fmt.Sprintf("Are you sure you want to delete %d sessions created before %s?",
				len(sessionsToDelete), beforeDate.Format("2006-01-02"))
		default:
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			beforeDate := time.Now().AddDate(0, 0, -cfg.SessionRetentionDays)
			sessionsToDelete, err = store.CreatedBefore(beforeDate)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			question = fmt.Sprintf("Are you sure you want to delete %d sessions older than %d days (created before %s)?",
				len(sessionsToDelete), cfg.SessionRetentionDays, beforeDate.Format("2006-01-02"))
		}

		if len(sessionsToDelete) == 0 {
			fmt.Println("No sessions to delete.")
			return nil
		}
		if !confirm(question) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		deleted := 0
		failed := 0
		for _, sess := range sessionsToDelete {
			if err := store.Delete(sess.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete session %s: %v\n", sess.GetShortID(), err)
				failed++
			} else {
				deleted++
			}
		}

		fmt.Printf("Successfully deleted %d sessions", deleted)
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println(".")
		return nil
	},
}

// sessionsTopicCmd represents the sessions topic command
var sessionsTopicCmd = &cobra.Command{
	Use:   "topic <id>",
	Short: "Generate a topic for a session",
	Long: `Ask the model for a short topic summarizing the session and store it.
The request goes through the proxy without streaming.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}
		if sess.MessageCount() == 0 {
			return fmt.Errorf("session %s has no messages", sess.GetShortID())
		}

		cfg.Model = sess.Model
		svc := newChatService(cfg, nil)

		topic, err := svc.RequestWithPrompt(cmd.Context(), sess.Messages, topicPrompt)
		if err != nil {
			return fmt.Errorf("requesting topic: %w", err)
		}
		topic = strings.Trim(strings.TrimSpace(topic), `"'.`)
		if topic == "" {
			return fmt.Errorf("no topic returned")
		}

		sess.Topic = topic
		if err := store.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		fmt.Println(topic)
		return nil
	},
}

// sessionsStartCmd represents the sessions start command
var sessionsStartCmd = &cobra.Command{
	Use:   "start [session-id]",
	Short: "Start an interactive session",
	Long: `Start an interactive chat session with continuous conversation.

You can either start a new session or continue an existing one by providing its ID.
The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent session.

Press Ctrl+C while a reply is streaming to stop it. Press Ctrl+C again, or
type '/exit', to stop everything and quit.

Examples:
  vchat sessions start                # Start a new interactive session
  vchat sessions start 550e8400       # Continue session 550e8400 in interactive mode
  vchat sessions start latest         # Continue latest session in interactive mode`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		var sess *session.Session
		if len(args) > 0 {
			sess, err = store.FindByPrefix(args[0])
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
			cfg.Model = sess.Model
			logger.Debug("continuing session", "session", sess.GetShortID(), "model", sess.Model)
		} else {
			sess = session.NewSession(cfg.Model)
			if err := store.Save(sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Session created: %s\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s\n\n", store.Path(sess.ID))
		}

		registry := controller.NewRegistry()
		svc := newChatService(cfg, registry)

		if err := runInteractiveMode(cmd.Context(), svc, store, sess); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

// interrupter routes Ctrl+C: the first one stops the current turn, the
// next one (or one while idle) stops every stream and quits.
type interrupter struct {
	registry *controller.Registry
	quit     func()

	mu         sync.Mutex
	cancelTurn context.CancelFunc // nil while idle
	session    int
	message    int
}

// begin starts a turn and returns its context. Interrupting the turn
// cancels that context, which also covers a request still being sent.
func (in *interrupter) begin(ctx context.Context, sessionIndex, messageIndex int) context.Context {
	turnCtx, cancel := context.WithCancel(ctx)
	in.mu.Lock()
	defer in.mu.Unlock()
	in.cancelTurn = cancel
	in.session = sessionIndex
	in.message = messageIndex
	return turnCtx
}

func (in *interrupter) end() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancelTurn != nil {
		in.cancelTurn()
		in.cancelTurn = nil
	}
}

func (in *interrupter) interrupt() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancelTurn != nil {
		in.registry.Stop(in.session, in.message)
		in.cancelTurn()
		in.cancelTurn = nil
		return
	}
	in.registry.StopAll()
	in.quit()
}

// runInteractiveMode starts an interactive chat session
func runInteractiveMode(ctx context.Context, svc *chat.Service, store *session.Store, sess *session.Session) error {
	fmt.Fprintf(os.Stderr, "\n=== Interactive Session [%s] ===\n", sess.GetShortID())
	fmt.Fprintf(os.Stderr, "Model: %s\n", sess.Model)
	if sess.SystemPrompt != "" {
		fmt.Fprintf(os.Stderr, "System Prompt: %s\n", sess.SystemPrompt)
	}
	fmt.Fprintf(os.Stderr, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(os.Stderr, "===================================\n\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := svc.Registry()
	in := &interrupter{
		registry: registry,
		quit: func() {
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			cancel()
			os.Exit(130)
		},
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-sigCh:
				in.interrupt()
			case <-ctx.Done():
				return
			}
		}
	}()

	defer func() {
		if n := registry.Len(); n > 0 {
			logger.Debug("stopping streams", "count", n)
			registry.StopAll()
		}
	}()

	sessionIndex := store.Index(sess.ID)
	scanner := bufio.NewScanner(os.Stdin)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	for {
		if interactive {
			fmt.Fprint(os.Stderr, "You> ")
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleSpecialCommand(input, sess) {
				continue
			}
			return nil
		}

		sess.AddMessage(vchat.RoleUser, input)

		fmt.Fprint(os.Stdout, "\nAssistant> ")
		turnCtx := in.begin(ctx, sessionIndex, len(sess.Messages))
		reply, err := sendMessage(turnCtx, svc, sess, sessionIndex, os.Stdout)
		in.end()
		fmt.Println()

		switch {
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "(stopped)")
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if reply == "" {
			// drop the unanswered turn
			sess.Messages = sess.Messages[:len(sess.Messages)-2]
			continue
		}

		if err := store.Save(sess); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
		}
	}
}

// handleSpecialCommand processes special commands in interactive mode
// Returns true to continue the loop, false to exit
func handleSpecialCommand(command string, sess *session.Session) bool {
	command = strings.ToLower(strings.TrimSpace(command))

	switch command {
	case "/help", "/h":
		fmt.Fprintln(os.Stderr, "\nAvailable commands:")
		fmt.Fprintln(os.Stderr, "  /help, /h     - Show this help message")
		fmt.Fprintln(os.Stderr, "  /info, /i     - Show session information")
		fmt.Fprintln(os.Stderr, "  /clear, /c    - Clear screen (Unix/Linux only)")
		fmt.Fprintln(os.Stderr, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "  Ctrl+C        - Stop the streaming reply")
		fmt.Fprintln(os.Stderr, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/info", "/i":
		fmt.Fprintln(os.Stderr, "\nSession Information:")
		fmt.Fprintf(os.Stderr, "  ID: %s\n", sess.GetShortID())
		fmt.Fprintf(os.Stderr, "  Full ID: %s\n", sess.ID)
		if sess.Name != "" {
			fmt.Fprintf(os.Stderr, "  Name: %s\n", sess.Name)
		}
		if sess.Topic != "" {
			fmt.Fprintf(os.Stderr, "  Topic: %s\n", sess.Topic)
		}
		fmt.Fprintf(os.Stderr, "  Model: %s\n", sess.Model)
		fmt.Fprintf(os.Stderr, "  Messages: %d\n", sess.MessageCount())
		fmt.Fprintf(os.Stderr, "  Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
		if sess.TemplateName != "" {
			fmt.Fprintf(os.Stderr, "  Template: %s\n", sess.TemplateName)
		}
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/clear", "/c":
		fmt.Print("\033[H\033[2J")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(os.Stderr, "Goodbye!")
		return false

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

// findSession looks a session up by prefix in the default store.
func findSession(prefix string) (*session.Session, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	sess, err := store.FindByPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return sess, nil
}

// confirm asks a yes/no question on stdout.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsTopicCmd)
	sessionsCmd.AddCommand(sessionsStartCmd)

	sessionsClearCmd.Flags().String("before", "", "Delete only sessions created before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	sessionsClearCmd.Flags().Bool("all", false, "Delete all sessions (overrides retention days setting)")
}
