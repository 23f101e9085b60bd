package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"teamboard/internal/api"
	"teamboard/internal/sync"
	"teamboard/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// slogNotifier forwards session events to the log. The TUI reports mutation
// failures inline itself, so the log is the toast collaborator here.
type slogNotifier struct {
	log *slog.Logger
}

func (n slogNotifier) EntityCreated(t sync.EntityType, name string) {
	n.log.Info("created", "type", t.String(), "name", name)
}

func (n slogNotifier) EntityUpdated(t sync.EntityType, id int64) {
	n.log.Info("updated", "type", t.String(), "id", id)
}

func (n slogNotifier) MutationFailed(kind, message string) {
	n.log.Warn("mutation failed", "kind", kind, "message", message)
}

func newRootCmd() *cobra.Command {
	var (
		server   string
		token    string
		interval int
		logPath  string
	)

	cmd := &cobra.Command{
		Use:     "teamboard",
		Short:   "Terminal client for the teamboard project server",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			if env := os.Getenv("TEAMBOARD_SERVER"); server == "" && env != "" {
				server = env
			}
			if env := os.Getenv("TEAMBOARD_TOKEN"); token == "" && env != "" {
				token = env
			}
			if server == "" {
				server = "http://localhost:5000/api"
			}

			// Logging to the terminal would fight the TUI for the screen, so
			// logs go to a file or nowhere.
			logWriter := io.Writer(io.Discard)
			if logPath != "" {
				f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logWriter = f
			}
			logger := slog.New(slog.NewTextHandler(logWriter, nil))

			client := api.New(server, api.BearerToken(token), api.WithLogger(logger))
			session := sync.NewSession(sync.SessionDeps{
				Client:       client,
				Notifier:     slogNotifier{log: logger},
				Logger:       logger,
				PollInterval: time.Duration(interval) * time.Second,
			})
			defer session.StopPolling()

			app := ui.NewApp(session)
			p := tea.NewProgram(app, tea.WithAltScreen())

			// Store changes made outside the TUI loop (poll merges, mutation
			// confirms) are pushed into the program as messages.
			for _, t := range []sync.EntityType{sync.EntityProject, sync.EntityTask, sync.EntityMessage} {
				session.Subscribe(t, func() {
					go p.Send(ui.StoreChangedMsg{Type: t})
				})
			}

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run application: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "API base URL (default http://localhost:5000/api, or $TEAMBOARD_SERVER)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for API auth (or $TEAMBOARD_TOKEN)")
	cmd.Flags().IntVar(&interval, "interval", 10, "poll interval in seconds")
	cmd.Flags().StringVar(&logPath, "log", "", "write logs to this file")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
