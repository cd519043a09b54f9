package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/newschat/internal/client"
	"github.com/ashureev/newschat/internal/config"
	"github.com/ashureev/newschat/internal/tokenstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app holds what every subcommand needs once flags and env are resolved.
type app struct {
	cfg    *config.ClientConfig
	api    *client.Client
	tokens *tokenstore.Store
	logger *slog.Logger
}

type rootFlags struct {
	baseURL   string
	wsURL     string
	statePath string
	verbose   bool
}

// newRootCmd builds the command tree. Callers must call close on the returned
// app once Execute returns, whether or not the command failed.
func newRootCmd() (*cobra.Command, *app) {
	var flags rootFlags
	a := &app{}

	root := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with the news chatbot from your terminal",
		Long: `A terminal client for the news chatbot backend.

Quick Start:
  chatcli start                 # Create a session and remember its token
  chatcli chat                  # Interactive chat over WebSocket
  chatcli ask "what's new?"     # One-shot question over REST
  chatcli history               # Show the current session's messages
  chatcli clear                 # End the session and forget the token`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "Backend REST base URL (overrides CHAT_BASE_URL)")
	root.PersistentFlags().StringVar(&flags.wsURL, "ws-url", "", "Backend WebSocket base URL (overrides CHAT_WS_URL)")
	root.PersistentFlags().StringVar(&flags.statePath, "state", "", "Path of the local state database (overrides CHAT_STATE_PATH)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newStartCmd(a),
		newClearCmd(a),
		newHistoryCmd(a),
		newAskCmd(a),
		newChatCmd(a),
	)
	return root, a
}

func (a *app) init(cmd *cobra.Command, flags rootFlags) error {
	// .env is optional for the client.
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}
	if flags.wsURL != "" {
		cfg.WSURL = flags.wsURL
	}
	if flags.statePath != "" {
		cfg.StatePath = flags.statePath
	}
	if flags.verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(a.logger)

	tokens, err := tokenstore.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.api = client.New(cfg.BaseURL, nil)
	a.tokens = tokens
	a.logger.Debug("Client configured", "base_url", cfg.BaseURL, "state", cfg.StatePath)
	return nil
}

func (a *app) close() {
	if a.tokens == nil {
		return
	}
	if err := a.tokens.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close state database: %v\n", err)
	}
	a.tokens = nil
}
