package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/newschat/internal/client"
	"github.com/spf13/cobra"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Create a new session and store its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session started: "+tokenStyle.Render(token))
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the server session and forget the local token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			token, err := a.tokens.Get(ctx)
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), renderNotice("No active session."))
				return nil
			}
			if err := a.api.ClearSession(ctx, token); err != nil && !client.IsNotFound(err) {
				return err
			}
			if err := a.tokens.Remove(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the messages of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			token, err := a.tokens.Get(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if token == "" {
				fmt.Fprintln(out, renderNotice("No active session. Run 'chatcli start' first."))
				return nil
			}
			history, err := a.api.FetchHistory(ctx, token)
			if client.IsNotFound(err) {
				_ = a.tokens.Remove(ctx)
				fmt.Fprintln(out, renderNotice("Session expired."))
				return nil
			}
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(out, renderNotice("No messages yet."))
				return nil
			}
			for _, m := range history {
				fmt.Fprintln(out, renderMessage(m))
			}
			return nil
		},
	}
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question over REST",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			token, err := a.tokens.Get(ctx)
			if err != nil {
				return err
			}
			res, err := a.api.Query(ctx, token, query)
			if client.IsUnauthorized(err) && token != "" {
				a.logger.Info("Stored session expired, starting a new one")
				res, err = a.api.Query(ctx, "", query)
			}
			if err != nil {
				return err
			}
			if res.SessionToken != token {
				if err := a.tokens.Set(ctx, res.SessionToken); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
			return nil
		},
	}
}

// newSession creates a server session and stores its token.
func (a *app) newSession(ctx context.Context) (string, error) {
	token, err := a.api.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	if err := a.tokens.Set(ctx, token); err != nil {
		return "", err
	}
	return token, nil
}

// ensureSession returns the stored token if the server still knows it, and
// otherwise starts a new session.
func (a *app) ensureSession(ctx context.Context) (token string, created bool, err error) {
	token, err = a.tokens.Get(ctx)
	if err != nil {
		return "", false, err
	}
	if token != "" {
		_, err := a.api.FetchHistory(ctx, token)
		if err == nil {
			return token, false, nil
		}
		if !client.IsNotFound(err) {
			return "", false, err
		}
		a.logger.Info("Stored session expired, starting a new one")
	}
	token, err = a.newSession(ctx)
	return token, err == nil, err
}
