package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/newschat/internal/chat"
	"github.com/ashureev/newschat/internal/transport"
	"github.com/spf13/cobra"
)

const quitCommand = "/quit"

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat over WebSocket",
		Long: `Start an interactive chat session over WebSocket.

Type a message and press Enter to send it. Type /quit or close input to exit.
A new session is started when none is stored or the stored one expired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	token, created, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintln(out, renderNotice("Started new session "+token))
	}

	mgr := transport.NewManager(transport.Config{
		BaseURL:              a.cfg.RealtimeURL(),
		MaxReconnectAttempts: a.cfg.ReconnectAttempts,
		ReconnectDelay:       a.cfg.ReconnectDelay,
	}, transport.WithLogger(a.logger))

	ctrl := chat.NewController(mgr, a.tokens,
		chat.WithHistory(a.api),
		chat.WithLogger(a.logger),
	)
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	waitOpen(ctx, mgr, transport.DefaultConfig().DialTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)
	printed := 0
	wasThinking := false
	inputDone := false

	flush := func() {
		msgs := ctrl.Messages()
		for ; printed < len(msgs); printed++ {
			fmt.Fprintln(out, renderMessage(msgs[printed]))
		}
		thinking := ctrl.IsThinking()
		if thinking && !wasThinking {
			fmt.Fprintln(out, renderThinking())
		}
		wasThinking = thinking
	}
	flush()

	for {
		if inputDone && !ctrl.IsThinking() {
			flush()
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ctrl.Updates():
			flush()
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == quitCommand {
				inputDone = true
				lines = nil
				continue
			}
			ctrl.Submit(ctx, line)
			flush()
		}
	}
}

// readLines streams lines from r until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// waitOpen blocks until the transport reports open, ctx ends or timeout
// elapses. Messages typed before the connection opens would otherwise fail.
func waitOpen(ctx context.Context, mgr *transport.Manager, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for mgr.State() != transport.StateOpen {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}
