package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/diogo/llmchat/internal/chat"
	apierrors "github.com/diogo/llmchat/internal/errors"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/models"
	"github.com/diogo/llmchat/internal/render"
)

// errStopped is returned when the user interrupts a one-shot answer
var errStopped = errors.New("response stopped")

// runAsk sends one prompt and prints the streamed answer
func runAsk(cmd *cobra.Command, opts *rootOptions, prompt string) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	deps, err := NewDependencies(noticePrinter{w: stderr})
	if err != nil {
		return err
	}
	defer deps.Close()

	var configs chat.ConfigSource = deps.Configs
	if opts.apiRef != "" {
		cfg, err := resolveAPIConfig(deps.Configs, opts.apiRef)
		if err != nil {
			return err
		}
		configs = fixedConfig{cfg: cfg}
	}

	decorated := isTerminal(stdout) && !opts.raw && opts.output == ""
	streamPlain := !decorated && opts.output == ""

	var spin *spinner
	observer := func(ev chat.Event) {
		if ev.Kind != chat.EventIncrement {
			return
		}
		if streamPlain && ev.Increment.Text != "" {
			fmt.Fprint(stdout, ev.Increment.Text)
		}
		if spin != nil {
			spin.progress(len(ev.Increment.Text) + len(ev.Increment.Reasoning))
		}
	}

	loop := chat.NewLoop(64)
	defer loop.Close()

	ctrl := chat.NewController(chat.NewState(), deps.Transport, configs, deps.History, loop,
		chat.WithLogger(deps.Logger),
		chat.WithNotifier(noticePrinter{w: stderr}),
		chat.WithObserver(observer),
		chat.WithHistoryLimit(deps.Config.HistoryLimit),
	)
	defer ctrl.Close()

	if opts.continueRef != "" {
		index, err := history.NewResolver(deps.History).Resolve(opts.continueRef)
		if err != nil {
			return fmt.Errorf("cannot continue %q: %w", opts.continueRef, err)
		}
		if err := ctrl.OpenConversation(index); err != nil {
			return err
		}
	}

	if decorated {
		spin = newSpinner(stderr, "Thinking...")
		spin.start()
		defer spin.finish()
	}

	s, err := ctrl.Start(prompt)
	if err != nil {
		if errors.Is(err, apierrors.ErrNoActiveConfig) {
			return fmt.Errorf("%w: add one with 'llmchat api add'", err)
		}
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	go func() {
		select {
		case <-sigCtx.Done():
			loop.Post(ctrl.Stop)
		case <-s.Done():
		}
	}()

	if err := loop.RunUntil(context.Background(), s.Done()); err != nil {
		return err
	}
	if spin != nil {
		spin.finish()
	}

	msg, _ := ctrl.State().Message(s.TargetID())
	switch s.State() {
	case chat.StateFailed:
		return errors.New(apierrors.DisplayMessage(s.Err()))
	case chat.StateCancelled:
		if streamPlain && msg.Text != "" {
			fmt.Fprintln(stdout)
		}
		return errStopped
	}

	return printAnswer(cmd, deps, opts, msg, decorated, streamPlain)
}

func printAnswer(cmd *cobra.Command, deps *Dependencies, opts *rootOptions, msg models.Message, decorated, streamed bool) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	switch {
	case opts.output != "":
		if err := os.WriteFile(opts.output, []byte(msg.Text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintln(stderr, successStyle.Render("Response saved to "+opts.output))
	case decorated:
		width := terminalWidth(stdout)
		bubbleWidth := width - 4
		if bubbleWidth < 20 {
			bubbleWidth = 20
		}
		ropts := render.FromConfig(deps.Config.Markdown, bubbleWidth-4)

		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, assistantLabelStyle.Render(render.SenderLabel(models.SenderAssistant)))
		if r := strings.TrimSpace(msg.Reasoning); r != "" {
			fmt.Fprintln(stdout, reasoningStyle.Width(bubbleWidth).Render(r))
		}
		body := render.MarkdownOrPlain(msg.Text, ropts)
		fmt.Fprintln(stdout, assistantBubbleStyle.Width(bubbleWidth).Render(body))
	case streamed:
		if !strings.HasSuffix(msg.Text, "\n") {
			fmt.Fprintln(stdout)
		}
	}

	if deps.Config.CopyToClipboard {
		if err := clipboard.WriteAll(msg.Text); err != nil {
			deps.Logger.Warn("failed to copy response", "error", err)
			fmt.Fprintln(stderr, warnStyle.Render("Could not copy to clipboard"))
		} else {
			fmt.Fprintln(stderr, dimStyle.Render("Copied to clipboard"))
		}
	}
	return nil
}
