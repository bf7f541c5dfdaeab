package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/llmchat/internal/chat"
	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/render"
	"github.com/diogo/llmchat/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var continueRef string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Keys:
  Enter     send            Esc      stop the answer / quit
  Ctrl+R    regenerate      Ctrl+N   new conversation
  Ctrl+H    history         Ctrl+K   API configurations
  Ctrl+T    toggle reasoning

Commands typed in the input: /new, /history, /api, /exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := tui.NewStatusLine()

			deps, err := NewDependencies(status)
			if err != nil {
				return err
			}
			defer deps.Close()

			if opts.apiRef != "" {
				cfg, err := resolveAPIConfig(deps.Configs, opts.apiRef)
				if err != nil {
					return err
				}
				if err := deps.Configs.Select(cfg.ID); err != nil {
					return err
				}
			}

			loop := chat.NewLoop(256)
			defer loop.Close()

			ctrl := chat.NewController(chat.NewState(), deps.Transport, deps.Configs, deps.History, loop,
				chat.WithLogger(deps.Logger),
				chat.WithNotifier(status),
				chat.WithHistoryLimit(deps.Config.HistoryLimit),
			)
			deps.Configs.SetCanceller(ctrl)

			if continueRef != "" {
				index, err := history.NewResolver(deps.History).Resolve(continueRef)
				if err != nil {
					return fmt.Errorf("cannot continue %q: %w", continueRef, err)
				}
				if err := ctrl.OpenConversation(index); err != nil {
					return err
				}
			}

			deps.Logger.Info("chat started", "configs", len(deps.Configs.List()), "records", deps.History.Len())
			return tui.Run(tui.Options{
				Controller: ctrl,
				Loop:       loop,
				Configs:    deps.Configs,
				History:    deps.History,
				Render:     render.FromConfig(deps.Config.Markdown, 0),
				Status:     status,
			})
		},
	}

	cmd.Flags().StringVarP(&continueRef, "continue", "c", "", "Resume a saved conversation (@last, index, id or title)")
	return cmd
}
