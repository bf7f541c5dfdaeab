package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/llmchat/internal/history"
	"github.com/diogo/llmchat/internal/render"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
		Long: `Manage saved conversations.

` + history.ListAliases(),
	}
	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryDeleteCmd(),
		newHistoryClearCmd(),
		newHistoryExportCmd(),
	)
	return cmd
}

// resolveRecord loads the dependencies and finds the record ref points at
func resolveRecord(deps *Dependencies, ref string) (int, history.Record, error) {
	index, err := history.NewResolver(deps.History).Resolve(ref)
	if err != nil {
		return -1, history.Record{}, err
	}
	return index, deps.History.Records()[index], nil
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			records := deps.History.Records()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations saved yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tTITLE\tMESSAGES\tUPDATED\tID")
			for i, rec := range records {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
					i+1, rec.Title, len(rec.Messages), rec.UpdatedAt.Format("2006-01-02 15:04"), rec.ID)
			}
			return tw.Flush()
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	var showReasoning bool

	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			_, rec, err := resolveRecord(deps, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := render.FromConfig(deps.Config.Markdown, terminalWidth(out))
			if !isTerminal(out) {
				opts = opts.WithStyle("notty")
			}

			fmt.Fprintln(out, assistantLabelStyle.Render(rec.Title))
			for _, m := range rec.Messages {
				fmt.Fprintln(out)
				fmt.Fprintln(out, dimStyle.Render(render.SenderLabel(m.Sender)+":"))
				fmt.Fprintln(out, render.Message(m, opts, showReasoning))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "Include model reasoning")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <ref>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			index, rec, err := resolveRecord(deps, args[0])
			if err != nil {
				return err
			}
			if err := deps.History.Delete(index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", rec.Title)
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			n := deps.History.Len()
			if err := deps.History.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d conversations\n", n)
			return nil
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	var (
		format      string
		output      string
		noReasoning bool
		metadata    bool
	)

	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a saved conversation as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := history.ParseExportFormat(format)
			if err != nil {
				return err
			}

			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			_, rec, err := resolveRecord(deps, args[0])
			if err != nil {
				return err
			}

			opts := history.DefaultExportOptions()
			opts.Format = f
			opts.IncludeThoughts = !noReasoning
			opts.IncludeMetadata = metadata

			data, err := history.Export(rec, opts)
			if err != nil {
				return err
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("Exported to "+output))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&noReasoning, "no-reasoning", false, "Leave out model reasoning")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Include record id and hash (JSON only)")
	return cmd
}
