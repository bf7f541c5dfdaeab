// Package commands provides the CLI commands for llmchat.
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootOptions are the flags of the root command and its one-shot ask
type rootOptions struct {
	apiRef      string
	continueRef string
	file        string
	output      string
	raw         bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "llmchat [prompt]",
		Short: "Chat with LLM backends from the terminal",
		Long: `llmchat streams answers from OpenAI-compatible, Gemini, Ollama and
Anthropic backends, keeps a local history of conversations and offers an
interactive chat screen.

Examples:
  llmchat api add --name openai --provider openai --key-env OPENAI_API_KEY
  llmchat chat                          Start interactive chat
  llmchat "What is Go?"                 Ask a single question
  llmchat -c @last "And in Rust?"       Continue the last conversation
  llmchat -f prompt.md                  Read prompt from file
  cat prompt.md | llmchat               Read prompt from stdin
  llmchat "Hello" -o response.md        Save response to file`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "llmchat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, err := readPrompt(cmd, args, opts.file)
			if err != nil {
				return err
			}
			if prompt == "" {
				return cmd.Help()
			}
			return runAsk(cmd, opts, prompt)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.apiRef, "api", "", "API configuration to use (id or name)")
	cmd.Flags().StringVarP(&opts.continueRef, "continue", "c", "", "Continue a saved conversation (@last, index, id or title)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read prompt from file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save response to file")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Stream plain text even on a terminal")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(
		newChatCmd(opts),
		newAPICmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// readPrompt takes the prompt from --file, the argument, or piped stdin
func readPrompt(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
