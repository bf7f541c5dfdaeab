package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/llmchat/internal/models"
)

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Manage backend API configurations",
	}
	cmd.AddCommand(
		newAPIListCmd(),
		newAPIAddCmd(),
		newAPIUpdateCmd(),
		newAPIDeleteCmd(),
		newAPISelectCmd(),
		newAPIClearCmd(),
	)
	return cmd
}

func newAPIListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List API configurations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			configs := deps.Configs.List()
			if len(configs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No API configurations. Add one with 'llmchat api add'.")
				return nil
			}

			selected := deps.Configs.SelectedID()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tPROVIDER\tMODEL\tADDRESS\tKEY")
			for _, c := range configs {
				mark := " "
				if c.ID == selected {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					mark, c.ID, c.Label(), c.Provider, c.Model, c.Address, c.MaskedCredential())
			}
			return tw.Flush()
		},
	}
}

// apiFlags are the fields of an API configuration given on the command line
type apiFlags struct {
	name     string
	provider string
	address  string
	key      string
	keyEnv   string
	model    string
}

func (f *apiFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.provider, "provider", string(models.ProviderOpenAI), "Wire protocol: openai, gemini, ollama, anthropic or mock")
	cmd.Flags().StringVar(&f.address, "address", "", "Base URL (defaults to the provider's public endpoint)")
	cmd.Flags().StringVar(&f.key, "key", "", "API key")
	cmd.Flags().StringVar(&f.keyEnv, "key-env", "", "Read the API key from this environment variable")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (defaults per provider)")
}

func (f *apiFlags) credential() (string, error) {
	if f.keyEnv == "" {
		return f.key, nil
	}
	v := os.Getenv(f.keyEnv)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty", f.keyEnv)
	}
	return v, nil
}

func newAPIAddCmd() *cobra.Command {
	var f apiFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an API configuration and select it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			key, err := f.credential()
			if err != nil {
				return err
			}
			cfg, err := deps.Configs.Add(models.APIConfig{
				Name:       f.name,
				Provider:   models.Provider(f.provider),
				Address:    f.address,
				Credential: key,
				Model:      f.model,
			})
			if err != nil {
				return err
			}
			if err := deps.Configs.Select(cfg.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newAPIUpdateCmd() *cobra.Command {
	var f apiFlags

	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Change fields of an API configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			cfg, err := resolveAPIConfig(deps.Configs, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			changed := false
			if flags.Changed("name") {
				cfg.Name, changed = f.name, true
			}
			if flags.Changed("provider") {
				cfg.Provider, changed = models.Provider(f.provider), true
			}
			if flags.Changed("address") {
				cfg.Address, changed = f.address, true
			}
			if flags.Changed("model") {
				cfg.Model, changed = f.model, true
			}
			if flags.Changed("key") || flags.Changed("key-env") {
				key, err := f.credential()
				if err != nil {
					return err
				}
				cfg.Credential, changed = key, true
			}
			if !changed {
				return errors.New("nothing to update: pass at least one flag")
			}
			return deps.Configs.Update(cfg)
		},
	}
	f.register(cmd)
	return cmd
}

func newAPIDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|name>",
		Aliases: []string{"rm"},
		Short:   "Delete an API configuration",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			cfg, err := resolveAPIConfig(deps.Configs, args[0])
			if err != nil {
				return err
			}
			return deps.Configs.Delete(cfg.ID)
		},
	}
}

func newAPISelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id|name>",
		Short: "Select the API configuration used by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			cfg, err := resolveAPIConfig(deps.Configs, args[0])
			if err != nil {
				return err
			}
			return deps.Configs.Select(cfg.ID)
		},
	}
}

func newAPIClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every API configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := NewDependencies(noticePrinter{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer deps.Close()

			return deps.Configs.Clear()
		},
	}
}
