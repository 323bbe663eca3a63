package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	envFile    string
	verbose    bool
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "authboot",
		Short:         "authboot bootstraps an Authentik instance for forward-auth and OAuth2",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to a dotenv file (default .env when present)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newApplyCmd(flags))
	cmd.AddCommand(newVerifyCmd(flags))
	cmd.AddCommand(newPlaybookCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
