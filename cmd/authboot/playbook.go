package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/authboot/internal/report"
)

type playbookOptions struct {
	Root   rootFlags
	Output string
	Stdout io.Writer
	Stderr io.Writer
}

func newPlaybookCmd(root *rootFlags) *cobra.Command {
	opts := playbookOptions{}

	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Print manual instructions for every bootstrap step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Root = *root
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			return runPlaybook(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the playbook to this file instead of stdout")

	return cmd
}

func runPlaybook(ctx context.Context, opts playbookOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, app, err := newAppContext(ctx, opts.Root, logLevel(opts.Root.verbose, false), opts.Stderr)
	if err != nil {
		return err
	}

	data := report.FullPlaybook(app.target, app.cfg.StepOptions())
	if opts.Output == "" {
		return report.WritePlaybook(opts.Stdout, data)
	}
	if err := report.WritePlaybookFile(opts.Output, data); err != nil {
		return err
	}
	app.logger.Info(ctx, "playbook written", "path", opts.Output)
	fmt.Fprintf(opts.Stdout, "Playbook written to %s\n", opts.Output)
	return nil
}
