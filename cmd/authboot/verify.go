package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/report"
)

type verifyOptions struct {
	Root   rootFlags
	JSON   bool
	Stdout io.Writer
	Stderr io.Writer
}

var verifyCmdRunner = runVerify

func newVerifyCmd(root *rootFlags) *cobra.Command {
	opts := verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the target's public authentication endpoints without changing anything",
		Long: `Verify probes the forward-auth, authorize, token and userinfo endpoints and
classifies each answer against its expected status set. Returns exit code 0
when every endpoint works, 1 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Root = *root
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			return verifyCmdRunner(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output results in JSON format")

	return cmd
}

func runVerify(ctx context.Context, opts verifyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, app, err := newAppContext(ctx, opts.Root, logLevel(opts.Root.verbose, false), opts.Stderr)
	if err != nil {
		return err
	}

	summary, err := runVerification(ctx, app)
	if err != nil {
		return err
	}

	if opts.JSON {
		if err := writeVerificationJSON(opts.Stdout, app.target.BaseURL, summary); err != nil {
			return err
		}
	} else if err := report.WriteVerification(opts.Stdout, app.target.BaseURL, summary); err != nil {
		return err
	}

	if !summary.Healthy() {
		return &exitError{code: 1, reason: fmt.Sprintf("%d of %d endpoints not working", summary.Total-summary.Working, summary.Total)}
	}
	return nil
}

type verificationJSON struct {
	Target  string                         `json:"target"`
	Healthy bool                           `json:"healthy"`
	Summary *bootstrap.VerificationSummary `json:"summary"`
}

func writeVerificationJSON(w io.Writer, target string, summary *bootstrap.VerificationSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(verificationJSON{
		Target:  target,
		Healthy: summary.Healthy(),
		Summary: summary,
	})
}
