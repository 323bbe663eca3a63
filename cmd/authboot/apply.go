package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/engine"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
	"github.com/alexisbeaulieu97/authboot/internal/report"
	"github.com/alexisbeaulieu97/authboot/internal/steps"
	"github.com/alexisbeaulieu97/authboot/internal/tui"
	"github.com/alexisbeaulieu97/authboot/internal/verify"
)

const logBufferLimit = 1000

type applyOptions struct {
	Root           rootFlags
	Report         string
	CredentialsEnv string
	DiagnosticsDir string
	PlaybookFile   string
	NoVerify       bool
	NonInteractive bool
	Stdout         io.Writer
	Stderr         io.Writer
}

var applyCmdRunner = runApply

func newApplyCmd(root *rootFlags) *cobra.Command {
	opts := applyOptions{}
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Bootstrap the target: admin, session, providers, outpost and application",
		Long: `Apply runs the six bootstrap steps in order against the configured target.
Steps already satisfied on the target are left untouched, so apply can be
rerun safely. Exit code 0 means every step succeeded, 2 means a best-effort
step was skipped, 1 means the run aborted or the configuration is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Root = *root
			opts.NonInteractive = noTUI || !term.IsTerminal(int(os.Stdout.Fd()))
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			return applyCmdRunner(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Report, "report", "", "Write the run report to this file (.json or .yaml)")
	cmd.Flags().StringVar(&opts.CredentialsEnv, "credentials-env", "", "Write captured OAuth2 credentials to this env file")
	cmd.Flags().StringVar(&opts.DiagnosticsDir, "diagnostics-dir", "", "Directory for the snapshot taken when a run aborts")
	cmd.Flags().StringVar(&opts.PlaybookFile, "playbook-file", "", "Write manual completion instructions here when the run does not succeed")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "Skip the endpoint checks after the run")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print plain output even on an interactive terminal")

	return cmd
}

func runApply(ctx context.Context, opts applyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	interactive := !opts.NonInteractive

	ctx, app, err := newAppContext(ctx, opts.Root, logLevel(opts.Root.verbose, interactive), opts.Stderr)
	if err != nil {
		return err
	}
	overrideOutputs(app, opts)

	base := app.logger
	var buffer *logging.Buffer
	if interactive {
		buffer = logging.NewBuffer(logBufferLimit)
		app.useLogger(buffer.Logger())
	}
	log := app.logger.With("run_id", app.runID)
	log.Info(ctx, "configuration loaded", app.cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	drv, err := openDriver(ctx, app.cfg, app.target, app.logger)
	if err != nil {
		flushLogs(buffer, base)
		return err
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			base.Warn(ctx, "close driver", "error", cerr)
		}
	}()

	stepOpts := app.cfg.StepOptions()
	catalog := steps.Catalog(stepOpts)
	runner, err := engine.NewRunner(drv, app.target, catalog,
		engine.WithLogger(app.logger),
		engine.WithEvents(app.publisher),
		engine.WithSettings(app.cfg.RunSettings()),
		engine.WithRunID(app.runID),
	)
	if err != nil {
		flushLogs(buffer, base)
		return err
	}

	metas := make([]bootstrap.StepMetadata, 0, len(catalog))
	for _, step := range catalog {
		metas = append(metas, step.Metadata())
	}

	var program *tea.Program
	var programErr error
	done := make(chan struct{})
	if interactive {
		program = tea.NewProgram(tui.NewModel(app.target.BaseURL, metas, false), tea.WithOutput(opts.Stdout))
		unsubscribe, err := tui.Forward(app.publisher, program.Send)
		if err != nil {
			flushLogs(buffer, base)
			return err
		}
		defer unsubscribe()
		go func() {
			final, err := program.Run()
			programErr = err
			if m, ok := final.(tui.Model); ok && m.Cancelled() {
				cancel()
			}
			close(done)
		}()
	}

	rep := runner.Run(ctx)

	if !opts.NoVerify && app.cfg.Verify.Enabled && rep.State != bootstrap.StateAborted {
		summary, verr := runVerification(ctx, app)
		if verr != nil {
			log.Warn(ctx, "verification interrupted", "error", verr)
		}
		rep.SetVerification(summary)
	}

	if interactive {
		program.Send(tea.QuitMsg{})
		<-done
		flushLogs(buffer, base)
		if programErr != nil {
			base.Warn(ctx, "terminal UI stopped", "error", programErr)
		}
	}

	return finishApply(ctx, base, app, stepOpts, rep, opts.Stdout)
}

// finishApply prints the summary, writes the configured files and maps the
// run state onto the exit code.
func finishApply(ctx context.Context, log ports.Logger, app *appContext, stepOpts steps.Options, rep *bootstrap.RunReport, out io.Writer) error {
	outputs := app.cfg.Output

	if outputs.DiagnosticsDir != "" {
		if path, err := report.WriteDiagnostic(outputs.DiagnosticsDir, rep, time.Now()); err != nil {
			log.Warn(ctx, "diagnostic snapshot not written", "error", err)
		} else if path != "" {
			log.Info(ctx, "diagnostic snapshot written", "path", path)
		}
	}

	// The summary reveals the one-time secret; every later writer sees it
	// redacted except the credentials file.
	if err := report.WriteSummary(out, rep); err != nil {
		return err
	}

	if outputs.CredentialsEnv != "" {
		written, err := report.WriteCredentials(outputs.CredentialsEnv, rep)
		switch {
		case err != nil:
			log.Error(ctx, "credentials file not written", "path", outputs.CredentialsEnv, "error", err)
		case written:
			fmt.Fprintf(out, "Credentials written to %s\n", outputs.CredentialsEnv)
		default:
			log.Info(ctx, "no client secret captured, credentials file skipped", "path", outputs.CredentialsEnv)
		}
	}

	if outputs.Report != "" {
		if err := report.ExportFile(outputs.Report, rep); err != nil {
			log.Error(ctx, "report not written", "path", outputs.Report, "error", err)
		} else {
			fmt.Fprintf(out, "Report written to %s\n", outputs.Report)
		}
	}

	if rep.State != bootstrap.StateSucceeded {
		data := report.NewPlaybook(rep, app.target, stepOpts)
		if outputs.PlaybookFile == "" {
			fmt.Fprintln(out)
			if err := report.WritePlaybook(out, data); err != nil {
				return err
			}
		} else if err := report.WritePlaybookFile(outputs.PlaybookFile, data); err != nil {
			log.Error(ctx, "playbook not written", "path", outputs.PlaybookFile, "error", err)
		} else {
			fmt.Fprintf(out, "Manual steps written to %s\n", outputs.PlaybookFile)
		}
	}

	if code := rep.ExitCode(); code != 0 {
		return &exitError{code: code, reason: fmt.Sprintf("run %s", rep.State)}
	}
	return nil
}

func runVerification(ctx context.Context, app *appContext) (*bootstrap.VerificationSummary, error) {
	probes, err := verify.DefaultProbes(app.cfg.ProbeConfig())
	if err != nil {
		return nil, err
	}
	verifier := verify.New(app.target, verify.Options{
		Timeout:            app.cfg.Settings.RequestTimeout,
		InsecureSkipVerify: app.cfg.Driver.InsecureSkipVerify,
		Logger:             app.logger,
		Events:             app.publisher,
	})
	return verifier.Verify(ctx, probes)
}

// overrideOutputs lets flags replace the configured output paths.
func overrideOutputs(app *appContext, opts applyOptions) {
	out := &app.cfg.Output
	if opts.Report != "" {
		out.Report = opts.Report
	}
	if opts.CredentialsEnv != "" {
		out.CredentialsEnv = opts.CredentialsEnv
	}
	if opts.DiagnosticsDir != "" {
		out.DiagnosticsDir = opts.DiagnosticsDir
	}
	if opts.PlaybookFile != "" {
		out.PlaybookFile = opts.PlaybookFile
	}
}

func flushLogs(buffer *logging.Buffer, delegate ports.Logger) {
	if buffer != nil {
		buffer.Flush(delegate)
	}
}
