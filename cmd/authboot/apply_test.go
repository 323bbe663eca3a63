package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/authentiktest"
	"github.com/alexisbeaulieu97/authboot/internal/report"
)

func TestApplyCommandParsesFlags(t *testing.T) {
	original := applyCmdRunner
	t.Cleanup(func() { applyCmdRunner = original })

	var captured applyOptions
	applyCmdRunner = func(_ context.Context, opts applyOptions) error {
		captured = opts
		return nil
	}

	root := newRootCmd()
	_, err := executeCommand(root, "apply",
		"--config", "authboot.yaml",
		"--env-file", "secrets.env",
		"--log-format", "json",
		"--verbose",
		"--report", "out/report.json",
		"--credentials-env", "out/grafana.env",
		"--diagnostics-dir", "out/diag",
		"--playbook-file", "out/playbook.txt",
		"--no-verify",
		"--no-tui",
	)
	require.NoError(t, err)

	require.Equal(t, "authboot.yaml", captured.Root.configPath)
	require.Equal(t, "secrets.env", captured.Root.envFile)
	require.Equal(t, "json", captured.Root.logFormat)
	require.True(t, captured.Root.verbose)
	require.Equal(t, "out/report.json", captured.Report)
	require.Equal(t, "out/grafana.env", captured.CredentialsEnv)
	require.Equal(t, "out/diag", captured.DiagnosticsDir)
	require.Equal(t, "out/playbook.txt", captured.PlaybookFile)
	require.True(t, captured.NoVerify)
	require.True(t, captured.NonInteractive)
}

func TestApplyCommandRejectsArguments(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "apply", "extra")
	require.Error(t, err)
}

func TestApplyCommandReportsMissingConfig(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "apply", "--no-tui", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Equal(t, 1, exitCode(err))
	require.Contains(t, err.Error(), "config error")
}

func TestRunApplyBootstrapsFreshTargetAndIsIdempotent(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	credentials := filepath.Join(dir, "grafana.env")
	reportPath := filepath.Join(dir, "report.json")
	opts := applyOptions{
		Root:           rootFlags{configPath: writeConfig(t, srv.URL, "correct-horse"), logFormat: "json"},
		Report:         reportPath,
		CredentialsEnv: credentials,
		PlaybookFile:   filepath.Join(dir, "playbook.txt"),
		NonInteractive: true,
	}

	stdout := &bytes.Buffer{}
	opts.Stdout, opts.Stderr = stdout, &bytes.Buffer{}
	require.NoError(t, runApply(context.Background(), opts))

	out := stdout.String()
	require.Contains(t, out, "SUCCEEDED (exit 0)")
	require.Contains(t, out, "4 working, 0 not configured, 0 unexpected")
	require.Contains(t, out, "Credentials written to "+credentials)

	env, err := godotenv.Read(credentials)
	require.NoError(t, err)
	require.Equal(t, "grafana", env[report.EnvClientID])
	require.Equal(t, srv.Providers()[1].ClientSecret, env[report.EnvClientSecret])

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var exported map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &exported))
	require.Equal(t, "succeeded", exported["state"])
	require.NotContains(t, string(raw), srv.Providers()[1].ClientSecret)

	_, err = os.Stat(opts.PlaybookFile)
	require.True(t, os.IsNotExist(err))

	stdout.Reset()
	require.NoError(t, runApply(context.Background(), opts))
	require.Contains(t, stdout.String(), "SUCCEEDED (exit 0)")
	require.Equal(t, map[string]int{"proxy": 1, "oauth2": 1, "applications": 1}, srv.Creates())

	env, err = godotenv.Read(credentials)
	require.NoError(t, err)
	require.Equal(t, srv.Providers()[1].ClientSecret, env[report.EnvClientSecret])
}

func TestRunApplyAbortsOnBadCredentials(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{SetupDone: true, Password: "different-password"})
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	stdout := &bytes.Buffer{}
	opts := applyOptions{
		Root:           rootFlags{configPath: writeConfig(t, srv.URL, "wrong-password")},
		PlaybookFile:   filepath.Join(dir, "playbook.txt"),
		DiagnosticsDir: filepath.Join(dir, "diag"),
		NonInteractive: true,
		Stdout:         stdout,
		Stderr:         &bytes.Buffer{},
	}

	err := runApply(context.Background(), opts)
	require.Error(t, err)
	require.Equal(t, 1, exitCode(err))
	require.Contains(t, stdout.String(), "ABORTED (exit 1)")
	require.NotContains(t, stdout.String(), "Verification")

	playbook, err := os.ReadFile(opts.PlaybookFile)
	require.NoError(t, err)
	require.Contains(t, string(playbook), "Authenticate admin session")
	require.Empty(t, srv.Creates())
}

func TestRunApplyPrintsPlaybookWithoutFile(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{SetupDone: true, Password: "different-password"})
	t.Cleanup(srv.Close)

	stdout := &bytes.Buffer{}
	err := runApply(context.Background(), applyOptions{
		Root:           rootFlags{configPath: writeConfig(t, srv.URL, "wrong-password")},
		NonInteractive: true,
		Stdout:         stdout,
		Stderr:         &bytes.Buffer{},
	})
	require.Equal(t, 1, exitCode(err))
	require.Contains(t, stdout.String(), "STEP 1: Authenticate admin session")
}

func TestRunApplyRejectsUnknownLogFormat(t *testing.T) {
	err := runApply(context.Background(), applyOptions{
		Root:           rootFlags{configPath: writeConfig(t, "http://127.0.0.1:1", "correct-horse"), logFormat: "xml"},
		NonInteractive: true,
		Stdout:         &bytes.Buffer{},
		Stderr:         &bytes.Buffer{},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown log format")
}
