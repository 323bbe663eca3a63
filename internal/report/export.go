package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Endpoints are the public URLs a relying party needs.
type Endpoints struct {
	ForwardAuth string `json:"forward_auth" yaml:"forward_auth"`
	Authorize   string `json:"authorize" yaml:"authorize"`
	Token       string `json:"token" yaml:"token"`
	Userinfo    string `json:"userinfo" yaml:"userinfo"`
}

// EndpointsFor derives the well-known endpoint URLs of target.
func EndpointsFor(target string) Endpoints {
	base := strings.TrimRight(target, "/")
	return Endpoints{
		ForwardAuth: base + "/outpost.goauthentik.io/auth/traefik",
		Authorize:   base + "/application/o/authorize/",
		Token:       base + "/application/o/token/",
		Userinfo:    base + "/application/o/userinfo/",
	}
}

// document is the exported shape of a RunReport. Secrets never appear in
// it; the credentials env file is the only place they are persisted.
type document struct {
	RunID        string                         `json:"run_id" yaml:"run_id"`
	Target       string                         `json:"target" yaml:"target"`
	Driver       string                         `json:"driver" yaml:"driver"`
	Reachability bootstrap.Reachability         `json:"reachability" yaml:"reachability"`
	State        bootstrap.RunState             `json:"state" yaml:"state"`
	ExitCode     int                            `json:"exit_code" yaml:"exit_code"`
	StartedAt    time.Time                      `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time                      `json:"finished_at" yaml:"finished_at"`
	Duration     string                         `json:"duration" yaml:"duration"`
	AbortReason  string                         `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	Outcomes     []bootstrap.StepOutcome        `json:"outcomes" yaml:"outcomes"`
	Artifacts    []bootstrap.Artifact           `json:"artifacts" yaml:"artifacts"`
	Endpoints    Endpoints                      `json:"endpoints" yaml:"endpoints"`
	Verification *bootstrap.VerificationSummary `json:"verification,omitempty" yaml:"verification,omitempty"`
	Diagnostic   *bootstrap.Diagnostic          `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

func newDocument(report *bootstrap.RunReport) document {
	doc := document{
		RunID:        report.RunID,
		Target:       report.Target,
		Driver:       report.Driver,
		Reachability: report.Reachability,
		State:        report.State,
		ExitCode:     report.ExitCode(),
		StartedAt:    report.StartedAt.UTC(),
		FinishedAt:   report.FinishedAt.UTC(),
		Duration:     report.Duration().String(),
		AbortReason:  report.AbortReason,
		Outcomes:     report.OutcomesCopy(),
		Artifacts:    []bootstrap.Artifact{},
		Endpoints:    EndpointsFor(report.Target),
		Verification: report.Verification,
		Diagnostic:   report.Diagnostic,
	}
	if report.Artifacts != nil {
		for _, a := range report.Artifacts.All() {
			doc.Artifacts = append(doc.Artifacts, a.Redacted())
		}
	}
	return doc
}

// Export writes report to w in format.
func Export(w io.Writer, report *bootstrap.RunReport, format Format) error {
	doc := newDocument(report)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode report as yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode report as json: %w", err)
		}
		return nil
	default:
		return bootstrap.NewValidationError(fmt.Sprintf("unknown report format %q", format), nil)
	}
}

// ExportFile writes report to path, choosing the format by extension.
func ExportFile(path string, report *bootstrap.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	if err := Export(f, report, FormatFromPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
