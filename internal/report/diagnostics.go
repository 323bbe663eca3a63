package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// WriteDiagnostic stores the report's abort snapshot under dir and records
// the path on the diagnostic. It is a no-op when nothing was captured.
func WriteDiagnostic(dir string, report *bootstrap.RunReport, at time.Time) (string, error) {
	d := report.Diagnostic
	if d == nil || d.Snapshot.Empty() {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create diagnostics directory: %w", err)
	}
	kind := d.Snapshot.Kind
	if kind == "" {
		kind = bootstrap.SnapshotText
	}
	name := fmt.Sprintf("authboot-%s-%s.%s", d.StepID, at.UTC().Format("20060102T150405Z"), kind)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, d.Snapshot.Data, 0o600); err != nil {
		return "", fmt.Errorf("write diagnostic snapshot: %w", err)
	}
	d.Path = path
	return path, nil
}
