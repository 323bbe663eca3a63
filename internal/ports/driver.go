package ports

import (
	"context"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Driver is the only seam steps use to reach the target. Two implementations
// exist: a session-based HTTP driver and a DOM-automation driver. The active
// driver is chosen once per run.
//
// Implementations must:
//   - return bootstrap.ErrCodeUnreachable when the target does not answer
//     within the request timeout, and bootstrap.ErrCodeCancelled when ctx ends;
//   - return the Document together with an ErrCodeHTTP error for status >= 400;
//   - try Field candidates in order and return ErrCodeSelectorNotFound only
//     after all of them missed;
//   - never fail Snapshot: capture problems are logged and an empty snapshot
//     is returned.
type Driver interface {
	// Name identifies the driver in logs and reports.
	Name() string

	// Fetch retrieves a page or API resource by path.
	Fetch(ctx context.Context, path string) (*bootstrap.Document, error)

	// FindField locates the first matching candidate for field on doc.
	FindField(ctx context.Context, doc *bootstrap.Document, field bootstrap.Field) (bootstrap.FieldHandle, error)

	// Submit posts form fields or a JSON payload, carrying the anti-forgery
	// token forward.
	Submit(ctx context.Context, req bootstrap.SubmitRequest) (*bootstrap.Document, error)

	// Snapshot captures the driver's current view for diagnostics.
	Snapshot(ctx context.Context) bootstrap.Snapshot

	// Close releases transport or browser resources.
	Close() error
}

// DriverFactory builds a driver for a target.
type DriverFactory func(ctx context.Context, target bootstrap.Target) (Driver, error)
