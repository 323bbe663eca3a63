// Package verify probes the target's public authentication endpoints and
// classifies what it finds. It never mutates the target and does not depend
// on which bootstrap steps ran.
package verify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Options configures the verifier's HTTP client.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	Transport          http.RoundTripper
	Logger             ports.Logger
	Events             ports.EventPublisher
}

// Verifier runs probes against one target.
type Verifier struct {
	target bootstrap.Target
	client *http.Client
	logger ports.Logger
	events ports.EventPublisher
}

// New creates a verifier. Redirects are never followed: a redirect to the
// login flow is itself the healthy answer.
func New(target bootstrap.Target, opts Options) *Verifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		transport = t
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Verifier{
		target: target,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "verify"),
		events: opts.Events,
	}
}

// Verify runs every probe in order. The only error it returns is
// cancellation; unreachable endpoints are classified as unexpected.
func (v *Verifier) Verify(ctx context.Context, probes []Probe) (*bootstrap.VerificationSummary, error) {
	summary := &bootstrap.VerificationSummary{}
	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return summary, bootstrap.NewCancelled(err)
		}
		result := v.run(ctx, probe)
		summary.Add(result)

		if result.Flagged() {
			v.logger.Warn(ctx, "probe flagged", "probe", result.Name, "status_code", result.StatusCode, "message", result.Message)
		} else {
			v.logger.Info(ctx, "probe classified", "probe", result.Name, "status", result.Status, "status_code", result.StatusCode)
		}
		v.publish(ctx, result)
	}
	return summary, nil
}

func (v *Verifier) run(ctx context.Context, probe Probe) bootstrap.ProbeResult {
	target := probe.URL
	if target == "" {
		target = v.target.URL(probe.Path)
	}
	if len(probe.Query) > 0 {
		target += "?" + probe.Query.Encode()
	}
	result := bootstrap.ProbeResult{
		Name:     probe.Name,
		URL:      target,
		Expected: probe.Policy.String(),
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Status = bootstrap.ProbeUnexpected
		result.Message = err.Error()
		return result
	}
	for k, values := range probe.Header {
		for _, value := range values {
			req.Header.Add(k, value)
		}
	}
	req.Header.Set("User-Agent", "authboot-verify")

	resp, err := v.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = bootstrap.ProbeUnexpected
		result.Message = bootstrap.NewUnreachable(target, err).Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.StatusCode = resp.StatusCode
	result.Status = Classify(resp.StatusCode, probe.Policy)
	result.Message = describe(result.Status, resp)
	if probe.RedirectToTarget && result.Status == bootstrap.ProbeWorking && !v.pointsAtTarget(resp) {
		result.Status = bootstrap.ProbeUnexpected
		result.Message = "redirects to " + resp.Header.Get("Location") + " (not the target)"
	}
	return result
}

// pointsAtTarget reports whether a redirect's Location is on the target host.
func (v *Verifier) pointsAtTarget(resp *http.Response) bool {
	loc, err := resp.Location()
	if err != nil {
		return false
	}
	base, err := url.Parse(v.target.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(loc.Host, base.Host)
}

func describe(status bootstrap.ProbeStatus, resp *http.Response) string {
	switch status {
	case bootstrap.ProbeNotConfigured:
		return "endpoint not configured"
	case bootstrap.ProbeUnexpected:
		if resp.StatusCode == http.StatusOK {
			return "answered 200 without authentication"
		}
		return fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		if strings.Contains(loc, "/if/flow/") || strings.Contains(loc, "/outpost.goauthentik.io/") || strings.Contains(loc, "/application/o/authorize/") {
			return "redirects to " + loc
		}
		return "redirects to " + loc + " (not a login flow)"
	}
	return http.StatusText(resp.StatusCode)
}

func (v *Verifier) publish(ctx context.Context, result bootstrap.ProbeResult) {
	if v.events == nil {
		return
	}
	event := probeEvent{payload: map[string]interface{}{
		"probe":       result.Name,
		"url":         result.URL,
		"status":      string(result.Status),
		"status_code": result.StatusCode,
		"expected":    result.Expected,
		"duration":    result.Duration,
	}}
	if err := v.events.Publish(ctx, event); err != nil {
		v.logger.Warn(ctx, "failed to publish probe event", "probe", result.Name, "error", err)
	}
}

type probeEvent struct {
	payload map[string]interface{}
}

func (probeEvent) EventType() string      { return ports.EventProbeCompleted }
func (e probeEvent) Payload() interface{} { return e.payload }
