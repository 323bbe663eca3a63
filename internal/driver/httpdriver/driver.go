// Package httpdriver drives the target with plain HTTP requests, a cookie jar
// and HTML parsing. It is the default driver.
package httpdriver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/extract"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Name is the identifier used in configuration and reports.
const Name = "http"

const maxBodyBytes = 4 << 20

// Options configures the HTTP driver.
type Options struct {
	Timeout            time.Duration
	UserAgent          string
	InsecureSkipVerify bool
	Transport          http.RoundTripper
	Logger             ports.Logger
}

// Driver implements ports.Driver over net/http.
type Driver struct {
	target bootstrap.Target
	base   *url.URL
	client *http.Client
	jar    http.CookieJar
	agent  string
	logger ports.Logger

	mu   sync.Mutex
	last *bootstrap.Document
}

var _ ports.Driver = (*Driver)(nil)

// New creates a driver bound to target.
func New(target bootstrap.Target, opts Options) (*Driver, error) {
	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return nil, bootstrap.NewValidationError("invalid target url", map[string]interface{}{"url": target.BaseURL})
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, bootstrap.NewInternal("create cookie jar", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		transport = t
	}
	agent := opts.UserAgent
	if agent == "" {
		agent = "authboot"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	return &Driver{
		target: target,
		base:   base,
		client: &http.Client{Timeout: timeout, Jar: jar, Transport: transport},
		jar:    jar,
		agent:  agent,
		logger: logger.With("component", "httpdriver"),
	}, nil
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return Name }

// Fetch implements ports.Driver.
func (d *Driver) Fetch(ctx context.Context, path string) (*bootstrap.Document, error) {
	header := http.Header{}
	if isAPIPath(path) {
		header.Set("Accept", "application/json")
	} else {
		header.Set("Accept", "text/html,application/xhtml+xml")
	}
	return d.do(ctx, http.MethodGet, path, nil, header)
}

// FindField implements ports.Driver by matching candidates against the
// document's markup.
func (d *Driver) FindField(_ context.Context, doc *bootstrap.Document, field bootstrap.Field) (bootstrap.FieldHandle, error) {
	return extract.MatchField(doc, field)
}

// Submit implements ports.Driver.
func (d *Driver) Submit(ctx context.Context, req bootstrap.SubmitRequest) (*bootstrap.Document, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	path := req.Path
	if path == "" && req.Document != nil {
		path = extract.FormAction(req.Document)
		if path == "" {
			path = req.Document.URL
		}
	}
	if path == "" {
		return nil, bootstrap.NewValidationError("submit needs a path or a document", nil)
	}

	header := http.Header{}
	var body io.Reader
	if req.IsForm() {
		values, err := formValues(req)
		if err != nil {
			return nil, err
		}
		header.Set("Content-Type", "application/x-www-form-urlencoded")
		header.Set("Accept", "text/html,application/xhtml+xml")
		body = strings.NewReader(values.Encode())
	} else {
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, bootstrap.NewInternal("encode request body", err)
		}
		header.Set("Content-Type", "application/json")
		header.Set("Accept", "application/json")
		body = bytes.NewReader(payload)
	}

	token := req.Token
	if !token.Present() {
		token = d.cookieToken()
	}
	if token.Present() {
		header.Set("X-authentik-CSRF", token.Value)
		header.Set("X-CSRFToken", token.Value)
	}
	if req.Document != nil && req.Document.URL != "" {
		header.Set("Referer", req.Document.URL)
	} else {
		header.Set("Referer", d.target.URL(path))
	}
	return d.do(ctx, method, path, body, header)
}

// Snapshot implements ports.Driver. It returns the last response body seen.
func (d *Driver) Snapshot(_ context.Context) bootstrap.Snapshot {
	d.mu.Lock()
	last := d.last
	d.mu.Unlock()

	snap := bootstrap.Snapshot{Kind: bootstrap.SnapshotText, TakenAt: time.Now()}
	if last == nil {
		d.logger.Warn(context.Background(), "snapshot requested before any response")
		return snap
	}
	snap.URL = last.URL
	snap.Data = append([]byte(nil), last.Body...)
	if strings.Contains(last.ContentType, "html") {
		snap.Kind = bootstrap.SnapshotHTML
	}
	return snap
}

// Close implements ports.Driver.
func (d *Driver) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Driver) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*bootstrap.Document, error) {
	target := d.target.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, bootstrap.NewInternal("build request", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", d.agent)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, bootstrap.NewCancelled(ctxErr)
		}
		d.logger.Debug(ctx, "request failed", "method", method, "path", path, "error", err)
		return nil, bootstrap.NewUnreachable(target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, bootstrap.NewCancelled(ctxErr)
		}
		return nil, bootstrap.NewUnreachable(target, err)
	}

	doc := &bootstrap.Document{
		URL:         resp.Request.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header.Clone(),
		Body:        data,
		Cookies:     d.cookies(),
	}
	d.mu.Lock()
	d.last = doc
	d.mu.Unlock()

	d.logger.Debug(ctx, "request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return doc, bootstrap.NewHTTPError(method, path, resp.StatusCode, string(data))
	}
	return doc, nil
}

func (d *Driver) cookies() map[string]string {
	out := make(map[string]string)
	for _, c := range d.jar.Cookies(d.base) {
		out[c.Name] = c.Value
	}
	return out
}

func (d *Driver) cookieToken() bootstrap.Token {
	cookies := d.cookies()
	for _, name := range extract.TokenCookies {
		if v := cookies[name]; v != "" {
			return bootstrap.Token{Value: v, Source: bootstrap.TokenFromCookie}
		}
	}
	return bootstrap.Token{}
}

// formValues merges the page's hidden inputs, extra values and located
// fields, then the anti-forgery token if the page did not carry one.
func formValues(req bootstrap.SubmitRequest) (url.Values, error) {
	values := url.Values{}
	if req.Document != nil && len(req.Document.Body) > 0 && !req.Document.IsJSON() {
		hidden, err := extract.HiddenInputs(req.Document)
		if err != nil {
			return nil, err
		}
		for k, v := range hidden {
			values.Set(k, v)
		}
	}
	for k, v := range req.Extra {
		values.Set(k, v)
	}
	for _, fv := range req.Fields {
		name := fv.Handle.Name
		if name == "" {
			return nil, bootstrap.NewSelectorNotFound(fv.Handle.Field, []string{fv.Handle.Selector})
		}
		values.Set(name, fv.Value)
	}
	if values.Get("csrfmiddlewaretoken") == "" && req.Token.Present() {
		values.Set("csrfmiddlewaretoken", req.Token.Value)
	}
	return values, nil
}

func isAPIPath(path string) bool {
	if u, err := url.Parse(path); err == nil && u.Path != "" {
		path = u.Path
	}
	return strings.HasPrefix(path, "/api/")
}
