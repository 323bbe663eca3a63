// Package domdriver drives the target through a headless Chrome instance
// controlled over the DevTools protocol.
package domdriver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Name is the identifier used in configuration and reports.
const Name = "dom"

// Options configures the browser.
type Options struct {
	Headless           bool
	ExecPath           string
	Timeout            time.Duration
	WindowWidth        int
	WindowHeight       int
	InsecureSkipVerify bool
	// SubmitSettle is how long to wait for the page to react after a click.
	SubmitSettle time.Duration
	Logger       ports.Logger
}

// Driver implements ports.Driver with chromedp.
type Driver struct {
	target bootstrap.Target
	opts   Options
	logger ports.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	lastResp *network.Response
}

var _ ports.Driver = (*Driver)(nil)

// New starts a browser and returns a driver bound to target.
func New(ctx context.Context, target bootstrap.Target, opts Options) (*Driver, error) {
	opts = withDefaults(opts)
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.With("component", "domdriver")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.InsecureSkipVerify {
		allocOpts = append(allocOpts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives individual calls, so it hangs off Background and
	// is torn down by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debug(ctx, "chromedp", "detail", fmt.Sprintf(format, args...))
	}))

	d := &Driver{
		target:        target,
		opts:          opts,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	if err := d.start(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	logger.Info(ctx, "browser started", "headless", opts.Headless)
	return d, nil
}

// start launches the browser on browserCtx itself. chromedp ties the browser
// process to the context of the first Run, so a deadline there would kill it.
func (d *Driver) start(ctx context.Context) error {
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(d.browserCtx) }()

	timer := time.NewTimer(d.opts.Timeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			return bootstrap.NewInternal("start browser", err)
		}
		return nil
	case <-ctx.Done():
		return bootstrap.NewCancelled(ctx.Err())
	case <-timer.C:
		return bootstrap.NewInternal("start browser", fmt.Errorf("no response within %s", d.opts.Timeout))
	}
}

func withDefaults(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1280
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 900
	}
	if opts.SubmitSettle <= 0 {
		opts.SubmitSettle = time.Second
	}
	return opts
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return Name }

// opContext derives a per-call context from the browser context that also
// ends when the caller's ctx does.
func (d *Driver) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(d.browserCtx, d.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Fetch navigates the page to path and returns the rendered document.
func (d *Driver) Fetch(ctx context.Context, path string) (*bootstrap.Document, error) {
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	target := d.target.URL(path)
	resp, err := chromedp.RunResponse(opCtx, chromedp.Navigate(target))
	if err != nil {
		return nil, mapError(ctx, target, err)
	}
	d.mu.Lock()
	d.lastResp = resp
	d.mu.Unlock()

	doc, err := d.render(opCtx, resp)
	if err != nil {
		return nil, mapError(ctx, target, err)
	}
	if doc.Status >= 400 {
		return doc, bootstrap.NewHTTPError("GET", path, doc.Status, doc.Text())
	}
	return doc, nil
}

func (d *Driver) render(ctx context.Context, resp *network.Response) (*bootstrap.Document, error) {
	var (
		location string
		body     string
		cookies  []*network.Cookie
	)
	jsonBody := resp != nil && strings.Contains(resp.MimeType, "json")
	actions := []chromedp.Action{chromedp.Location(&location)}
	if jsonBody {
		actions = append(actions, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &body))
	} else {
		actions = append(actions, chromedp.OuterHTML("html", &body, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return nil, err
	}

	doc := &bootstrap.Document{
		URL:     location,
		Status:  200,
		Body:    []byte(body),
		Cookies: cookieMap(cookies),
	}
	if resp != nil {
		doc.Status = int(resp.Status)
		doc.ContentType = resp.MimeType
		doc.Header = headerFrom(resp.Headers)
	} else {
		doc.ContentType = "text/html"
	}
	return doc, nil
}

// FindField queries the live page for each candidate in order, descending
// into open shadow roots.
func (d *Driver) FindField(ctx context.Context, _ *bootstrap.Document, field bootstrap.Field) (bootstrap.FieldHandle, error) {
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	for _, candidate := range field.Candidates {
		var found *elementInfo
		if err := chromedp.Run(opCtx, chromedp.Evaluate(queryScript(candidate), &found)); err != nil {
			return bootstrap.FieldHandle{}, mapError(ctx, d.target.BaseURL, err)
		}
		if found == nil {
			continue
		}
		return bootstrap.FieldHandle{
			Field:    field.Name,
			Selector: candidate,
			Name:     found.Name,
			Value:    found.Value,
		}, nil
	}
	return bootstrap.FieldHandle{}, bootstrap.NewSelectorNotFound(field.Name, field.Candidates)
}

// Submit fills located fields and clicks the submit control for forms, or
// issues an in-page fetch for JSON payloads so the browser's session cookies
// are sent.
func (d *Driver) Submit(ctx context.Context, req bootstrap.SubmitRequest) (*bootstrap.Document, error) {
	if req.IsForm() {
		return d.submitForm(ctx, req)
	}
	return d.submitJSON(ctx, req)
}

func (d *Driver) submitForm(ctx context.Context, req bootstrap.SubmitRequest) (*bootstrap.Document, error) {
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	if len(req.Fields) == 0 {
		return nil, bootstrap.NewValidationError("form submit needs at least one field", nil)
	}
	var actions []chromedp.Action
	for _, fv := range req.Fields {
		el := deepQuery(fv.Handle.Selector)
		actions = append(actions,
			chromedp.Clear(el, chromedp.ByJSPath),
			chromedp.SendKeys(el, fv.Value, chromedp.ByJSPath),
		)
	}
	if err := chromedp.Run(opCtx, actions...); err != nil {
		return nil, mapError(ctx, d.target.BaseURL, err)
	}

	button, err := d.firstPresent(opCtx, req.Button)
	if err != nil {
		return nil, mapError(ctx, d.target.BaseURL, err)
	}
	var submit chromedp.Action
	if button != "" {
		submit = chromedp.Click(deepQuery(button), chromedp.ByJSPath)
	} else {
		last := req.Fields[len(req.Fields)-1].Handle.Selector
		submit = chromedp.SendKeys(deepQuery(last), kb.Enter, chromedp.ByJSPath)
	}
	if err := chromedp.Run(opCtx, submit, chromedp.Sleep(d.opts.SubmitSettle), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return nil, mapError(ctx, d.target.BaseURL, err)
	}

	doc, err := d.render(opCtx, nil)
	if err != nil {
		return nil, mapError(ctx, d.target.BaseURL, err)
	}
	return doc, nil
}

func (d *Driver) submitJSON(ctx context.Context, req bootstrap.SubmitRequest) (*bootstrap.Document, error) {
	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	if err := d.ensureOrigin(opCtx); err != nil {
		return nil, mapError(ctx, d.target.BaseURL, err)
	}
	method := req.Method
	if method == "" {
		method = "POST"
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if req.Token.Present() {
		headers["X-authentik-CSRF"] = req.Token.Value
		headers["X-CSRFToken"] = req.Token.Value
	}
	script, err := fetchScript(d.target.URL(req.Path), method, headers, req.JSON)
	if err != nil {
		return nil, bootstrap.NewInternal("encode request body", err)
	}

	var result fetchResult
	err = chromedp.Run(opCtx, chromedp.Evaluate(script, &result, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, mapError(ctx, d.target.URL(req.Path), err)
	}
	if result.Error != "" {
		return nil, bootstrap.NewUnreachable(d.target.URL(req.Path), fmt.Errorf("%s", result.Error))
	}

	doc := result.document()
	if doc.Status >= 400 {
		return doc, bootstrap.NewHTTPError(method, req.Path, doc.Status, result.Body)
	}
	return doc, nil
}

// ensureOrigin navigates to the target when the page is on another origin,
// so in-page fetches carry the target's cookies.
func (d *Driver) ensureOrigin(ctx context.Context) error {
	var location string
	if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
		return err
	}
	if sameOrigin(location, d.target.BaseURL) {
		return nil
	}
	_, err := chromedp.RunResponse(ctx, chromedp.Navigate(d.target.URL("/api/v3/root/config/")))
	return err
}

func (d *Driver) firstPresent(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		var present bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(presentScript(sel), &present)); err != nil {
			return "", err
		}
		if present {
			return sel, nil
		}
	}
	return "", nil
}

// Snapshot captures a full-page PNG, falling back to the page markup.
func (d *Driver) Snapshot(ctx context.Context) bootstrap.Snapshot {
	// A cancelled run still gets its snapshot.
	snapCtx, cancel := context.WithTimeout(d.browserCtx, 10*time.Second)
	defer cancel()

	snap := bootstrap.Snapshot{Kind: bootstrap.SnapshotPNG, TakenAt: time.Now()}
	var location string
	var png []byte
	err := chromedp.Run(snapCtx, chromedp.Location(&location), chromedp.FullScreenshot(&png, 90))
	if err == nil {
		snap.URL = location
		snap.Data = png
		return snap
	}
	d.logger.Warn(ctx, "screenshot failed", "error", err)

	var html string
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		d.logger.Warn(ctx, "snapshot fallback failed", "error", err)
		return bootstrap.Snapshot{Kind: bootstrap.SnapshotHTML, TakenAt: snap.TakenAt}
	}
	return bootstrap.Snapshot{Kind: bootstrap.SnapshotHTML, URL: location, Data: []byte(html), TakenAt: snap.TakenAt}
}

// Close shuts the browser down.
func (d *Driver) Close() error {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host
}
