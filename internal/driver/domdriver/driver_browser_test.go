package domdriver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/authentiktest"
	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// chromePath locates a Chrome binary or skips the test.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	if path := os.Getenv("CHROME_PATH"); path != "" {
		return path
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary found; set CHROME_PATH to run browser tests")
	return ""
}

func startBrowser(t *testing.T, baseURL string) *Driver {
	t.Helper()
	chrome := chromePath(t)
	target, err := bootstrap.NewTarget(baseURL, bootstrap.Credentials{
		Username: "akadmin",
		Email:    "admin@example.test",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	// The context used for startup ends before any page work happens; the
	// browser must survive it.
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	d, err := New(startCtx, target, Options{
		Headless: true,
		ExecPath: chrome,
		Timeout:  20 * time.Second,
	})
	cancel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestBrowserSurvivesStartupContext(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(srv.Close)
	d := startBrowser(t, srv.URL)

	doc, err := d.Fetch(context.Background(), "/api/v3/root/config/")
	require.NoError(t, err)
	require.Equal(t, 200, doc.Status)
	require.True(t, doc.IsJSON())
	require.Contains(t, doc.Cookies, "authentik_csrf")
}

func TestBrowserBootstrapsAdminThroughSetupForm(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(srv.Close)
	d := startBrowser(t, srv.URL)
	ctx := context.Background()

	doc, err := d.Fetch(ctx, "/if/flow/initial-setup/")
	require.NoError(t, err)
	require.Contains(t, doc.Text(), "akadmin-username")

	handle, err := d.FindField(ctx, doc, bootstrap.Field{Name: "username", Candidates: []string{
		`#no-such-field`,
		`input[name="akadmin-username"]`,
	}})
	require.NoError(t, err)
	require.Equal(t, `input[name="akadmin-username"]`, handle.Selector)
	require.Equal(t, "akadmin-username", handle.Name)

	_, err = d.FindField(ctx, doc, bootstrap.Field{Name: "missing", Candidates: []string{"#nope", "input[name=nope]"}})
	require.True(t, errors.Is(err, bootstrap.ErrSelectorNotFound))

	values := map[string]string{
		"akadmin-username":        "akadmin",
		"akadmin-name":            "authentik Default Admin",
		"akadmin-email":           "admin@example.test",
		"akadmin-password":        "correct-horse",
		"akadmin-password_repeat": "correct-horse",
	}
	var fields []bootstrap.FieldValue
	for _, name := range []string{"akadmin-username", "akadmin-name", "akadmin-email", "akadmin-password", "akadmin-password_repeat"} {
		h, err := d.FindField(ctx, doc, bootstrap.Field{Name: name, Candidates: []string{fmt.Sprintf(`input[name=%q]`, name)}})
		require.NoError(t, err)
		fields = append(fields, bootstrap.FieldValue{Handle: h, Value: values[name]})
	}

	result, err := d.Submit(ctx, bootstrap.SubmitRequest{
		Method:   "POST",
		Path:     "/if/flow/initial-setup/",
		Document: doc,
		Fields:   fields,
		Button:   []string{`button[type="submit"]`},
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(result.URL, "/if/admin/"), result.URL)
	require.True(t, srv.SetupDone())

	snap := d.Snapshot(ctx)
	require.Equal(t, bootstrap.SnapshotPNG, snap.Kind)
	require.NotEmpty(t, snap.Data)
	require.True(t, strings.HasSuffix(snap.URL, "/if/admin/"))
}

const shadowPage = `<html><body><ak-login></ak-login><script>
customElements.define("ak-login", class extends HTMLElement {
  constructor() {
    super();
    const root = this.attachShadow({mode: "open"});
    root.innerHTML = '<form method="get" action="/done"><input name="uidField" value="seed"><button type="submit">Log in</button></form>';
  }
});
</script></body></html>`

func TestBrowserReachesFieldsInsideShadowRoots(t *testing.T) {
	var (
		mu       sync.Mutex
		received string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/done" {
			mu.Lock()
			received = r.URL.Query().Get("uidField")
			mu.Unlock()
			fmt.Fprint(w, "<html><body>done</body></html>")
			return
		}
		fmt.Fprint(w, shadowPage)
	}))
	t.Cleanup(srv.Close)
	d := startBrowser(t, srv.URL)
	ctx := context.Background()

	doc, err := d.Fetch(ctx, "/")
	require.NoError(t, err)

	handle, err := d.FindField(ctx, doc, bootstrap.Field{Name: "uid", Candidates: []string{`input[name="uidField"]`}})
	require.NoError(t, err)
	require.Equal(t, "uidField", handle.Name)
	require.Equal(t, "seed", handle.Value)

	_, err = d.Submit(ctx, bootstrap.SubmitRequest{
		Path:     "/",
		Document: doc,
		Fields:   []bootstrap.FieldValue{{Handle: handle, Value: "akadmin"}},
		Button:   []string{`button[type="submit"]`},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "akadmin", received)
}

func TestSnapshotAfterCloseDegradesToEmptyMarkup(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(srv.Close)
	d := startBrowser(t, srv.URL)
	require.NoError(t, d.Close())

	snap := d.Snapshot(context.Background())
	require.Equal(t, bootstrap.SnapshotHTML, snap.Kind)
	require.Empty(t, snap.Data)
}
