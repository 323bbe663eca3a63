package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/authentiktest"
	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy([]string{"3xx", "401", " 405 "})
	require.NoError(t, err)
	require.True(t, p.Allows(302))
	require.True(t, p.Allows(307))
	require.True(t, p.Allows(401))
	require.True(t, p.Allows(405))
	require.False(t, p.Allows(200))
	require.False(t, p.Allows(403))
	require.Equal(t, "3xx,401,405", p.String())

	for _, bad := range []string{"", "abc", "6xx", "99", "1000", "0xx"} {
		_, err := ParsePolicy([]string{bad})
		require.Error(t, err, bad)
		require.False(t, ValidToken(bad), bad)
	}
	_, err = ParsePolicy(nil)
	require.Error(t, err)
	require.True(t, ValidToken("2XX"))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	policy := MustParsePolicy(DefaultPolicy...)
	tests := []struct {
		code int
		want bootstrap.ProbeStatus
	}{
		{302, bootstrap.ProbeWorking},
		{401, bootstrap.ProbeWorking},
		{405, bootstrap.ProbeWorking},
		{404, bootstrap.ProbeNotConfigured},
		{200, bootstrap.ProbeUnexpected},
		{500, bootstrap.ProbeUnexpected},
		{403, bootstrap.ProbeUnexpected},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Classify(tt.code, policy), "status %d", tt.code)
	}

	// 404 stays NotConfigured even when a policy lists it.
	require.Equal(t, bootstrap.ProbeNotConfigured, Classify(404, MustParsePolicy("4xx")))
}

func TestDefaultProbes(t *testing.T) {
	t.Parallel()

	probes, err := DefaultProbes(ProbeConfig{
		ClientID:    "grafana",
		RedirectURI: "https://grafana.example.test/login/generic_oauth",
		Policies:    map[string][]string{ProbeToken: {"400", "401", "405"}},
	})
	require.NoError(t, err)
	require.Len(t, probes, 4)
	require.Equal(t, ProbeForwardAuth, probes[0].Name)
	require.Equal(t, "grafana", probes[1].Query.Get("client_id"))
	require.Equal(t, "code", probes[1].Query.Get("response_type"))
	require.Equal(t, "https://grafana.example.test/login/generic_oauth", probes[1].Query.Get("redirect_uri"))
	require.True(t, probes[2].Policy.Allows(400))
	require.False(t, probes[1].Policy.Allows(400))
	require.Equal(t, "Bearer invalid-token", probes[3].Header.Get("Authorization"))

	bare, err := DefaultProbes(ProbeConfig{})
	require.NoError(t, err)
	require.Empty(t, bare[1].Query)

	_, err = DefaultProbes(ProbeConfig{Policies: map[string][]string{ProbeUserinfo: {"nope"}}})
	require.Error(t, err)
}

func TestDefaultsAddRelyingPartyLoginForLaunchURL(t *testing.T) {
	t.Parallel()

	probes, err := DefaultProbes(ProbeConfig{LaunchURL: "https://grafana.example.test/"})
	require.NoError(t, err)
	require.Len(t, probes, 5)
	rp := probes[4]
	require.Equal(t, ProbeRelyingParty, rp.Name)
	require.Equal(t, "https://grafana.example.test/login/generic_oauth", rp.URL)
	require.True(t, rp.RedirectToTarget)
	require.True(t, rp.Policy.Allows(302))
	require.False(t, rp.Policy.Allows(401))

	overridden, err := DefaultProbes(ProbeConfig{
		LaunchURL: "https://grafana.example.test",
		Policies:  map[string][]string{ProbeRelyingParty: {"3xx", "401"}},
	})
	require.NoError(t, err)
	require.True(t, overridden[4].Policy.Allows(401))
}

func TestVerifyRelyingPartyMustRedirectToTarget(t *testing.T) {
	target := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(target.Close)
	target.AddProvider("oauth2", "grafana-oauth2")

	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != RelyingPartyLoginPath {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, target.URL+"/application/o/authorize/?client_id=grafana", http.StatusFound)
	}))
	t.Cleanup(app.Close)

	stray := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	t.Cleanup(stray.Close)

	v := newVerifier(t, target.URL, nil)

	probes, err := DefaultProbes(ProbeConfig{ClientID: "grafana", LaunchURL: app.URL})
	require.NoError(t, err)
	summary, err := v.Verify(context.Background(), probes)
	require.NoError(t, err)
	require.Equal(t, 5, summary.Total)
	rp := summary.Results[4]
	require.Equal(t, ProbeRelyingParty, rp.Name)
	require.Equal(t, app.URL+RelyingPartyLoginPath, rp.URL)
	require.Equal(t, bootstrap.ProbeWorking, rp.Status)
	require.Equal(t, 302, rp.StatusCode)

	probes, err = DefaultProbes(ProbeConfig{LaunchURL: stray.URL})
	require.NoError(t, err)
	summary, err = v.Verify(context.Background(), probes)
	require.NoError(t, err)
	rp = summary.Results[4]
	require.Equal(t, bootstrap.ProbeUnexpected, rp.Status)
	require.Contains(t, rp.Message, "not the target")
}

func newVerifier(t *testing.T, url string, events ports.EventPublisher) *Verifier {
	t.Helper()
	target, err := bootstrap.NewTarget(url, bootstrap.Credentials{Username: "akadmin", Password: "pw"})
	require.NoError(t, err)
	return New(target, Options{Timeout: 2 * time.Second, Events: events})
}

func TestVerifyClassifiesResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/outpost.goauthentik.io/auth/traefik", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/application/o/authorize/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/application/o/token/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/application/o/userinfo/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer invalid-token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "/if/flow/default-authentication-flow/", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	probes, err := DefaultProbes(ProbeConfig{})
	require.NoError(t, err)

	events := &eventRecorder{}
	summary, err := newVerifier(t, srv.URL, events).Verify(context.Background(), probes)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Total)
	require.Equal(t, bootstrap.ProbeWorking, summary.Results[0].Status)
	require.Equal(t, bootstrap.ProbeNotConfigured, summary.Results[1].Status)
	require.Equal(t, bootstrap.ProbeUnexpected, summary.Results[2].Status)
	require.Equal(t, "answered 200 without authentication", summary.Results[2].Message)
	require.Equal(t, bootstrap.ProbeWorking, summary.Results[3].Status)
	require.Equal(t, 302, summary.Results[3].StatusCode, "redirects must not be followed")
	require.False(t, summary.Healthy())
	require.Len(t, summary.Flagged(), 1)
	require.Equal(t, 4, events.count)
}

func TestVerifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	probes, err := DefaultProbes(ProbeConfig{})
	require.NoError(t, err)
	summary, err := newVerifier(t, url, nil).Verify(context.Background(), probes)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Unexpected)
	require.Contains(t, summary.Results[0].Message, string(bootstrap.ErrCodeUnreachable))
}

func TestVerifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	probes, err := DefaultProbes(ProbeConfig{})
	require.NoError(t, err)

	summary, err := newVerifier(t, "http://127.0.0.1:1", nil).Verify(ctx, probes)
	require.Error(t, err)
	require.Equal(t, bootstrap.ErrCodeCancelled, bootstrap.CodeOf(err))
	require.Zero(t, summary.Total)
}

func TestVerifyFakeTargetBeforeAndAfterConfiguration(t *testing.T) {
	srv := authentiktest.NewServer(authentiktest.Options{})
	t.Cleanup(srv.Close)
	probes, err := DefaultProbes(ProbeConfig{ClientID: "grafana"})
	require.NoError(t, err)
	v := newVerifier(t, srv.URL, nil)

	summary, err := v.Verify(context.Background(), probes)
	require.NoError(t, err)
	require.Equal(t, 4, summary.NotConfigured)

	srv.AddProvider("oauth2", "grafana-oauth2")
	summary, err = v.Verify(context.Background(), probes)
	require.NoError(t, err)
	require.Equal(t, bootstrap.ProbeNotConfigured, summary.Results[0].Status)
	require.Equal(t, 3, summary.Working)
}

type eventRecorder struct {
	count int
}

func (e *eventRecorder) Publish(_ context.Context, event ports.DomainEvent) error {
	if event.EventType() == ports.EventProbeCompleted {
		e.count++
	}
	return nil
}

func (e *eventRecorder) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, nil
}
