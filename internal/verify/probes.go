package verify

import (
	"net/http"
	"net/url"
	"strings"
)

// Probe names, also used as keys for per-endpoint policy overrides.
const (
	ProbeForwardAuth = "forward-auth"
	ProbeAuthorize   = "oauth2-authorize"
	ProbeToken       = "oauth2-token"
	ProbeUserinfo    = "oauth2-userinfo"
	// ProbeRelyingParty checks that the application's OAuth login entry
	// point hands the browser to the target.
	ProbeRelyingParty = "relying-party-login"
)

// RelyingPartyLoginPath is where Grafana-style applications start the
// generic OAuth login.
const RelyingPartyLoginPath = "/login/generic_oauth"

// relyingPartyPolicy only accepts a redirect; the Location is checked too.
var relyingPartyPolicy = []string{"3xx"}

// Probe is one public endpoint check.
type Probe struct {
	Name string
	Path string
	// URL, when set, is an absolute address used instead of Path on the
	// target.
	URL    string
	Query  url.Values
	Header http.Header
	Policy Policy
	// RedirectToTarget requires a redirect answer to point at the target's
	// host.
	RedirectToTarget bool
}

// ProbeConfig parameterises the default probe set.
type ProbeConfig struct {
	// ClientID, when set, is sent to the authorize endpoint so the target
	// resolves the provider instead of rejecting the request outright.
	ClientID    string
	RedirectURI string
	// LaunchURL enables the relying-party login check against the
	// application itself.
	LaunchURL string
	// Policies overrides the healthy status set per probe name.
	Policies map[string][]string
}

// DefaultProbes returns the forward-auth, authorize, token and userinfo
// probes, plus the relying-party login check when a launch URL is known.
func DefaultProbes(cfg ProbeConfig) ([]Probe, error) {
	authorize := url.Values{}
	if cfg.ClientID != "" {
		authorize.Set("client_id", cfg.ClientID)
		authorize.Set("response_type", "code")
		authorize.Set("scope", "openid profile email")
		authorize.Set("state", "authboot-verify")
		if cfg.RedirectURI != "" {
			authorize.Set("redirect_uri", cfg.RedirectURI)
		}
	}

	probes := []Probe{
		{Name: ProbeForwardAuth, Path: "/outpost.goauthentik.io/auth/traefik"},
		{Name: ProbeAuthorize, Path: "/application/o/authorize/", Query: authorize},
		{Name: ProbeToken, Path: "/application/o/token/"},
		{Name: ProbeUserinfo, Path: "/application/o/userinfo/", Header: http.Header{"Authorization": {"Bearer invalid-token"}}},
	}
	if cfg.LaunchURL != "" {
		probes = append(probes, Probe{
			Name:             ProbeRelyingParty,
			URL:              strings.TrimRight(cfg.LaunchURL, "/") + RelyingPartyLoginPath,
			RedirectToTarget: true,
		})
	}
	for i := range probes {
		tokens := DefaultPolicy
		if probes[i].Name == ProbeRelyingParty {
			tokens = relyingPartyPolicy
		}
		if override, ok := cfg.Policies[probes[i].Name]; ok && len(override) > 0 {
			tokens = override
		}
		policy, err := ParsePolicy(tokens)
		if err != nil {
			return nil, err
		}
		probes[i].Policy = policy
	}
	return probes, nil
}
