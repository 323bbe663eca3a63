package steps

import "time"

// ForwardAuthOptions describes the forward-auth proxy provider.
type ForwardAuthOptions struct {
	Name                      string
	Mode                      string
	ExternalHost              string
	InternalHost              string
	InternalHostSSLValidation bool
	CookieDomain              string
	AuthorizationFlow         string
	InvalidationFlow          string
}

// OAuth2Options describes the OAuth2/OpenID provider.
type OAuth2Options struct {
	Name                   string
	ClientID               string
	ClientType             string
	RedirectURIs           []string
	AuthorizationFlow      string
	InvalidationFlow       string
	SubMode                string
	IssuerMode             string
	IncludeClaimsInIDToken bool
}

// ApplicationOptions describes the application bound to the OAuth2 provider.
type ApplicationOptions struct {
	Name      string
	Slug      string
	LaunchURL string
}

// Options carries everything the step catalog needs from configuration.
type Options struct {
	SetupFlowPath string
	LoginFlowPath string

	BootstrapSettle time.Duration
	AuthSettle      time.Duration
	OutpostSettle   time.Duration

	ForwardAuth ForwardAuthOptions
	OutpostName string
	OAuth2      OAuth2Options
	Application ApplicationOptions
}

// DefaultOptions mirrors the target's stock flows and the resource names the
// bootstrap has always used.
func DefaultOptions() Options {
	return Options{
		SetupFlowPath:   "/if/flow/initial-setup/",
		LoginFlowPath:   "/if/flow/default-authentication-flow/",
		BootstrapSettle: 3 * time.Second,
		AuthSettle:      2 * time.Second,
		OutpostSettle:   10 * time.Second,
		ForwardAuth: ForwardAuthOptions{
			Name:              "traefik-forwardauth",
			Mode:              "forward_single",
			AuthorizationFlow: "default-provider-authorization-explicit-consent",
			InvalidationFlow:  "default-provider-invalidation-flow",
		},
		OutpostName: "authentik Embedded Outpost",
		OAuth2: OAuth2Options{
			Name:                   "grafana-oauth2",
			ClientID:               "grafana",
			ClientType:             "confidential",
			AuthorizationFlow:      "default-provider-authorization-explicit-consent",
			InvalidationFlow:       "default-provider-invalidation-flow",
			SubMode:                "hashed_user_id",
			IssuerMode:             "per_provider",
			IncludeClaimsInIDToken: true,
		},
		Application: ApplicationOptions{
			Name: "Grafana",
			Slug: "grafana",
		},
	}
}
