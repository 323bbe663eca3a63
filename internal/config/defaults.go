package config

import (
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/steps"
)

// Driver types.
const (
	DriverHTTP = "http"
	DriverDOM  = "dom"
)

// Default returns the configuration every file and override is layered on.
// Resource names and waits follow steps.DefaultOptions.
func Default() Config {
	opts := steps.DefaultOptions()
	return Config{
		Admin: AdminConfig{
			Username: "akadmin",
			Name:     "authentik Default Admin",
		},
		Driver: DriverConfig{
			Type:         DriverHTTP,
			Headless:     true,
			SubmitSettle: 2 * time.Second,
		},
		Settings: SettingsConfig{
			RequestTimeout: 15 * time.Second,
			Retry: RetryConfig{
				Attempts:       3,
				InitialBackoff: time.Second,
				MaxBackoff:     8 * time.Second,
			},
			BootstrapSettle: opts.BootstrapSettle,
			AuthSettle:      opts.AuthSettle,
			OutpostSettle:   opts.OutpostSettle,
		},
		Flows: FlowsConfig{
			SetupPath: opts.SetupFlowPath,
			LoginPath: opts.LoginFlowPath,
		},
		ForwardAuth: ForwardAuthConfig{
			Name:              opts.ForwardAuth.Name,
			Mode:              opts.ForwardAuth.Mode,
			AuthorizationFlow: opts.ForwardAuth.AuthorizationFlow,
			InvalidationFlow:  opts.ForwardAuth.InvalidationFlow,
		},
		Outpost: OutpostConfig{Name: opts.OutpostName},
		OAuth2: OAuth2Config{
			Name:                   opts.OAuth2.Name,
			ClientID:               opts.OAuth2.ClientID,
			ClientType:             opts.OAuth2.ClientType,
			AuthorizationFlow:      opts.OAuth2.AuthorizationFlow,
			InvalidationFlow:       opts.OAuth2.InvalidationFlow,
			SubMode:                opts.OAuth2.SubMode,
			IssuerMode:             opts.OAuth2.IssuerMode,
			IncludeClaimsInIDToken: opts.OAuth2.IncludeClaimsInIDToken,
		},
		Application: ApplicationConfig{
			Name: opts.Application.Name,
			Slug: opts.Application.Slug,
		},
		Verify: VerifyConfig{Enabled: true},
	}
}
