package config

import (
	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/steps"
	"github.com/alexisbeaulieu97/authboot/internal/verify"
)

// Credentials returns the admin identity.
func (c *Config) Credentials() bootstrap.Credentials {
	return bootstrap.Credentials{
		Username: c.Admin.Username,
		Name:     c.Admin.Name,
		Email:    c.Admin.Email,
		Password: c.Admin.Password,
	}
}

// BuildTarget returns the validated target.
func (c *Config) BuildTarget() (bootstrap.Target, error) {
	return bootstrap.NewTarget(c.Target.URL, c.Credentials())
}

// RunSettings maps timing settings onto the runner's settings.
func (c *Config) RunSettings() bootstrap.Settings {
	s := bootstrap.Settings{
		Retry: bootstrap.RetryPolicy{
			Attempts:       c.Settings.Retry.Attempts,
			InitialBackoff: c.Settings.Retry.InitialBackoff,
			MaxBackoff:     c.Settings.Retry.MaxBackoff,
		},
		RequestTimeout: c.Settings.RequestTimeout,
	}
	if c.Settings.Settle != nil {
		v := *c.Settings.Settle
		s.SettleOverride = &v
	}
	return s.ApplyDefaults()
}

// StepOptions maps resource settings onto the step catalog options.
func (c *Config) StepOptions() steps.Options {
	opts := steps.DefaultOptions()
	opts.SetupFlowPath = c.Flows.SetupPath
	opts.LoginFlowPath = c.Flows.LoginPath
	opts.BootstrapSettle = c.Settings.BootstrapSettle
	opts.AuthSettle = c.Settings.AuthSettle
	opts.OutpostSettle = c.Settings.OutpostSettle

	external := c.ForwardAuth.ExternalHost
	if external == "" {
		external = c.Target.URL
	}
	opts.ForwardAuth = steps.ForwardAuthOptions{
		Name:                      c.ForwardAuth.Name,
		Mode:                      c.ForwardAuth.Mode,
		ExternalHost:              external,
		InternalHost:              c.ForwardAuth.InternalHost,
		InternalHostSSLValidation: c.ForwardAuth.InternalHostSSLValidation,
		CookieDomain:              c.ForwardAuth.CookieDomain,
		AuthorizationFlow:         c.ForwardAuth.AuthorizationFlow,
		InvalidationFlow:          c.ForwardAuth.InvalidationFlow,
	}
	opts.OutpostName = c.Outpost.Name
	opts.OAuth2 = steps.OAuth2Options{
		Name:                   c.OAuth2.Name,
		ClientID:               c.OAuth2.ClientID,
		ClientType:             c.OAuth2.ClientType,
		RedirectURIs:           append([]string(nil), c.OAuth2.RedirectURIs...),
		AuthorizationFlow:      c.OAuth2.AuthorizationFlow,
		InvalidationFlow:       c.OAuth2.InvalidationFlow,
		SubMode:                c.OAuth2.SubMode,
		IssuerMode:             c.OAuth2.IssuerMode,
		IncludeClaimsInIDToken: c.OAuth2.IncludeClaimsInIDToken,
	}
	opts.Application = steps.ApplicationOptions{
		Name:      c.Application.Name,
		Slug:      c.Application.Slug,
		LaunchURL: c.Application.LaunchURL,
	}
	return opts
}

// ProbeConfig parameterises the verifier's default probes.
func (c *Config) ProbeConfig() verify.ProbeConfig {
	cfg := verify.ProbeConfig{
		ClientID:  c.OAuth2.ClientID,
		LaunchURL: c.Application.LaunchURL,
		Policies:  c.Verify.Policies,
	}
	if len(c.OAuth2.RedirectURIs) > 0 {
		cfg.RedirectURI = c.OAuth2.RedirectURIs[0]
	}
	return cfg
}

// LogFields describes the configuration for logs without credentials.
func (c *Config) LogFields() []interface{} {
	return []interface{}{
		"target", c.Target.URL,
		"admin_user", c.Admin.Username,
		"driver", c.Driver.Type,
		"headless", c.Driver.Headless,
		"verify", c.Verify.Enabled,
	}
}
