// Package config loads the authboot configuration: an optional YAML file,
// an optional .env file and AUTHBOOT_* environment overrides, validated
// with go-playground/validator.
package config

import "time"

// Config is the full authboot configuration document.
type Config struct {
	Target      TargetConfig      `yaml:"target"`
	Admin       AdminConfig       `yaml:"admin"`
	Driver      DriverConfig      `yaml:"driver"`
	Settings    SettingsConfig    `yaml:"settings"`
	Flows       FlowsConfig       `yaml:"flows"`
	ForwardAuth ForwardAuthConfig `yaml:"forward_auth"`
	Outpost     OutpostConfig     `yaml:"outpost"`
	OAuth2      OAuth2Config      `yaml:"oauth2"`
	Application ApplicationConfig `yaml:"application"`
	Verify      VerifyConfig      `yaml:"verify"`
	Output      OutputConfig      `yaml:"output"`
}

// TargetConfig locates the identity provider.
type TargetConfig struct {
	URL string `yaml:"url" validate:"required,http_url"`
}

// AdminConfig is the administrative identity created by the bootstrap
// flow and used for every authenticated call.
type AdminConfig struct {
	Username string `yaml:"username" validate:"required,max=150"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email" validate:"omitempty,email"`
	Password string `yaml:"password" validate:"required,min=8"`
}

// DriverConfig selects and tunes the interaction driver.
type DriverConfig struct {
	Type               string        `yaml:"type" validate:"required,driver"`
	Headless           bool          `yaml:"headless"`
	ChromePath         string        `yaml:"chrome_path"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	UserAgent          string        `yaml:"user_agent"`
	SubmitSettle       time.Duration `yaml:"submit_settle" validate:"min=0"`
}

// SettingsConfig holds run-wide timing parameters.
type SettingsConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`
	Retry          RetryConfig   `yaml:"retry"`
	// Settle, when set, replaces every step's post-apply wait.
	Settle *time.Duration `yaml:"settle" validate:"omitempty,min=0"`
	// Per-step settle waits used when Settle is unset.
	BootstrapSettle time.Duration `yaml:"bootstrap_settle" validate:"min=0"`
	AuthSettle      time.Duration `yaml:"auth_settle" validate:"min=0"`
	OutpostSettle   time.Duration `yaml:"outpost_settle" validate:"min=0"`
}

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	Attempts       int           `yaml:"attempts" validate:"min=0,max=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"min=0"`
}

// FlowsConfig names the interactive flow pages.
type FlowsConfig struct {
	SetupPath string `yaml:"setup_path" validate:"required,flow_path"`
	LoginPath string `yaml:"login_path" validate:"required,flow_path"`
}

// ForwardAuthConfig describes the forward-auth proxy provider.
type ForwardAuthConfig struct {
	Name                      string `yaml:"name" validate:"required"`
	Mode                      string `yaml:"mode" validate:"required,oneof=forward_single forward_domain proxy"`
	ExternalHost              string `yaml:"external_host" validate:"omitempty,http_url"`
	InternalHost              string `yaml:"internal_host" validate:"omitempty,http_url"`
	InternalHostSSLValidation bool   `yaml:"internal_host_ssl_validation"`
	CookieDomain              string `yaml:"cookie_domain" validate:"omitempty,hostname_rfc1123"`
	AuthorizationFlow         string `yaml:"authorization_flow" validate:"required"`
	InvalidationFlow          string `yaml:"invalidation_flow" validate:"required"`
}

// OutpostConfig names the outpost the forward-auth provider is attached to.
type OutpostConfig struct {
	Name string `yaml:"name" validate:"required"`
}

// OAuth2Config describes the OAuth2/OpenID provider.
type OAuth2Config struct {
	Name                   string   `yaml:"name" validate:"required"`
	ClientID               string   `yaml:"client_id" validate:"required"`
	ClientType             string   `yaml:"client_type" validate:"required,oneof=confidential public"`
	RedirectURIs           []string `yaml:"redirect_uris" validate:"omitempty,dive,url"`
	AuthorizationFlow      string   `yaml:"authorization_flow" validate:"required"`
	InvalidationFlow       string   `yaml:"invalidation_flow" validate:"required"`
	SubMode                string   `yaml:"sub_mode" validate:"required"`
	IssuerMode             string   `yaml:"issuer_mode" validate:"required,oneof=global per_provider"`
	IncludeClaimsInIDToken bool     `yaml:"include_claims_in_id_token"`
}

// ApplicationConfig describes the application bound to the OAuth2 provider.
type ApplicationConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Slug      string `yaml:"slug" validate:"required,slug"`
	LaunchURL string `yaml:"launch_url" validate:"omitempty,url"`
}

// VerifyConfig controls the endpoint checks that follow a run.
type VerifyConfig struct {
	Enabled bool `yaml:"enabled"`
	// Policies overrides the healthy status set per probe, e.g.
	// oauth2-token: ["405", "400"].
	Policies map[string][]string `yaml:"policies" validate:"omitempty,dive,keys,probe_name,endkeys,required,dive,status_policy"`
}

// OutputConfig lists the files a run leaves behind. Empty disables each.
type OutputConfig struct {
	Report         string `yaml:"report"`
	CredentialsEnv string `yaml:"credentials_env"`
	DiagnosticsDir string `yaml:"diagnostics_dir"`
	PlaybookFile   string `yaml:"playbook_file"`
}
