package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/verify"
	apperrors "github.com/alexisbeaulieu97/authboot/pkg/errors"
)

func mapLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const fullYAML = `target:
  url: https://auth.example.test/
admin:
  username: root
  email: root@example.test
  password: correct-horse
driver:
  type: dom
  headless: false
settings:
  request_timeout: 30s
  retry:
    attempts: 5
    initial_backoff: 500ms
    max_backoff: 4s
  settle: 0s
forward_auth:
  external_host: https://auth.example.test
  cookie_domain: example.test
oauth2:
  redirect_uris:
    - https://grafana.example.test/login/generic_oauth
application:
  launch_url: https://grafana.example.test
verify:
  policies:
    oauth2-token: ["405", "400"]
    relying-party-login: ["302"]
`

func TestLoadDefaultsAndEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{Lookup: mapLookup(map[string]string{
		EnvURL:           "https://auth.example.test",
		EnvAdminPassword: "correct-horse",
		EnvDriver:        "HTTP",
	})})
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.test", cfg.Target.URL)
	require.Equal(t, "akadmin", cfg.Admin.Username)
	require.Equal(t, DriverHTTP, cfg.Driver.Type)
	require.True(t, cfg.Verify.Enabled)

	settings := cfg.RunSettings()
	require.Equal(t, 3, settings.Retry.Attempts)
	require.Equal(t, 15*time.Second, settings.RequestTimeout)
	require.Nil(t, settings.SettleOverride)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "authboot.yaml", fullYAML)
	cfg, err := Load(LoadOptions{Path: path, Lookup: mapLookup(nil)})
	require.NoError(t, err)

	require.Equal(t, "root", cfg.Admin.Username)
	require.Equal(t, "authentik Default Admin", cfg.Admin.Name, "unset keys keep defaults")
	require.Equal(t, DriverDOM, cfg.Driver.Type)
	require.False(t, cfg.Driver.Headless)

	settings := cfg.RunSettings()
	require.Equal(t, 5, settings.Retry.Attempts)
	require.Equal(t, 500*time.Millisecond, settings.Retry.InitialBackoff)
	require.Equal(t, 30*time.Second, settings.RequestTimeout)
	require.NotNil(t, settings.SettleOverride)
	require.Zero(t, *settings.SettleOverride)

	target, err := cfg.BuildTarget()
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.test", target.BaseURL)
	require.Equal(t, "correct-horse", target.Admin.Password)

	opts := cfg.StepOptions()
	require.Equal(t, "example.test", opts.ForwardAuth.CookieDomain)
	require.Equal(t, "traefik-forwardauth", opts.ForwardAuth.Name)
	require.Equal(t, []string{"https://grafana.example.test/login/generic_oauth"}, opts.OAuth2.RedirectURIs)
	require.Equal(t, "https://grafana.example.test", opts.Application.LaunchURL)

	probes := cfg.ProbeConfig()
	require.Equal(t, "grafana", probes.ClientID)
	require.Equal(t, "https://grafana.example.test/login/generic_oauth", probes.RedirectURI)
	require.Equal(t, "https://grafana.example.test", probes.LaunchURL)
	require.Equal(t, []string{"302"}, probes.Policies[verify.ProbeRelyingParty])
	require.Equal(t, []string{"405", "400"}, probes.Policies[verify.ProbeToken])
}

func TestEnvironmentBeatsFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "authboot.yaml", fullYAML)
	envFile := writeFile(t, "test.env", "AUTHBOOT_ADMIN_USER=from-dotenv\nAUTHBOOT_DRIVER=http\n")

	cfg, err := Load(LoadOptions{
		Path:    path,
		EnvFile: envFile,
		Lookup:  mapLookup(map[string]string{EnvDriver: "dom", EnvHeadless: "true"}),
	})
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Admin.Username)
	require.Equal(t, DriverDOM, cfg.Driver.Type, "process environment wins over the env file")
	require.True(t, cfg.Driver.Headless)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		yaml   string
		env    map[string]string
		assert func(t *testing.T, err error)
	}{
		{
			name: "unknown key is rejected with its line",
			yaml: "target:\n  url: https://auth.example.test\n  bogus: 1\n",
			assert: func(t *testing.T, err error) {
				var cfgErr *apperrors.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, 3, cfgErr.Line)
			},
		},
		{
			name: "malformed yaml reports a line",
			yaml: "target:\n  url: [unterminated\n",
			assert: func(t *testing.T, err error) {
				var cfgErr *apperrors.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				require.Positive(t, cfgErr.Line)
			},
		},
		{
			name: "unknown driver names the field and line",
			yaml: "target:\n  url: https://auth.example.test\nadmin:\n  password: correct-horse\ndriver:\n  type: ftp\n",
			assert: func(t *testing.T, err error) {
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				require.Equal(t, "driver.type", valErr.Field)
				require.Equal(t, 6, valErr.Line)
				require.Contains(t, valErr.Message, `unknown driver "ftp"`)
			},
		},
		{
			name: "bad status policy token",
			yaml: "target:\n  url: https://auth.example.test\nadmin:\n  password: correct-horse\nverify:\n  policies:\n    oauth2-token: [\"4x5\"]\n",
			assert: func(t *testing.T, err error) {
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				require.Equal(t, "verify.policies[oauth2-token][0]", valErr.Field)
				require.Equal(t, 7, valErr.Line)
			},
		},
		{
			name: "unknown probe name",
			yaml: "target:\n  url: https://auth.example.test\nadmin:\n  password: correct-horse\nverify:\n  policies:\n    metrics: [\"200\"]\n",
			assert: func(t *testing.T, err error) {
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				require.Contains(t, valErr.Message, `unknown probe "metrics"`)
			},
		},
		{
			name: "missing target url",
			yaml: "admin:\n  password: correct-horse\n",
			assert: func(t *testing.T, err error) {
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				require.Equal(t, "target.url", valErr.Field)
				require.Equal(t, "is required", valErr.Message)
			},
		},
		{
			name: "backoff ordering",
			yaml: "target:\n  url: https://auth.example.test\nadmin:\n  password: correct-horse\nsettings:\n  retry:\n    initial_backoff: 10s\n    max_backoff: 1s\n",
			assert: func(t *testing.T, err error) {
				var valErr *apperrors.ValidationError
				require.ErrorAs(t, err, &valErr)
				require.Equal(t, "settings.retry.max_backoff", valErr.Field)
				require.Equal(t, 8, valErr.Line)
			},
		},
		{
			name: "headless must be a boolean",
			yaml: "target:\n  url: https://auth.example.test\nadmin:\n  password: correct-horse\n",
			env:  map[string]string{EnvHeadless: "sometimes"},
			assert: func(t *testing.T, err error) {
				var cfgErr *apperrors.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, EnvHeadless, cfgErr.Field)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, "authboot.yaml", tc.yaml)
			cfg, err := Load(LoadOptions{Path: path, Lookup: mapLookup(tc.env)})
			require.Error(t, err)
			require.Nil(t, cfg)
			tc.assert(t, err)
		})
	}
}

func TestMissingFiles(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "absent.yaml")})
	var cfgErr *apperrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(LoadOptions{
		EnvFile: filepath.Join(t.TempDir(), "absent.env"),
		Lookup:  mapLookup(map[string]string{EnvURL: "https://auth.example.test", EnvAdminPassword: "correct-horse"}),
	})
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseEmptyDocumentKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, root, err := Parse("empty.yaml", nil)
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Equal(t, Default(), *cfg)
}

func TestLogFieldsOmitPassword(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Admin.Password = "correct-horse"
	for _, f := range cfg.LogFields() {
		require.NotEqual(t, "correct-horse", f)
	}
}

func TestSplitField(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"verify", "policies", "oauth2-token", "0"}, splitField("verify.policies[oauth2-token][0]"))
	require.Equal(t, []string{"target", "url"}, splitField("target.url"))
}
