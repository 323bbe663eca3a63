package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Keys written to the credentials env file.
const (
	EnvClientID     = "GRAFANA_OAUTH2_CLIENT_ID"
	EnvClientSecret = "GRAFANA_OAUTH2_CLIENT_SECRET"
	EnvAuthURL      = "GRAFANA_OAUTH2_AUTH_URL"
	EnvTokenURL     = "GRAFANA_OAUTH2_TOKEN_URL"
	EnvAPIURL       = "GRAFANA_OAUTH2_API_URL"
)

// WriteCredentials persists the OAuth2 client credentials captured by the
// run to path with owner-only permissions. It reports false without writing
// when no client secret was captured, which is the case on every rerun.
func WriteCredentials(path string, report *bootstrap.RunReport) (bool, error) {
	if report.Artifacts == nil {
		return false, nil
	}
	secret, ok := report.Artifacts.Get(bootstrap.ArtifactOAuth2ClientSecret)
	if !ok || secret.Value == "" {
		return false, nil
	}
	endpoints := EndpointsFor(report.Target)
	env := map[string]string{
		EnvClientID:     report.Artifacts.Value(bootstrap.ArtifactOAuth2ClientID),
		EnvClientSecret: secret.Value,
		EnvAuthURL:      endpoints.Authorize,
		EnvTokenURL:     endpoints.Token,
		EnvAPIURL:       endpoints.Userinfo,
	}
	content, err := godotenv.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("create credentials directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return false, fmt.Errorf("write credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return false, fmt.Errorf("restrict credentials file: %w", err)
	}
	return true, nil
}
