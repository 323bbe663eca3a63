package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeConfig writes a configuration for the fake target at url with all
// waits disabled.
func writeConfig(t *testing.T, url, password string) string {
	t.Helper()
	content := fmt.Sprintf(`target:
  url: %s
admin:
  email: admin@example.test
  password: %s
driver:
  type: http
settings:
  request_timeout: 5s
  settle: 0s
  retry:
    attempts: 1
    initial_backoff: 1ms
    max_backoff: 1ms
forward_auth:
  external_host: https://auth.example.test
oauth2:
  redirect_uris:
    - https://grafana.example.test/login/generic_oauth
`, url, password)
	path := filepath.Join(t.TempDir(), "authboot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
