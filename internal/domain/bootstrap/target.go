package bootstrap

import (
	"net/url"
	"strings"
)

// Reachability records what the preflight probe learned about the target.
type Reachability string

const (
	ReachabilityUnknown     Reachability = "unknown"
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
)

// Credentials is the administrative identity used for bootstrap and login.
type Credentials struct {
	Username string
	Name     string
	Email    string
	Password string
}

// Target is the remote system under configuration. It is built once per run
// and never mutated; WithReachability returns a copy.
type Target struct {
	BaseURL      string
	Admin        Credentials
	Reachability Reachability
}

// NewTarget validates the base address and returns a Target with unknown
// reachability.
func NewTarget(baseURL string, admin Credentials) (Target, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Target{}, NewValidationError("target url must be absolute", map[string]interface{}{
			"url": baseURL,
		})
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Target{}, NewValidationError("target url scheme must be http or https", map[string]interface{}{
			"url": baseURL,
		})
	}
	if admin.Username == "" || admin.Password == "" {
		return Target{}, NewValidationError("admin username and password are required", nil)
	}
	return Target{
		BaseURL:      trimmed,
		Admin:        admin,
		Reachability: ReachabilityUnknown,
	}, nil
}

// URL joins path onto the base address.
func (t Target) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.BaseURL + path
}

// WithReachability returns a copy of the target with reachability set.
func (t Target) WithReachability(r Reachability) Target {
	t.Reachability = r
	return t
}
