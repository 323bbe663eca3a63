package bootstrap

import "sync"

// Well-known artifact keys.
const (
	ArtifactAdminUsername        = "admin.username"
	ArtifactAdminPassword        = "admin.password"
	ArtifactSessionPrincipal     = "session.principal"
	ArtifactForwardAuthPK        = "forward_auth.provider_pk"
	ArtifactOutpostPK            = "outpost.pk"
	ArtifactOAuth2ProviderPK     = "oauth2.provider_pk"
	ArtifactOAuth2ClientID       = "oauth2.client_id"
	ArtifactOAuth2ClientSecret   = "oauth2.client_secret"
	ArtifactApplicationSlug      = "application.slug"
	ArtifactApplicationLaunchURL = "application.launch_url"
)

const redacted = "********"

// Artifact is a value a step produced for later steps or the report.
type Artifact struct {
	Key    string `json:"key" yaml:"key"`
	StepID StepID `json:"step_id" yaml:"step_id"`
	Value  string `json:"value" yaml:"value"`
	// Sensitive values are long-lived credentials and are always redacted.
	Sensitive bool `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
	// OneTime values are shown by the target only once; the report reveals
	// them exactly once.
	OneTime bool `json:"one_time,omitempty" yaml:"one_time,omitempty"`
}

// Redacted returns a copy safe to log or export.
func (a Artifact) Redacted() Artifact {
	if a.Sensitive || a.OneTime {
		a.Value = redacted
	}
	return a
}

// ArtifactSet is the append-only collection owned by a run.
type ArtifactSet struct {
	mu       sync.Mutex
	items    []Artifact
	index    map[string]int
	revealed map[string]bool
}

// NewArtifactSet returns an empty set.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{
		index:    make(map[string]int),
		revealed: make(map[string]bool),
	}
}

// Add appends an artifact. A key already present is kept as-is and Add
// returns false, so a one-time secret can never be overwritten by a later
// read of the same resource.
func (s *ArtifactSet) Add(a Artifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Key == "" {
		return false
	}
	if _, exists := s.index[a.Key]; exists {
		return false
	}
	s.index[a.Key] = len(s.items)
	s.items = append(s.items, a)
	return true
}

// Get returns the artifact stored under key.
func (s *ArtifactSet) Get(key string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return Artifact{}, false
	}
	return s.items[i], true
}

// Value returns the raw value stored under key, or "".
func (s *ArtifactSet) Value(key string) string {
	a, _ := s.Get(key)
	return a.Value
}

// All returns the artifacts in insertion order.
func (s *ArtifactSet) All() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of stored artifacts.
func (s *ArtifactSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Reveal returns the display value for key. Sensitive values are always
// redacted; one-time values are returned in clear on the first call only.
func (s *ArtifactSet) Reveal(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	a := s.items[i]
	switch {
	case a.Sensitive:
		return redacted, true
	case a.OneTime:
		if s.revealed[key] {
			return redacted, true
		}
		s.revealed[key] = true
		return a.Value, true
	default:
		return a.Value, true
	}
}
