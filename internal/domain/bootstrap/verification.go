package bootstrap

import "time"

// ProbeStatus classifies an endpoint's observed response.
type ProbeStatus string

const (
	ProbeWorking       ProbeStatus = "working"
	ProbeNotConfigured ProbeStatus = "not_configured"
	ProbeUnexpected    ProbeStatus = "unexpected"
)

// ProbeResult is the classified response of a single endpoint.
type ProbeResult struct {
	Name       string        `json:"name" yaml:"name"`
	URL        string        `json:"url" yaml:"url"`
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Status     ProbeStatus   `json:"status" yaml:"status"`
	Expected   string        `json:"expected" yaml:"expected"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Flagged reports whether the result needs human review.
func (p ProbeResult) Flagged() bool {
	return p.Status == ProbeUnexpected
}

// VerificationSummary aggregates probe results and counts.
type VerificationSummary struct {
	Total         int           `json:"total" yaml:"total"`
	Working       int           `json:"working" yaml:"working"`
	NotConfigured int           `json:"not_configured" yaml:"not_configured"`
	Unexpected    int           `json:"unexpected" yaml:"unexpected"`
	Results       []ProbeResult `json:"results" yaml:"results"`
}

// Add appends a result and updates counters.
func (s *VerificationSummary) Add(result ProbeResult) {
	s.Results = append(s.Results, result)
	s.Total++
	switch result.Status {
	case ProbeWorking:
		s.Working++
	case ProbeNotConfigured:
		s.NotConfigured++
	default:
		s.Unexpected++
	}
}

// Healthy reports whether every probe is working.
func (s *VerificationSummary) Healthy() bool {
	return s != nil && s.Total > 0 && s.Working == s.Total
}

// Flagged returns results classified as unexpected.
func (s *VerificationSummary) Flagged() []ProbeResult {
	if s == nil {
		return nil
	}
	var out []ProbeResult
	for _, r := range s.Results {
		if r.Flagged() {
			out = append(out, r)
		}
	}
	return out
}
