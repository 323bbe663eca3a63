package bootstrap

import "time"

// RetryPolicy bounds per-step retries of transient failures.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Settings captures run-wide execution parameters.
type Settings struct {
	Retry          RetryPolicy
	RequestTimeout time.Duration
	// SettleOverride replaces every step's settle duration when non-nil.
	SettleOverride *time.Duration
}

// Clone returns a copy of settings to avoid accidental mutations.
func (s Settings) Clone() Settings {
	clone := s
	if s.SettleOverride != nil {
		v := *s.SettleOverride
		clone.SettleOverride = &v
	}
	return clone
}

// ApplyDefaults fills unset values.
func (s Settings) ApplyDefaults() Settings {
	clone := s.Clone()
	if clone.Retry.Attempts <= 0 {
		clone.Retry.Attempts = 3
	}
	if clone.Retry.InitialBackoff <= 0 {
		clone.Retry.InitialBackoff = time.Second
	}
	if clone.Retry.MaxBackoff <= 0 {
		clone.Retry.MaxBackoff = 8 * time.Second
	}
	if clone.Retry.MaxBackoff < clone.Retry.InitialBackoff {
		clone.Retry.MaxBackoff = clone.Retry.InitialBackoff
	}
	if clone.RequestTimeout <= 0 {
		clone.RequestTimeout = 15 * time.Second
	}
	return clone
}

// Backoff returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialBackoff
	}
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}
