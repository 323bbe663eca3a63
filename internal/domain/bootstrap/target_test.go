package bootstrap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTarget(t *testing.T) {
	admin := Credentials{Username: "akadmin", Password: "pw"}

	target, err := NewTarget("https://auth.example.com/", admin)
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.com", target.BaseURL)
	require.Equal(t, ReachabilityUnknown, target.Reachability)
	require.Equal(t, "https://auth.example.com/api/v3/root/config/", target.URL("api/v3/root/config/"))

	reached := target.WithReachability(ReachabilityReachable)
	require.Equal(t, ReachabilityReachable, reached.Reachability)
	require.Equal(t, ReachabilityUnknown, target.Reachability)

	_, err = NewTarget("auth.example.com", admin)
	require.True(t, errors.Is(err, &Error{Code: ErrCodeValidation}))

	_, err = NewTarget("ftp://auth.example.com", admin)
	require.Error(t, err)

	_, err = NewTarget("https://auth.example.com", Credentials{Username: "akadmin"})
	require.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	var s Session
	require.False(t, s.Valid())

	s.Establish("akadmin", Token{Value: "tok", Source: TokenFromCookie}, time.Now())
	require.True(t, s.Valid())
	require.Equal(t, 1, s.Generation())

	s.Invalidate("outpost restart")
	require.False(t, s.Valid())
	require.Equal(t, "outpost restart", s.InvalidatedBy())
	require.False(t, s.Token.Present())

	s.Establish("akadmin", Token{}, time.Now())
	require.Equal(t, 2, s.Generation())
	require.Empty(t, s.InvalidatedBy())
}

func TestStepMetadataValidate(t *testing.T) {
	require.NoError(t, StepMetadata{ID: StepApplication, Name: "Application", Criticality: BestEffort}.Validate())
	require.Error(t, StepMetadata{Name: "x", Criticality: Fatal}.Validate())
	require.Error(t, StepMetadata{ID: StepApplication, Criticality: Fatal}.Validate())
	require.Error(t, StepMetadata{ID: StepApplication, Name: "x", Criticality: "maybe"}.Validate())
	require.Error(t, StepMetadata{ID: StepApplication, Name: "x", Criticality: Fatal, Settle: -time.Second}.Validate())
}

func TestDocumentHelpers(t *testing.T) {
	doc := &Document{ContentType: "application/json; charset=utf-8", Body: []byte(`{"pk":3}`), Cookies: map[string]string{"authentik_csrf": "abc"}}
	require.True(t, doc.IsJSON())

	var payload struct {
		PK int `json:"pk"`
	}
	require.NoError(t, doc.DecodeJSON(&payload))
	require.Equal(t, 3, payload.PK)

	v, ok := doc.Cookie("authentik_csrf")
	require.True(t, ok)
	require.Equal(t, "abc", v)

	html := &Document{ContentType: "text/html"}
	require.False(t, html.IsJSON())
	require.Error(t, html.DecodeJSON(&payload))
}
