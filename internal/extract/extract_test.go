package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

func htmlDoc(body string) *bootstrap.Document {
	return &bootstrap.Document{
		URL:         "http://auth.local/if/flow/initial-setup/",
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

func TestTokenPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    *bootstrap.Document
		value  string
		source bootstrap.TokenSource
	}{
		{
			name: "hidden field wins over meta",
			doc: htmlDoc(`<html><head><meta name="csrf-token" content="meta-tok"></head>
<body><form><input type="hidden" name="csrfmiddlewaretoken" value="form-tok"></form></body></html>`),
			value:  "form-tok",
			source: bootstrap.TokenFromForm,
		},
		{
			name:   "meta tag",
			doc:    htmlDoc(`<html><head><meta name="csrf-token" content="meta-tok"></head><body></body></html>`),
			value:  "meta-tok",
			source: bootstrap.TokenFromMeta,
		},
		{
			name:   "inline script",
			doc:    htmlDoc(`<html><body><script>window.authentik = { csrfToken: "script-tok" };</script></body></html>`),
			value:  "script-tok",
			source: bootstrap.TokenFromScript,
		},
		{
			name:   "json style script",
			doc:    htmlDoc(`<script>var cfg = {"csrf_token": "json-tok"}</script>`),
			value:  "json-tok",
			source: bootstrap.TokenFromScript,
		},
		{
			name: "cookie fallback",
			doc: &bootstrap.Document{
				ContentType: "application/json",
				Body:        []byte(`{}`),
				Cookies:     map[string]string{"csrftoken": "legacy", "authentik_csrf": "cookie-tok"},
			},
			value:  "cookie-tok",
			source: bootstrap.TokenFromCookie,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tok, err := Token(tt.doc)
			require.NoError(t, err)
			require.Equal(t, tt.value, tok.Value)
			require.Equal(t, tt.source, tok.Source)
		})
	}
}

func TestTokenNotFound(t *testing.T) {
	t.Parallel()

	_, err := Token(htmlDoc(`<html><body><form></form></body></html>`))
	require.Error(t, err)
	require.True(t, errors.Is(err, bootstrap.ErrTokenNotFound))

	_, err = Token(nil)
	require.True(t, errors.Is(err, bootstrap.ErrTokenNotFound))
}

func TestFlowExecution(t *testing.T) {
	t.Parallel()

	v, err := FlowExecution(htmlDoc(`<form><input type="hidden" name="flow_execution" value="exec-1"></form>`))
	require.NoError(t, err)
	require.Equal(t, "exec-1", v)

	fromURL := htmlDoc(`<html></html>`)
	fromURL.URL = "http://auth.local/if/flow/initial-setup/?flow_execution=exec-2"
	v, err = FlowExecution(fromURL)
	require.NoError(t, err)
	require.Equal(t, "exec-2", v)

	v, err = FlowExecution(htmlDoc(`<script>const flow_execution = "exec-3";</script>`))
	require.NoError(t, err)
	require.Equal(t, "exec-3", v)

	_, err = FlowExecution(htmlDoc(`<html></html>`))
	require.True(t, errors.Is(err, bootstrap.ErrNotFound))
}

func TestSecretFromJSON(t *testing.T) {
	t.Parallel()

	doc := &bootstrap.Document{
		ContentType: "application/json",
		Body:        []byte(`{"pk": 4, "name": "grafana-oauth2", "client_id": "grafana", "client_secret": "Zx9-generated"}`),
	}
	secret, err := Secret(doc)
	require.NoError(t, err)
	require.Equal(t, "Zx9-generated", secret)

	_, err = Secret(&bootstrap.Document{ContentType: "application/json", Body: []byte(`{"pk": 4}`)})
	require.True(t, errors.Is(err, bootstrap.ErrNotFound))
}

func TestSecretFromMarkupVariants(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"patternfly4": `<div class="pf-c-clipboard-copy__text"> pf4-secret </div>`,
		"patternfly5": `<span class="pf-v5-c-clipboard-copy__text">pf5-secret</span>`,
		"input":       `<form><input name="client_secret" value="input-secret"></form>`,
		"code":        `<p>Secret: <code>code-secret</code></p>`,
	}
	want := map[string]string{
		"patternfly4": "pf4-secret",
		"patternfly5": "pf5-secret",
		"input":       "input-secret",
		"code":        "code-secret",
	}
	for name, body := range cases {
		secret, err := Secret(htmlDoc(body))
		require.NoError(t, err, name)
		require.Equal(t, want[name], secret, name)
	}
}

func TestMatchFieldFallsBackToAlternate(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<form>
<input type="text" name="uidField" value="">
<input type="password" name="password">
</form>`)
	field := bootstrap.Field{
		Name:       "username",
		Candidates: []string{`input[name="username"]`, `input[name="uid_field"]`, `input[name="uidField"]`},
	}

	handle, err := MatchField(doc, field)
	require.NoError(t, err)
	require.Equal(t, `input[name="uidField"]`, handle.Selector)
	require.Equal(t, "uidField", handle.Name)
	require.Equal(t, "username", handle.Field)
}

func TestMatchFieldNotFound(t *testing.T) {
	t.Parallel()

	_, err := MatchField(htmlDoc(`<form></form>`), bootstrap.Field{Name: "email", Candidates: []string{`input[name="email"]`}})
	require.True(t, errors.Is(err, bootstrap.ErrSelectorNotFound))
}

func TestHiddenInputsAndAction(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<form action="/if/flow/initial-setup/?next=/">
<input type="hidden" name="csrfmiddlewaretoken" value="a">
<input type="hidden" name="flow_execution" value="b">
<input type="hidden" name="csrfmiddlewaretoken" value="dup">
<input type="text" name="username">
</form>`)
	hidden, err := HiddenInputs(doc)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"csrfmiddlewaretoken": "a", "flow_execution": "b"}, hidden)
	require.Equal(t, "/if/flow/initial-setup/?next=/", FormAction(doc))
}

func TestFormErrors(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<form><ul class="errorlist"><li>Passwords do not match.</li></ul>
<p class="pf-c-form__helper-text pf-m-error">Enter a valid email address.</p></form>`)
	require.Equal(t, []string{"Passwords do not match.", "Enter a valid email address."}, FormErrors(doc))
	require.Empty(t, FormErrors(htmlDoc(`<form></form>`)))
	require.Nil(t, FormErrors(&bootstrap.Document{ContentType: "application/json"}))
}
