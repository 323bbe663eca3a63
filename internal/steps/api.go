package steps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/extract"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

const (
	pathMe           = "/api/v3/core/users/me/"
	pathFlows        = "/api/v3/flows/instances/"
	pathProxy        = "/api/v3/providers/proxy/"
	pathOutposts     = "/api/v3/outposts/instances/"
	pathOAuth2       = "/api/v3/providers/oauth2/"
	pathApplications = "/api/v3/core/applications/"
)

type listResponse[T any] struct {
	Results []T `json:"results"`
}

type flowRecord struct {
	PK   string `json:"pk"`
	Slug string `json:"slug"`
}

type proxyProvider struct {
	PK           int    `json:"pk"`
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	ExternalHost string `json:"external_host"`
}

type outpostRecord struct {
	PK        string `json:"pk"`
	Name      string `json:"name"`
	Providers []int  `json:"providers"`
}

type oauth2Provider struct {
	PK           int    `json:"pk"`
	Name         string `json:"name"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type applicationRecord struct {
	PK       string `json:"pk"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Provider *int   `json:"provider"`
}

type meResponse struct {
	User struct {
		PK       int    `json:"pk"`
		Username string `json:"username"`
	} `json:"user"`
}

func withQuery(path string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return path + "?" + values.Encode()
}

// getJSON fetches path, refreshes the session token from the response
// cookies and decodes the body into out.
func getJSON(ctx context.Context, sc *ports.StepContext, path string, out interface{}) error {
	doc, err := sc.Driver.Fetch(ctx, path)
	if err != nil {
		return err
	}
	refreshToken(sc, doc)
	return doc.DecodeJSON(out)
}

// findOne lists path and returns the first result match accepts.
func findOne[T any](ctx context.Context, sc *ports.StepContext, path string, match func(T) bool) (T, bool, error) {
	var zero T
	var list listResponse[T]
	if err := getJSON(ctx, sc, path, &list); err != nil {
		return zero, false, err
	}
	for _, item := range list.Results {
		if match(item) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// submitJSON sends payload with the session's anti-forgery token and decodes
// the response into out when it is non-nil.
func submitJSON(ctx context.Context, sc *ports.StepContext, method, path string, payload, out interface{}) (*bootstrap.Document, error) {
	var token bootstrap.Token
	if sc.Session != nil {
		token = sc.Session.Token
	}
	doc, err := sc.Driver.Submit(ctx, bootstrap.SubmitRequest{
		Method: method,
		Path:   path,
		JSON:   payload,
		Token:  token,
	})
	if doc != nil {
		refreshToken(sc, doc)
	}
	if err != nil {
		return doc, err
	}
	if out != nil {
		if err := doc.DecodeJSON(out); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

func refreshToken(sc *ports.StepContext, doc *bootstrap.Document) {
	if sc.Session == nil || doc == nil {
		return
	}
	if tok, err := extract.Token(doc); err == nil {
		sc.Session.UpdateToken(tok)
	}
}

// isConflict reports a create rejected because the resource already exists.
func isConflict(doc *bootstrap.Document, err error) bool {
	switch bootstrap.StatusOf(err) {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		if doc == nil {
			return false
		}
		body := strings.ToLower(doc.Text())
		return strings.Contains(body, "already exists") || strings.Contains(body, "unique")
	default:
		return false
	}
}

// createError maps a failed create to a conflict when appropriate.
func createError(doc *bootstrap.Document, err error, resource, name string) error {
	if isConflict(doc, err) {
		return bootstrap.NewConflict(resource, name, err)
	}
	return fmt.Errorf("create %s %q: %w", resource, name, err)
}

// resolveFlow maps a flow slug to its primary key.
func resolveFlow(ctx context.Context, sc *ports.StepContext, slug string) (string, error) {
	flow, found, err := findOne(ctx, sc, withQuery(pathFlows, map[string]string{"slug": slug}), func(f flowRecord) bool {
		return f.Slug == slug
	})
	if err != nil {
		return "", fmt.Errorf("resolve flow %q: %w", slug, err)
	}
	if !found {
		return "", bootstrap.NewDependencyMissing("flow not found", map[string]interface{}{"slug": slug})
	}
	return flow.PK, nil
}

// optionalFlow resolves slug and returns "" when it is empty or absent.
func optionalFlow(ctx context.Context, sc *ports.StepContext, slug string) (string, error) {
	if slug == "" {
		return "", nil
	}
	pk, err := resolveFlow(ctx, sc, slug)
	if bootstrap.CodeOf(err) == bootstrap.ErrCodeDependency {
		sc.Logger.Debug(ctx, "optional flow not found", "slug", slug)
		return "", nil
	}
	return pk, err
}

func findProxyProvider(ctx context.Context, sc *ports.StepContext, name string) (proxyProvider, bool, error) {
	return findOne(ctx, sc, withQuery(pathProxy, map[string]string{"name": name}), func(p proxyProvider) bool {
		return p.Name == name
	})
}

func findOutpost(ctx context.Context, sc *ports.StepContext, name string) (outpostRecord, bool, error) {
	return findOne(ctx, sc, withQuery(pathOutposts, map[string]string{"name__iexact": name}), func(o outpostRecord) bool {
		return strings.EqualFold(o.Name, name)
	})
}

func findOAuth2Provider(ctx context.Context, sc *ports.StepContext, name string) (oauth2Provider, bool, error) {
	return findOne(ctx, sc, withQuery(pathOAuth2, map[string]string{"name": name}), func(p oauth2Provider) bool {
		return p.Name == name
	})
}

func findApplication(ctx context.Context, sc *ports.StepContext, slug string) (applicationRecord, bool, error) {
	return findOne(ctx, sc, withQuery(pathApplications, map[string]string{"slug": slug}), func(a applicationRecord) bool {
		return a.Slug == slug
	})
}

// checkSession asks the target who is logged in. A 401/403 means no session
// and is not an error.
func checkSession(ctx context.Context, sc *ports.StepContext) (string, int, error) {
	var me meResponse
	err := getJSON(ctx, sc, pathMe, &me)
	switch status := bootstrap.StatusOf(err); {
	case err == nil:
		if me.User.Username == "" {
			return "", http.StatusForbidden, nil
		}
		return me.User.Username, http.StatusOK, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "", status, nil
	default:
		return "", status, err
	}
}
