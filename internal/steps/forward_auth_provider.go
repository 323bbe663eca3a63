package steps

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// ForwardAuthProvider creates the proxy provider the reverse proxy delegates
// authentication to.
type ForwardAuthProvider struct {
	opts ForwardAuthOptions
}

// NewForwardAuthProvider creates the forward-auth-provider step.
func NewForwardAuthProvider(opts Options) *ForwardAuthProvider {
	return &ForwardAuthProvider{opts: opts.ForwardAuth}
}

// Metadata implements ports.Step.
func (s *ForwardAuthProvider) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:              bootstrap.StepForwardAuthProvider,
		Name:            "Create forward-auth provider",
		Criticality:     bootstrap.Fatal,
		RequiresSession: true,
	}
}

// Evaluate implements ports.Step.
func (s *ForwardAuthProvider) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	provider, found, err := findProxyProvider(ctx, sc, s.opts.Name)
	if err != nil {
		return nil, err
	}
	if found {
		return bootstrap.Satisfied(
			fmt.Sprintf("proxy provider %q exists (pk %d)", provider.Name, provider.PK),
			pkArtifact(bootstrap.ArtifactForwardAuthPK, bootstrap.StepForwardAuthProvider, provider.PK),
		), nil
	}
	return bootstrap.Needed("proxy provider absent", fmt.Sprintf("proxy provider %q", s.opts.Name), nil), nil
}

// Apply implements ports.Step.
func (s *ForwardAuthProvider) Apply(ctx context.Context, sc *ports.StepContext, _ *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	authFlow, err := resolveFlow(ctx, sc, s.opts.AuthorizationFlow)
	if err != nil {
		return nil, err
	}
	invalidationFlow, err := optionalFlow(ctx, sc, s.opts.InvalidationFlow)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"name":                         s.opts.Name,
		"authorization_flow":           authFlow,
		"mode":                         s.opts.Mode,
		"external_host":                s.opts.ExternalHost,
		"internal_host_ssl_validation": s.opts.InternalHostSSLValidation,
	}
	if s.opts.InternalHost != "" {
		payload["internal_host"] = s.opts.InternalHost
	}
	if s.opts.CookieDomain != "" {
		payload["cookie_domain"] = s.opts.CookieDomain
	}
	if invalidationFlow != "" {
		payload["invalidation_flow"] = invalidationFlow
	}

	var created proxyProvider
	doc, err := submitJSON(ctx, sc, http.MethodPost, pathProxy, payload, &created)
	if err != nil {
		return nil, createError(doc, err, "proxy provider", s.opts.Name)
	}
	sc.Logger.Info(ctx, "proxy provider created", "name", s.opts.Name, "pk", created.PK)
	return []bootstrap.Artifact{
		pkArtifact(bootstrap.ArtifactForwardAuthPK, bootstrap.StepForwardAuthProvider, created.PK),
	}, nil
}

func pkArtifact(key string, step bootstrap.StepID, pk int) bootstrap.Artifact {
	return bootstrap.Artifact{Key: key, StepID: step, Value: strconv.Itoa(pk)}
}
