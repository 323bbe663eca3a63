package steps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/extract"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// OAuth2Provider creates the OAuth2/OpenID provider and captures the client
// secret the target returns only in the creation response.
type OAuth2Provider struct {
	opts OAuth2Options
}

// NewOAuth2Provider creates the oauth2-provider step.
func NewOAuth2Provider(opts Options) *OAuth2Provider {
	return &OAuth2Provider{opts: opts.OAuth2}
}

// Metadata implements ports.Step.
func (s *OAuth2Provider) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:              bootstrap.StepOAuth2Provider,
		Name:            "Create OAuth2 provider",
		Criticality:     bootstrap.BestEffort,
		RequiresSession: true,
	}
}

// Evaluate implements ports.Step. An existing provider is never re-read for
// its secret.
func (s *OAuth2Provider) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	provider, found, err := findOAuth2Provider(ctx, sc, s.opts.Name)
	if err != nil {
		return nil, err
	}
	if found {
		return bootstrap.Satisfied(
			fmt.Sprintf("oauth2 provider %q exists (pk %d)", provider.Name, provider.PK),
			pkArtifact(bootstrap.ArtifactOAuth2ProviderPK, bootstrap.StepOAuth2Provider, provider.PK),
			bootstrap.Artifact{Key: bootstrap.ArtifactOAuth2ClientID, StepID: bootstrap.StepOAuth2Provider, Value: provider.ClientID},
		), nil
	}
	return bootstrap.Needed("oauth2 provider absent", fmt.Sprintf("oauth2 provider %q", s.opts.Name), nil), nil
}

// Apply implements ports.Step.
func (s *OAuth2Provider) Apply(ctx context.Context, sc *ports.StepContext, _ *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	authFlow, err := resolveFlow(ctx, sc, s.opts.AuthorizationFlow)
	if err != nil {
		return nil, err
	}
	invalidationFlow, err := optionalFlow(ctx, sc, s.opts.InvalidationFlow)
	if err != nil {
		return nil, err
	}

	payload := s.payload(authFlow, invalidationFlow)
	doc, err := submitJSON(ctx, sc, http.MethodPost, pathOAuth2, payload, nil)
	if err != nil && legacyRedirectURIs(doc, err) {
		sc.Logger.Debug(ctx, "retrying oauth2 provider with legacy redirect_uris")
		payload["redirect_uris"] = strings.Join(s.opts.RedirectURIs, "\n")
		doc, err = submitJSON(ctx, sc, http.MethodPost, pathOAuth2, payload, nil)
	}
	if err != nil {
		return nil, createError(doc, err, "oauth2 provider", s.opts.Name)
	}

	var created oauth2Provider
	if err := doc.DecodeJSON(&created); err != nil {
		return nil, err
	}
	// The secret must be taken from this response; the target will not
	// show it again.
	secret, err := extract.Secret(doc)
	if err != nil {
		return nil, fmt.Errorf("oauth2 provider %q created (pk %d) but its client secret was not returned: %w", s.opts.Name, created.PK, err)
	}
	clientID := created.ClientID
	if clientID == "" {
		clientID = s.opts.ClientID
	}

	sc.Logger.Info(ctx, "oauth2 provider created", "name", s.opts.Name, "pk", created.PK, "client_id", clientID)
	return []bootstrap.Artifact{
		pkArtifact(bootstrap.ArtifactOAuth2ProviderPK, bootstrap.StepOAuth2Provider, created.PK),
		{Key: bootstrap.ArtifactOAuth2ClientID, StepID: bootstrap.StepOAuth2Provider, Value: clientID},
		{Key: bootstrap.ArtifactOAuth2ClientSecret, StepID: bootstrap.StepOAuth2Provider, Value: secret, OneTime: true},
	}, nil
}

func (s *OAuth2Provider) payload(authFlow, invalidationFlow string) map[string]interface{} {
	uris := make([]map[string]string, 0, len(s.opts.RedirectURIs))
	for _, u := range s.opts.RedirectURIs {
		uris = append(uris, map[string]string{"matching_mode": "strict", "url": u})
	}
	payload := map[string]interface{}{
		"name":                       s.opts.Name,
		"client_id":                  s.opts.ClientID,
		"client_type":                s.opts.ClientType,
		"authorization_flow":         authFlow,
		"redirect_uris":              uris,
		"sub_mode":                   s.opts.SubMode,
		"issuer_mode":                s.opts.IssuerMode,
		"include_claims_in_id_token": s.opts.IncludeClaimsInIDToken,
	}
	if invalidationFlow != "" {
		payload["invalidation_flow"] = invalidationFlow
	}
	return payload
}

// legacyRedirectURIs reports a 400 complaining about redirect_uris, which
// older target releases send for the structured list form.
func legacyRedirectURIs(doc *bootstrap.Document, err error) bool {
	if !errors.Is(err, &bootstrap.Error{Code: bootstrap.ErrCodeHTTP, Status: http.StatusBadRequest}) || doc == nil {
		return false
	}
	return strings.Contains(doc.Text(), "redirect_uris")
}
