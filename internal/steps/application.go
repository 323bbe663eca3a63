package steps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Application binds the OAuth2 provider to an application entry, creating
// the entry or repairing its provider link.
type Application struct {
	opts         ApplicationOptions
	providerName string
}

type applicationPlan struct {
	existing   *applicationRecord
	providerPK int
}

// NewApplication creates the application step.
func NewApplication(opts Options) *Application {
	return &Application{opts: opts.Application, providerName: opts.OAuth2.Name}
}

// Metadata implements ports.Step.
func (s *Application) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:              bootstrap.StepApplication,
		Name:            "Create application binding",
		Criticality:     bootstrap.BestEffort,
		RequiresSession: true,
	}
}

// Evaluate implements ports.Step.
func (s *Application) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	provider, found, err := findOAuth2Provider(ctx, sc, s.providerName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, bootstrap.NewDependencyMissing("oauth2 provider not found", map[string]interface{}{"provider": s.providerName})
	}

	app, found, err := findApplication(ctx, sc, s.opts.Slug)
	if err != nil {
		return nil, err
	}
	slug := bootstrap.Artifact{Key: bootstrap.ArtifactApplicationSlug, StepID: bootstrap.StepApplication, Value: s.opts.Slug}
	switch {
	case found && app.Provider != nil && *app.Provider == provider.PK:
		return bootstrap.Satisfied(fmt.Sprintf("application %q bound to provider %d", app.Slug, provider.PK), slug), nil
	case found:
		return bootstrap.Needed(
			fmt.Sprintf("application %q not bound to provider %d", app.Slug, provider.PK),
			"application bound",
			applicationPlan{existing: &app, providerPK: provider.PK},
		), nil
	default:
		return bootstrap.Needed("application absent", fmt.Sprintf("application %q", s.opts.Slug), applicationPlan{providerPK: provider.PK}), nil
	}
}

// Apply implements ports.Step.
func (s *Application) Apply(ctx context.Context, sc *ports.StepContext, eval *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	plan, ok := eval.InternalData.(applicationPlan)
	if !ok {
		return nil, bootstrap.NewInternal("application evaluation carried no plan", nil)
	}

	if plan.existing != nil {
		path := pathApplications + url.PathEscape(plan.existing.Slug) + "/"
		if _, err := submitJSON(ctx, sc, http.MethodPatch, path, map[string]interface{}{"provider": plan.providerPK}, nil); err != nil {
			return nil, fmt.Errorf("bind application %q: %w", plan.existing.Slug, err)
		}
		sc.Logger.Info(ctx, "application bound to provider", "slug", plan.existing.Slug, "provider_pk", plan.providerPK)
	} else {
		payload := map[string]interface{}{
			"name":     s.opts.Name,
			"slug":     s.opts.Slug,
			"provider": plan.providerPK,
		}
		if s.opts.LaunchURL != "" {
			payload["meta_launch_url"] = s.opts.LaunchURL
		}
		doc, err := submitJSON(ctx, sc, http.MethodPost, pathApplications, payload, nil)
		if err != nil {
			return nil, createError(doc, err, "application", s.opts.Slug)
		}
		sc.Logger.Info(ctx, "application created", "slug", s.opts.Slug)
	}

	artifacts := []bootstrap.Artifact{
		{Key: bootstrap.ArtifactApplicationSlug, StepID: bootstrap.StepApplication, Value: s.opts.Slug},
	}
	if s.opts.LaunchURL != "" {
		artifacts = append(artifacts, bootstrap.Artifact{Key: bootstrap.ArtifactApplicationLaunchURL, StepID: bootstrap.StepApplication, Value: s.opts.LaunchURL})
	}
	return artifacts, nil
}
