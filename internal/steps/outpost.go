package steps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// OutpostAttachment adds the forward-auth provider to the embedded outpost.
// The target restarts the outpost afterwards, which drops sessions.
type OutpostAttachment struct {
	providerName string
	outpostName  string
	settle       time.Duration
}

type attachPlan struct {
	outpostPK  string
	providerPK int
}

// NewOutpostAttachment creates the outpost-attachment step.
func NewOutpostAttachment(opts Options) *OutpostAttachment {
	return &OutpostAttachment{
		providerName: opts.ForwardAuth.Name,
		outpostName:  opts.OutpostName,
		settle:       opts.OutpostSettle,
	}
}

// Metadata implements ports.Step.
func (s *OutpostAttachment) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:              bootstrap.StepOutpostAttachment,
		Name:            "Attach provider to outpost",
		Criticality:     bootstrap.Fatal,
		RequiresSession: true,
		RestartsGateway: true,
		Settle:          s.settle,
	}
}

// Evaluate implements ports.Step.
func (s *OutpostAttachment) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	provider, found, err := findProxyProvider(ctx, sc, s.providerName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, bootstrap.NewDependencyMissing("forward-auth provider not found", map[string]interface{}{"provider": s.providerName})
	}
	outpost, found, err := findOutpost(ctx, sc, s.outpostName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, bootstrap.NewDependencyMissing("outpost not found", map[string]interface{}{"outpost": s.outpostName})
	}

	outpostArtifact := bootstrap.Artifact{Key: bootstrap.ArtifactOutpostPK, StepID: bootstrap.StepOutpostAttachment, Value: outpost.PK}
	if slices.Contains(outpost.Providers, provider.PK) {
		return bootstrap.Satisfied(fmt.Sprintf("provider %d attached to %q", provider.PK, outpost.Name), outpostArtifact), nil
	}
	return bootstrap.Needed(
		fmt.Sprintf("outpost %q serves providers %v", outpost.Name, outpost.Providers),
		fmt.Sprintf("provider %d attached", provider.PK),
		attachPlan{outpostPK: outpost.PK, providerPK: provider.PK},
	), nil
}

// Apply re-reads the outpost and patches the merged provider list so
// attachments made elsewhere are kept.
func (s *OutpostAttachment) Apply(ctx context.Context, sc *ports.StepContext, eval *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	plan, ok := eval.InternalData.(attachPlan)
	if !ok {
		return nil, bootstrap.NewInternal("outpost evaluation carried no plan", nil)
	}
	instancePath := pathOutposts + url.PathEscape(plan.outpostPK) + "/"

	var current outpostRecord
	if err := getJSON(ctx, sc, instancePath, &current); err != nil {
		return nil, fmt.Errorf("read outpost: %w", err)
	}
	merged := mergeProviders(current.Providers, plan.providerPK)

	if _, err := submitJSON(ctx, sc, http.MethodPatch, instancePath, map[string]interface{}{"providers": merged}, nil); err != nil {
		return nil, fmt.Errorf("update outpost: %w", err)
	}
	sc.Logger.Info(ctx, "provider attached to outpost", "outpost", s.outpostName, "providers", merged)
	return []bootstrap.Artifact{
		{Key: bootstrap.ArtifactOutpostPK, StepID: bootstrap.StepOutpostAttachment, Value: plan.outpostPK},
	}, nil
}

// mergeProviders appends pk to existing unless present, preserving order.
func mergeProviders(existing []int, pk int) []int {
	merged := append([]int(nil), existing...)
	if !slices.Contains(merged, pk) {
		merged = append(merged, pk)
	}
	return merged
}
