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

// BootstrapAdmin completes the target's initial-setup flow by creating the
// admin account. The flow is consumed once an admin exists.
type BootstrapAdmin struct {
	opts Options
}

type setupPage struct {
	doc      *bootstrap.Document
	username bootstrap.FieldHandle
}

// NewBootstrapAdmin creates the bootstrap-admin step.
func NewBootstrapAdmin(opts Options) *BootstrapAdmin {
	return &BootstrapAdmin{opts: opts}
}

// Metadata implements ports.Step.
func (s *BootstrapAdmin) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:          bootstrap.StepBootstrapAdmin,
		Name:        "Bootstrap admin account",
		Criticality: bootstrap.Fatal,
		Settle:      s.opts.BootstrapSettle,
	}
}

// Evaluate reports the step as needed only when the setup page answers,
// stays on the setup flow, and still offers the username field.
func (s *BootstrapAdmin) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	doc, err := sc.Driver.Fetch(ctx, s.opts.SetupFlowPath)
	if err != nil {
		status := bootstrap.StatusOf(err)
		if bootstrap.CodeOf(err) == bootstrap.ErrCodeHTTP && status < http.StatusInternalServerError {
			return bootstrap.Satisfied(fmt.Sprintf("setup flow unavailable (status %d)", status)), nil
		}
		return nil, err
	}
	if !strings.Contains(doc.URL, "initial-setup") {
		return bootstrap.Satisfied("setup flow redirected to " + doc.URL), nil
	}
	handle, err := sc.Driver.FindField(ctx, doc, setupUsernameField)
	if errors.Is(err, bootstrap.ErrSelectorNotFound) {
		return bootstrap.Satisfied("setup form no longer offered"), nil
	}
	if err != nil {
		return nil, err
	}
	return bootstrap.Needed("setup pending", "admin account created", &setupPage{doc: doc, username: handle}), nil
}

// Apply implements ports.Step.
func (s *BootstrapAdmin) Apply(ctx context.Context, sc *ports.StepContext, eval *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	page, ok := eval.InternalData.(*setupPage)
	if !ok || page == nil {
		return nil, bootstrap.NewInternal("bootstrap evaluation carried no setup page", nil)
	}
	token, err := extract.Token(page.doc)
	if err != nil {
		return nil, err
	}
	admin := sc.Target.Admin

	fields := []bootstrap.FieldValue{{Handle: page.username, Value: admin.Username}}
	required := []struct {
		field bootstrap.Field
		value string
	}{
		{setupEmailField, admin.Email},
		{setupPasswordField, admin.Password},
	}
	for _, r := range required {
		handle, err := sc.Driver.FindField(ctx, page.doc, r.field)
		if err != nil {
			return nil, err
		}
		fields = append(fields, bootstrap.FieldValue{Handle: handle, Value: r.value})
	}
	optional := []struct {
		field bootstrap.Field
		value string
	}{
		{setupNameField, admin.Name},
		{setupPasswordRepeatField, admin.Password},
	}
	for _, o := range optional {
		handle, err := sc.Driver.FindField(ctx, page.doc, o.field)
		if errors.Is(err, bootstrap.ErrSelectorNotFound) {
			sc.Logger.Debug(ctx, "optional setup field absent", "field", o.field.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		fields = append(fields, bootstrap.FieldValue{Handle: handle, Value: o.value})
	}

	extra := map[string]string{}
	if exec, err := extract.FlowExecution(page.doc); err == nil {
		extra["flow_execution"] = exec
	}

	resp, err := sc.Driver.Submit(ctx, bootstrap.SubmitRequest{
		Document: page.doc,
		Fields:   fields,
		Extra:    extra,
		Token:    token,
		Button:   submitButtons,
	})
	if err != nil {
		return nil, err
	}
	if problems := extract.FormErrors(resp); len(problems) > 0 {
		return nil, bootstrap.NewValidationError("setup form rejected submission", map[string]interface{}{
			"errors": problems,
		})
	}

	sc.Logger.Info(ctx, "admin account created", "username", admin.Username)
	return []bootstrap.Artifact{
		{Key: bootstrap.ArtifactAdminUsername, StepID: bootstrap.StepBootstrapAdmin, Value: admin.Username},
		{Key: bootstrap.ArtifactAdminPassword, StepID: bootstrap.StepBootstrapAdmin, Value: admin.Password, Sensitive: true},
	}, nil
}
