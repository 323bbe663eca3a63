package steps

import (
	"context"
	"errors"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/extract"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// Authenticate logs the admin in through the default authentication flow.
// It is needed whenever the target does not recognise the driver's session.
type Authenticate struct {
	opts Options
	now  func() time.Time
}

// NewAuthenticate creates the authenticate step.
func NewAuthenticate(opts Options) *Authenticate {
	return &Authenticate{opts: opts, now: time.Now}
}

// Metadata implements ports.Step.
func (s *Authenticate) Metadata() bootstrap.StepMetadata {
	return bootstrap.StepMetadata{
		ID:                 bootstrap.StepAuthenticate,
		Name:               "Authenticate admin session",
		Criticality:        bootstrap.Fatal,
		EstablishesSession: true,
		Settle:             s.opts.AuthSettle,
	}
}

// Evaluate asks the target who is logged in.
func (s *Authenticate) Evaluate(ctx context.Context, sc *ports.StepContext) (*bootstrap.Evaluation, error) {
	principal, _, err := checkSession(ctx, sc)
	if err != nil {
		return nil, err
	}
	if principal == "" {
		return bootstrap.Needed("no authenticated session", "session for "+sc.Target.Admin.Username, nil), nil
	}
	sc.Session.Establish(principal, sc.Session.Token, s.now())
	return bootstrap.Satisfied("session valid for " + principal), nil
}

// Apply submits the identification and password stages. Flows that ask for
// the password on a separate stage are handled by a second submission.
func (s *Authenticate) Apply(ctx context.Context, sc *ports.StepContext, _ *bootstrap.Evaluation) ([]bootstrap.Artifact, error) {
	admin := sc.Target.Admin
	doc, err := sc.Driver.Fetch(ctx, s.opts.LoginFlowPath)
	if err != nil {
		return nil, err
	}

	uid, err := sc.Driver.FindField(ctx, doc, loginUIDField)
	if err != nil {
		return nil, err
	}
	fields := []bootstrap.FieldValue{{Handle: uid, Value: admin.Username}}

	password, err := sc.Driver.FindField(ctx, doc, loginPasswordField)
	twoStage := errors.Is(err, bootstrap.ErrSelectorNotFound)
	if err != nil && !twoStage {
		return nil, err
	}
	if !twoStage {
		fields = append(fields, bootstrap.FieldValue{Handle: password, Value: admin.Password})
	}

	doc, err = s.submitStage(ctx, sc, doc, fields)
	if err != nil {
		return nil, err
	}
	if twoStage {
		password, err = sc.Driver.FindField(ctx, doc, loginPasswordField)
		if err != nil {
			return nil, err
		}
		if _, err = s.submitStage(ctx, sc, doc, []bootstrap.FieldValue{{Handle: password, Value: admin.Password}}); err != nil {
			return nil, err
		}
	}

	principal, status, err := checkSession(ctx, sc)
	if err != nil {
		return nil, err
	}
	if principal == "" {
		return nil, bootstrap.NewHTTPError("GET", pathMe, status, "login did not establish a session")
	}
	sc.Session.Establish(principal, sc.Session.Token, s.now())
	sc.Logger.Info(ctx, "session established", "principal", principal)

	return []bootstrap.Artifact{
		{Key: bootstrap.ArtifactSessionPrincipal, StepID: bootstrap.StepAuthenticate, Value: principal},
	}, nil
}

func (s *Authenticate) submitStage(ctx context.Context, sc *ports.StepContext, doc *bootstrap.Document, fields []bootstrap.FieldValue) (*bootstrap.Document, error) {
	token, err := extract.Token(doc)
	if err != nil {
		return nil, err
	}
	sc.Session.UpdateToken(token)
	resp, err := sc.Driver.Submit(ctx, bootstrap.SubmitRequest{
		Document: doc,
		Fields:   fields,
		Token:    token,
		Button:   submitButtons,
	})
	if err != nil {
		return nil, err
	}
	if problems := extract.FormErrors(resp); len(problems) > 0 {
		return nil, bootstrap.NewValidationError("login rejected", map[string]interface{}{"errors": problems})
	}
	refreshToken(sc, resp)
	return resp, nil
}
