package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/steps"
)

// PlaybookStep is one step left for an operator to finish by hand.
type PlaybookStep struct {
	Number int
	ID     bootstrap.StepID
	Name   string
	Reason string
}

// PlaybookData feeds the playbook template.
type PlaybookData struct {
	BaseURL   string
	AdminUser string
	AdminName string
	Email     string
	Options   steps.Options
	Steps     []PlaybookStep
}

// NewPlaybook lists every step of report that did not end satisfied.
func NewPlaybook(report *bootstrap.RunReport, target bootstrap.Target, opts steps.Options) PlaybookData {
	data := newPlaybookData(target, opts)
	for _, o := range report.Pending() {
		reason := o.Reason
		if o.NotRun {
			reason = "not attempted"
		}
		data.Steps = append(data.Steps, PlaybookStep{ID: o.StepID, Name: o.Name, Reason: reason})
	}
	number(data.Steps)
	return data
}

// FullPlaybook lists all six steps, for configuring a target entirely by hand.
func FullPlaybook(target bootstrap.Target, opts steps.Options) PlaybookData {
	data := newPlaybookData(target, opts)
	for _, step := range steps.Catalog(opts) {
		meta := step.Metadata()
		data.Steps = append(data.Steps, PlaybookStep{ID: meta.ID, Name: meta.Name})
	}
	number(data.Steps)
	return data
}

func newPlaybookData(target bootstrap.Target, opts steps.Options) PlaybookData {
	return PlaybookData{
		BaseURL:   target.BaseURL,
		AdminUser: target.Admin.Username,
		AdminName: target.Admin.Name,
		Email:     target.Admin.Email,
		Options:   opts,
	}
}

func number(list []PlaybookStep) {
	for i := range list {
		list[i].Number = i + 1
	}
}

var playbookFuncs = template.FuncMap{
	"mode": func(mode string) string {
		switch mode {
		case "forward_single":
			return "Forward auth (single application)"
		case "forward_domain":
			return "Forward auth (domain level)"
		case "proxy":
			return "Proxy"
		default:
			return mode
		}
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"join":      strings.Join,
	"underline": func(s string) string { return strings.Repeat("-", len([]rune(s))) },
	"stepData": func(p PlaybookData, s PlaybookStep) map[string]interface{} {
		return map[string]interface{}{"P": p, "S": s, "O": p.Options}
	},
}

var playbookTemplate = func() *template.Template {
	t := template.Must(template.New("playbook").Funcs(playbookFuncs).Parse(playbookText))
	template.Must(t.New("step").Parse(stepText))
	return t
}()

const playbookText = `=================================================
AUTHENTIK MANUAL CONFIGURATION PLAYBOOK
=================================================

Base URL:   {{.BaseURL}}
Admin user: {{.AdminUser}}
Password:   the configured admin password (not printed)
{{if not .Steps}}
Nothing left to do: every step is satisfied.
{{end}}{{range .Steps}}{{$head := printf "STEP %d: %s" .Number .Name}}
{{$head}}
{{underline $head}}
{{if .Reason}}Why: {{.Reason}}
{{end}}{{template "step" (stepData $ .)}}{{end}}
STEP CHECK: Test configuration
------------------------------
1. ForwardAuth: {{.BaseURL}}/outpost.goauthentik.io/auth/traefik
2. OAuth2 Auth: {{.BaseURL}}/application/o/authorize/
3. OAuth2 Token: {{.BaseURL}}/application/o/token/
4. OAuth2 UserInfo: {{.BaseURL}}/application/o/userinfo/

Expected responses: HTTP 302 (redirect), 401 (unauthorized) or 405 (method not allowed).
Run "authboot verify" to probe them.
`

const stepText = `{{with .O}}{{if eq $.S.ID "bootstrap-admin"}}1. Open: {{$.P.BaseURL}}{{.SetupFlowPath}}
2. Create admin user:
   - Username: {{$.P.AdminUser}}
{{- if $.P.AdminName}}
   - Name: {{$.P.AdminName}}{{end}}
{{- if $.P.Email}}
   - Email: {{$.P.Email}}{{end}}
   - Password: the configured admin password
{{else if eq $.S.ID "authenticate"}}1. Open: {{$.P.BaseURL}}{{.LoginFlowPath}}
2. Log in as {{$.P.AdminUser}}
3. Confirm the admin interface loads: {{$.P.BaseURL}}/if/admin/
{{else if eq $.S.ID "forward-auth-provider"}}1. Login: {{$.P.BaseURL}}/if/admin/
2. Go to: Applications → Providers
3. Click: Create
4. Select: Proxy Provider
5. Configure:
   - Name: {{.ForwardAuth.Name}}
   - Authorization flow: {{.ForwardAuth.AuthorizationFlow}}
   - Mode: {{mode .ForwardAuth.Mode}}
   - External host: {{.ForwardAuth.ExternalHost}}
{{- if .ForwardAuth.InternalHost}}
   - Internal host: {{.ForwardAuth.InternalHost}}{{end}}
{{- if .ForwardAuth.CookieDomain}}
   - Cookie domain: {{.ForwardAuth.CookieDomain}}{{end}}
{{else if eq $.S.ID "outpost-attachment"}}1. Go to: Applications → Outposts
2. Edit: {{.OutpostName}}
3. Add provider: {{.ForwardAuth.Name}} (keep the providers already selected)
4. Save and wait for the outpost to restart
{{else if eq $.S.ID "oauth2-provider"}}1. Go to: Applications → Providers
2. Click: Create
3. Select: OAuth2/OpenID Provider
4. Configure:
   - Name: {{.OAuth2.Name}}
   - Authorization flow: {{.OAuth2.AuthorizationFlow}}
   - Client type: {{title .OAuth2.ClientType}}
   - Client ID: {{.OAuth2.ClientID}}
   - Generate client secret (SAVE THIS, it is shown once)
{{- if .OAuth2.RedirectURIs}}
   - Redirect URIs: {{join .OAuth2.RedirectURIs ", "}}{{end}}
{{else if eq $.S.ID "application"}}1. Go to: Applications → Applications
2. Click: Create (or edit the existing "{{.Application.Slug}}" entry)
3. Configure:
   - Name: {{.Application.Name}}
   - Slug: {{.Application.Slug}}
   - Provider: {{.OAuth2.Name}}
{{- if .Application.LaunchURL}}
   - Launch URL: {{.Application.LaunchURL}}{{end}}
{{else}}No manual instructions are known for this step.
{{end}}{{end}}`

// WritePlaybook renders data to w.
func WritePlaybook(w io.Writer, data PlaybookData) error {
	if err := playbookTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render playbook: %w", err)
	}
	return nil
}

// WritePlaybookFile renders data to path.
func WritePlaybookFile(path string, data PlaybookData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create playbook directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open playbook file: %w", err)
	}
	if err := WritePlaybook(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
