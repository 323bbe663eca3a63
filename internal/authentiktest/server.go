// Package authentiktest provides an in-memory stand-in for the target's HTTP
// surface, for use in tests. It keeps just enough state to exercise the
// bootstrap steps end to end.
package authentiktest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Flow slugs seeded into every server.
const (
	AuthorizationFlowSlug = "default-provider-authorization-explicit-consent"
	InvalidationFlowSlug  = "default-provider-invalidation-flow"
	EmbeddedOutpostName   = "authentik Embedded Outpost"
)

const (
	csrfCookie    = "authentik_csrf"
	sessionCookie = "authentik_session"
)

// Options tunes the fake's behaviour.
type Options struct {
	// SetupDone starts the server with the admin already created.
	SetupDone bool
	Username  string
	Password  string
	// TwoStageLogin asks for the password on a separate page.
	TwoStageLogin bool
	// LegacyRedirectURIs rejects the structured redirect_uris list.
	LegacyRedirectURIs bool
	// OmitClientSecret drops client_secret from OAuth2 create responses.
	OmitClientSecret bool
	// KeepSessionsOnRestart disables session invalidation on outpost update.
	KeepSessionsOnRestart bool
	// ExtraOutpostProviders pre-attaches unrelated provider pks.
	ExtraOutpostProviders []int
}

// Provider is a created proxy or OAuth2 provider.
type Provider struct {
	PK           int
	Name         string
	Kind         string
	ClientID     string
	ClientSecret string
	Payload      map[string]interface{}
}

// Application is a created application.
type Application struct {
	Name     string
	Slug     string
	Provider *int
}

type failure struct {
	status int
	times  int
}

// Server is a fake target backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	opts         Options
	setupDone    bool
	sessions     map[string]string
	csrf         map[string]bool
	flows        map[string]string
	providers    []*Provider
	outpostPK    string
	outpostProvs []int
	applications []*Application
	nextPK       int
	creates      map[string]int
	patches      map[string]int
	restarts     int
	failures     map[string]*failure
	requests     []string
}

// NewServer starts a fake target. Callers must Close it.
func NewServer(opts Options) *Server {
	if opts.Username == "" {
		opts.Username = "akadmin"
	}
	s := &Server{
		opts:         opts,
		setupDone:    opts.SetupDone,
		sessions:     make(map[string]string),
		csrf:         make(map[string]bool),
		flows:        map[string]string{AuthorizationFlowSlug: "flow-authz", InvalidationFlowSlug: "flow-invalidate"},
		outpostPK:    "0b5f3c1e-outpost",
		outpostProvs: append([]int(nil), opts.ExtraOutpostProviders...),
		nextPK:       100,
		creates:      make(map[string]int),
		patches:      make(map[string]int),
		failures:     make(map[string]*failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	return s
}

// FailNext makes the next n requests to path answer with status.
func (s *Server) FailNext(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, times: n}
}

// RemoveFlow deletes a seeded flow.
func (s *Server) RemoveFlow(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, slug)
}

// SetupDone reports whether the admin account exists.
func (s *Server) SetupDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupDone
}

// Creates returns how many times each collection received a successful POST.
func (s *Server) Creates() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.creates))
	for k, v := range s.creates {
		out[k] = v
	}
	return out
}

// Restarts counts outpost updates.
func (s *Server) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// OutpostProviders returns the embedded outpost's provider list.
func (s *Server) OutpostProviders() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.outpostProvs...)
}

// Providers returns the created providers.
func (s *Server) Providers() []Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, *p)
	}
	return out
}

// Applications returns the created applications.
func (s *Server) Applications() []Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Application, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, *a)
	}
	return out
}

// AddApplication seeds an application, optionally unbound.
func (s *Server) AddApplication(name, slug string, provider *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications = append(s.applications, &Application{Name: name, Slug: slug, Provider: provider})
}

// AddProvider seeds a provider of kind "proxy" or "oauth2" and returns its pk.
func (s *Server) AddProvider(kind, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPK++
	s.providers = append(s.providers, &Provider{PK: s.nextPK, Name: name, Kind: kind, ClientID: name, ClientSecret: "seeded"})
	return s.nextPK
}

// Requests returns "METHOD path" for every request served.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if f, ok := s.failures[r.URL.Path]; ok && f.times > 0 {
		f.times--
		writeJSON(w, f.status, map[string]string{"detail": "injected failure"})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/api/v3/root/config/":
		s.issueCSRF(w, r)
		writeJSON(w, http.StatusOK, map[string]interface{}{"capabilities": []string{}})
	case path == "/if/flow/initial-setup/":
		s.initialSetup(w, r)
	case path == "/if/flow/default-authentication-flow/":
		s.login(w, r)
	case path == "/if/admin/":
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>admin</body></html>")
	case path == "/outpost.goauthentik.io/auth/traefik":
		s.forwardAuth(w, r)
	case strings.HasPrefix(path, "/application/o/"):
		s.oauthEndpoint(w, r)
	case strings.HasPrefix(path, "/api/v3/"):
		s.api(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) issueCSRF(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(csrfCookie); err == nil && s.csrf[c.Value] {
		return c.Value
	}
	tok := randomToken()
	s.csrf[tok] = true
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: tok, Path: "/"})
	return tok
}

func (s *Server) validForm(r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		return false
	}
	return s.csrf[r.PostForm.Get("csrfmiddlewaretoken")]
}

var setupTemplate = template.Must(template.New("setup").Parse(`<html><body>
<form method="post">
<input type="hidden" name="csrfmiddlewaretoken" value="{{.Token}}">
<input type="hidden" name="flow_execution" value="exec-setup">
{{range .Errors}}<ul class="errorlist"><li>{{.}}</li></ul>{{end}}
<input type="text" name="akadmin-username">
<input type="text" name="akadmin-name">
<input type="email" name="akadmin-email">
<input type="password" name="akadmin-password">
<input type="password" name="akadmin-password_repeat">
<button type="submit">Continue</button>
</form></body></html>`))

func (s *Server) initialSetup(w http.ResponseWriter, r *http.Request) {
	if s.setupDone {
		http.Redirect(w, r, "/if/flow/default-authentication-flow/?next=%2Fif%2Fadmin%2F", http.StatusFound)
		return
	}
	if r.Method == http.MethodPost {
		if !s.validForm(r) {
			http.Error(w, "CSRF verification failed", http.StatusForbidden)
			return
		}
		f := r.PostForm
		var problems []string
		if f.Get("akadmin-password") != f.Get("akadmin-password_repeat") {
			problems = append(problems, "Passwords do not match.")
		}
		if f.Get("akadmin-username") == "" || f.Get("akadmin-email") == "" {
			problems = append(problems, "This field is required.")
		}
		if f.Get("flow_execution") != "exec-setup" {
			problems = append(problems, "Invalid flow execution.")
		}
		if len(problems) == 0 {
			s.setupDone = true
			s.opts.Username = f.Get("akadmin-username")
			s.opts.Password = f.Get("akadmin-password")
			http.Redirect(w, r, "/if/admin/", http.StatusFound)
			return
		}
		s.renderSetup(w, r, problems)
		return
	}
	s.renderSetup(w, r, nil)
}

func (s *Server) renderSetup(w http.ResponseWriter, r *http.Request, problems []string) {
	tok := s.issueCSRF(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = setupTemplate.Execute(w, map[string]interface{}{"Token": tok, "Errors": problems})
}

var loginTemplate = template.Must(template.New("login").Parse(`<html><head><meta name="csrf-token" content="{{.Token}}"></head><body>
<form method="post">
<input type="hidden" name="csrfmiddlewaretoken" value="{{.Token}}">
{{range .Errors}}<p class="pf-c-form__helper-text pf-m-error">{{.}}</p>{{end}}
{{if .AskUID}}<input type="text" name="uidField" autocomplete="username">{{else}}<input type="hidden" name="uidField" value="{{.UID}}">{{end}}
{{if .AskPassword}}<input type="password" name="password">{{end}}
<button type="submit" class="pf-c-button pf-m-primary">Log in</button>
</form></body></html>`))

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.renderLogin(w, r, "", nil)
		return
	}
	if !s.validForm(r) {
		http.Error(w, "CSRF verification failed", http.StatusForbidden)
		return
	}
	uid := r.PostForm.Get("uidField")
	password := r.PostForm.Get("password")
	if password == "" && s.opts.TwoStageLogin && uid != "" {
		s.renderLogin(w, r, uid, nil)
		return
	}
	if !s.setupDone || uid != s.opts.Username || password != s.opts.Password {
		s.renderLogin(w, r, "", []string{"Invalid password"})
		return
	}
	id := randomToken()
	s.sessions[id] = uid
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	http.Redirect(w, r, "/if/admin/", http.StatusFound)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, uid string, problems []string) {
	tok := s.issueCSRF(w, r)
	askUID := uid == ""
	askPassword := !s.opts.TwoStageLogin || !askUID
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTemplate.Execute(w, map[string]interface{}{
		"Token":       tok,
		"Errors":      problems,
		"AskUID":      askUID,
		"UID":         uid,
		"AskPassword": askPassword,
	})
}

func (s *Server) principal(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return s.sessions[c.Value]
}

func (s *Server) api(w http.ResponseWriter, r *http.Request) {
	user := s.principal(r)
	if user == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}
	if r.Method != http.MethodGet {
		c, err := r.Cookie(csrfCookie)
		if err != nil || r.Header.Get("X-authentik-CSRF") == "" || !s.csrf[r.Header.Get("X-authentik-CSRF")] || !s.csrf[c.Value] {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing."})
			return
		}
	}

	path := r.URL.Path
	q := r.URL.Query()
	switch {
	case path == "/api/v3/core/users/me/":
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]interface{}{"pk": 1, "username": user}})
	case path == "/api/v3/flows/instances/":
		var results []map[string]string
		for slug, pk := range s.flows {
			if q.Get("slug") == "" || q.Get("slug") == slug {
				results = append(results, map[string]string{"pk": pk, "slug": slug})
			}
		}
		writeList(w, results)
	case path == "/api/v3/providers/proxy/":
		s.providerCollection(w, r, "proxy")
	case path == "/api/v3/providers/oauth2/":
		s.providerCollection(w, r, "oauth2")
	case path == "/api/v3/outposts/instances/":
		var results []map[string]interface{}
		if q.Get("name__iexact") == "" || strings.EqualFold(q.Get("name__iexact"), EmbeddedOutpostName) {
			results = append(results, s.outpostJSON())
		}
		writeList(w, results)
	case path == "/api/v3/outposts/instances/"+s.outpostPK+"/":
		s.outpostInstance(w, r)
	case path == "/api/v3/core/applications/":
		s.applicationCollection(w, r)
	case strings.HasPrefix(path, "/api/v3/core/applications/"):
		s.applicationInstance(w, r, strings.Trim(strings.TrimPrefix(path, "/api/v3/core/applications/"), "/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (s *Server) outpostJSON() map[string]interface{} {
	return map[string]interface{}{
		"pk":        s.outpostPK,
		"name":      EmbeddedOutpostName,
		"type":      "proxy",
		"providers": append([]int{}, s.outpostProvs...),
	}
}

func (s *Server) outpostInstance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.outpostJSON())
	case http.MethodPatch, http.MethodPut:
		var body struct {
			Providers []int `json:"providers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		s.outpostProvs = body.Providers
		s.patches["outposts"]++
		s.restarts++
		writeJSON(w, http.StatusOK, s.outpostJSON())
		if !s.opts.KeepSessionsOnRestart {
			s.sessions = make(map[string]string)
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
	}
}

func (s *Server) providerCollection(w http.ResponseWriter, r *http.Request, kind string) {
	if r.Method == http.MethodGet {
		name := r.URL.Query().Get("name")
		var results []map[string]interface{}
		for _, p := range s.providers {
			if p.Kind != kind || (name != "" && p.Name != name) {
				continue
			}
			item := map[string]interface{}{"pk": p.PK, "name": p.Name}
			if kind == "oauth2" {
				item["client_id"] = p.ClientID
				item["client_secret"] = p.ClientSecret
			}
			results = append(results, item)
		}
		writeList(w, results)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	name, _ := payload["name"].(string)
	for _, p := range s.providers {
		if p.Name == name {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"name": {"provider with this name already exists."}})
			return
		}
	}
	flow, _ := payload["authorization_flow"].(string)
	if !s.knownFlow(flow) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"authorization_flow": {"Invalid pk."}})
		return
	}
	if kind == "oauth2" {
		if _, isString := payload["redirect_uris"].(string); s.opts.LegacyRedirectURIs && !isString {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"redirect_uris": {"Not a valid string."}})
			return
		}
	}

	s.nextPK++
	p := &Provider{PK: s.nextPK, Name: name, Kind: kind, Payload: payload}
	resp := map[string]interface{}{"pk": p.PK, "name": p.Name}
	if kind == "oauth2" {
		p.ClientID, _ = payload["client_id"].(string)
		p.ClientSecret = "secret-" + strconv.Itoa(p.PK) + "-" + randomToken()[:8]
		resp["client_id"] = p.ClientID
		if !s.opts.OmitClientSecret {
			resp["client_secret"] = p.ClientSecret
		}
	}
	s.providers = append(s.providers, p)
	s.creates[kind]++
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) knownFlow(pk string) bool {
	for _, v := range s.flows {
		if v == pk {
			return true
		}
	}
	return false
}

func (s *Server) applicationCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		slug := r.URL.Query().Get("slug")
		var results []map[string]interface{}
		for _, a := range s.applications {
			if slug == "" || a.Slug == slug {
				results = append(results, map[string]interface{}{"pk": "app-" + a.Slug, "name": a.Name, "slug": a.Slug, "provider": a.Provider})
			}
		}
		writeList(w, results)
		return
	}
	var payload struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		Provider *int   `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	for _, a := range s.applications {
		if a.Slug == payload.Slug {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"slug": {"Application with this slug already exists."}})
			return
		}
	}
	s.applications = append(s.applications, &Application{Name: payload.Name, Slug: payload.Slug, Provider: payload.Provider})
	s.creates["applications"]++
	writeJSON(w, http.StatusCreated, map[string]interface{}{"slug": payload.Slug, "provider": payload.Provider})
}

func (s *Server) applicationInstance(w http.ResponseWriter, r *http.Request, slug string) {
	var app *Application
	for _, a := range s.applications {
		if a.Slug == slug {
			app = a
		}
	}
	if app == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if r.Method == http.MethodPatch {
		var payload struct {
			Provider *int `json:"provider"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		app.Provider = payload.Provider
		s.patches["applications"]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slug": app.Slug, "provider": app.Provider})
}

func (s *Server) forwardAuth(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.providers {
		if p.Kind == "proxy" && containsPK(s.outpostProvs, p.PK) {
			http.Redirect(w, r, "/outpost.goauthentik.io/start?rd="+r.URL.String(), http.StatusFound)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) oauthEndpoint(w http.ResponseWriter, r *http.Request) {
	var configured bool
	for _, p := range s.providers {
		if p.Kind == "oauth2" {
			configured = true
		}
	}
	if !configured {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Path {
	case "/application/o/authorize/":
		http.Redirect(w, r, "/if/flow/default-authentication-flow/", http.StatusFound)
	case "/application/o/token/":
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
	case "/application/o/userinfo/":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
	default:
		http.NotFound(w, r)
	}
}

func containsPK(values []int, pk int) bool {
	for _, v := range values {
		if v == pk {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeList[T any](w http.ResponseWriter, results []T) {
	if results == nil {
		results = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pagination": map[string]int{"count": len(results)},
		"results":    results,
	})
}

func randomToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
