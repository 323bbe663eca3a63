package bootstrap

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Document is a fetched page or API response as seen by a step.
type Document struct {
	// URL is the final address after redirects.
	URL         string
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
	Cookies     map[string]string
}

// IsJSON reports whether the body was served as JSON.
func (d *Document) IsJSON() bool {
	if d == nil {
		return false
	}
	media, _, err := mime.ParseMediaType(d.ContentType)
	if err != nil {
		return strings.Contains(d.ContentType, "json")
	}
	return media == "application/json" || strings.HasSuffix(media, "+json")
}

// DecodeJSON unmarshals the body into v.
func (d *Document) DecodeJSON(v interface{}) error {
	if d == nil || len(d.Body) == 0 {
		return NewNotFound("response body")
	}
	if err := json.Unmarshal(d.Body, v); err != nil {
		return NewInternal("decode response body", err)
	}
	return nil
}

// Text returns the body as a string.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	return string(d.Body)
}

// Cookie returns a cookie value captured alongside the document.
func (d *Document) Cookie(name string) (string, bool) {
	if d == nil || d.Cookies == nil {
		return "", false
	}
	v, ok := d.Cookies[name]
	return v, ok
}

// Field names a semantic input and the ordered CSS selectors that may locate
// it across UI versions.
type Field struct {
	Name       string
	Candidates []string
}

// FieldHandle is a located field: the selector that matched and the form
// name the element submits under.
type FieldHandle struct {
	Field    string
	Selector string
	Name     string
	Value    string
}

// FieldValue pairs a located field with the value to submit.
type FieldValue struct {
	Handle FieldHandle
	Value  string
}

// SubmitRequest describes a mutating call. Form submissions carry Fields and
// the Document they were found on; API calls carry JSON.
type SubmitRequest struct {
	Method   string
	Path     string
	Document *Document
	Fields   []FieldValue
	Extra    map[string]string
	JSON     interface{}
	Token    Token
	// Button lists candidate selectors for the submit control.
	Button []string
}

// IsForm reports whether the request posts form fields rather than JSON.
func (r SubmitRequest) IsForm() bool {
	return r.JSON == nil
}

// TokenSource records where an anti-forgery token was found.
type TokenSource string

const (
	TokenFromForm   TokenSource = "form"
	TokenFromMeta   TokenSource = "meta"
	TokenFromScript TokenSource = "script"
	TokenFromCookie TokenSource = "cookie"
)

// Token is an anti-forgery value scoped to a single flow.
type Token struct {
	Value  string
	Source TokenSource
}

// Present reports whether the token carries a value.
func (t Token) Present() bool {
	return t.Value != ""
}

// SnapshotKind identifies the encoding of snapshot data.
type SnapshotKind string

const (
	SnapshotPNG  SnapshotKind = "png"
	SnapshotHTML SnapshotKind = "html"
	SnapshotText SnapshotKind = "txt"
)

// Snapshot is a diagnostic capture of the driver's current view.
type Snapshot struct {
	Kind    SnapshotKind
	URL     string
	Data    []byte
	TakenAt time.Time
}

// Empty reports whether the snapshot holds no data.
func (s Snapshot) Empty() bool {
	return len(s.Data) == 0
}
