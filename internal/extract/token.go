package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Cookie names the target uses for its anti-forgery token, newest first.
var TokenCookies = []string{"authentik_csrf", "csrftoken"}

var scriptTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`csrfToken\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`["']csrf_?token["']\s*:\s*["']([^"']+)["']`),
	regexp.MustCompile(`csrfmiddlewaretoken["']?\s*[:=]\s*["']([^"']+)["']`),
}

var flowExecutionPattern = regexp.MustCompile(`flow_execution["']?\s*[:=]\s*["']([^"']+)["']`)

// Token scans doc for an anti-forgery token in priority order: hidden form
// field, meta tag, inline script variable, then cookies.
func Token(doc *bootstrap.Document) (bootstrap.Token, error) {
	if doc == nil {
		return bootstrap.Token{}, bootstrap.NewTokenNotFound("")
	}
	if !doc.IsJSON() && len(doc.Body) > 0 {
		if parsed, err := Parse(doc); err == nil {
			if tok, ok := tokenFromMarkup(parsed); ok {
				return tok, nil
			}
		}
	}
	for _, name := range TokenCookies {
		if v, ok := doc.Cookie(name); ok && v != "" {
			return bootstrap.Token{Value: v, Source: bootstrap.TokenFromCookie}, nil
		}
	}
	return bootstrap.Token{}, bootstrap.NewTokenNotFound(doc.URL)
}

func tokenFromMarkup(parsed *goquery.Document) (bootstrap.Token, bool) {
	if v, ok := parsed.Find(`input[name="csrfmiddlewaretoken"]`).First().Attr("value"); ok && v != "" {
		return bootstrap.Token{Value: v, Source: bootstrap.TokenFromForm}, true
	}
	if v, ok := parsed.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok && v != "" {
		return bootstrap.Token{Value: v, Source: bootstrap.TokenFromMeta}, true
	}
	var found string
	parsed.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, re := range scriptTokenPatterns {
			if m := re.FindStringSubmatch(text); len(m) == 2 {
				found = m[1]
				return false
			}
		}
		return true
	})
	if found != "" {
		return bootstrap.Token{Value: found, Source: bootstrap.TokenFromScript}, true
	}
	return bootstrap.Token{}, false
}

// FlowExecution returns the flow execution identifier from a hidden field,
// the document URL query, or an inline assignment.
func FlowExecution(doc *bootstrap.Document) (string, error) {
	if doc == nil {
		return "", bootstrap.NewNotFound("flow execution")
	}
	if !doc.IsJSON() && len(doc.Body) > 0 {
		if parsed, err := Parse(doc); err == nil {
			if v, ok := parsed.Find(`input[name="flow_execution"]`).First().Attr("value"); ok && v != "" {
				return v, nil
			}
		}
	}
	if u, err := url.Parse(doc.URL); err == nil {
		if v := u.Query().Get("flow_execution"); v != "" {
			return v, nil
		}
	}
	if m := flowExecutionPattern.FindStringSubmatch(doc.Text()); len(m) == 2 {
		return strings.TrimSpace(m[1]), nil
	}
	return "", bootstrap.NewNotFound("flow execution")
}
