package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// SecretSelectors locate a generated secret rendered after creation, in the
// order tried.
var SecretSelectors = []string{
	".pf-c-clipboard-copy__text",
	".pf-v5-c-clipboard-copy__text",
	`input[name="client_secret"]`,
	`input[name="clientSecret"]`,
	"code",
}

// Secret returns a one-time generated secret from a creation response: the
// client_secret JSON field, or one of the rendered secret elements.
func Secret(doc *bootstrap.Document) (string, error) {
	if doc == nil {
		return "", bootstrap.NewNotFound("client secret")
	}
	if doc.IsJSON() {
		var payload struct {
			ClientSecret string `json:"client_secret"`
		}
		if err := doc.DecodeJSON(&payload); err == nil && payload.ClientSecret != "" {
			return payload.ClientSecret, nil
		}
		return "", bootstrap.NewNotFound("client secret")
	}
	parsed, err := Parse(doc)
	if err != nil {
		return "", err
	}
	for _, selector := range SecretSelectors {
		if v := selectionValue(parsed.Find(selector).First()); v != "" {
			return v, nil
		}
	}
	return "", bootstrap.NewNotFound("client secret")
}

func selectionValue(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if goquery.NodeName(sel) == "input" || goquery.NodeName(sel) == "textarea" {
		if v, ok := sel.Attr("value"); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(sel.Text())
}
