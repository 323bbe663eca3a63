// Package extract recovers anti-forgery tokens, flow identifiers, generated
// secrets and form fields from target responses. It tolerates the markup
// variants different target versions produce.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// Parse builds a goquery document over an HTML body.
func Parse(doc *bootstrap.Document) (*goquery.Document, error) {
	if doc == nil {
		return nil, bootstrap.NewNotFound("document")
	}
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, bootstrap.NewInternal("parse html", err)
	}
	return parsed, nil
}

// HiddenInputs returns the name/value pairs of every hidden input on the page.
// Later duplicates do not override earlier ones.
func HiddenInputs(doc *bootstrap.Document) (map[string]string, error) {
	parsed, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	parsed.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, seen := values[name]; seen {
			return
		}
		value, _ := s.Attr("value")
		values[name] = value
	})
	return values, nil
}

// FormAction returns the action of the first form on the page, or "" when
// the form posts back to its own URL.
func FormAction(doc *bootstrap.Document) string {
	parsed, err := Parse(doc)
	if err != nil {
		return ""
	}
	action, _ := parsed.Find("form").First().Attr("action")
	return strings.TrimSpace(action)
}

// MatchField tries field's candidates in order against doc and returns the
// first match.
func MatchField(doc *bootstrap.Document, field bootstrap.Field) (bootstrap.FieldHandle, error) {
	parsed, err := Parse(doc)
	if err != nil {
		return bootstrap.FieldHandle{}, err
	}
	return MatchFieldIn(parsed.Selection, field)
}

// MatchFieldIn is MatchField over an already parsed selection.
func MatchFieldIn(root *goquery.Selection, field bootstrap.Field) (bootstrap.FieldHandle, error) {
	for _, candidate := range field.Candidates {
		sel := root.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("id")
		}
		value, _ := sel.Attr("value")
		return bootstrap.FieldHandle{
			Field:    field.Name,
			Selector: candidate,
			Name:     name,
			Value:    value,
		}, nil
	}
	return bootstrap.FieldHandle{}, bootstrap.NewSelectorNotFound(field.Name, field.Candidates)
}

// FormErrorSelectors locate validation messages a flow renders after a
// rejected submission.
var FormErrorSelectors = []string{
	".errorlist li",
	".pf-c-form__helper-text.pf-m-error",
	".pf-v5-c-helper-text__item.pf-m-error",
	".pf-c-alert.pf-m-danger .pf-c-alert__title",
}

// FormErrors returns the validation messages rendered on doc, in page order.
func FormErrors(doc *bootstrap.Document) []string {
	if doc == nil || doc.IsJSON() {
		return nil
	}
	parsed, err := Parse(doc)
	if err != nil {
		return nil
	}
	var out []string
	for _, selector := range FormErrorSelectors {
		parsed.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				out = append(out, text)
			}
		})
	}
	return out
}
