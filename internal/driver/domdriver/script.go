package domdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/network"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

type elementInfo struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type fetchResult struct {
	Status      int    `json:"status"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
	Error       string `json:"error"`
}

func (r fetchResult) document() *bootstrap.Document {
	return &bootstrap.Document{
		URL:         r.URL,
		Status:      r.Status,
		ContentType: r.ContentType,
		Header:      http.Header{"Content-Type": []string{r.ContentType}},
		Body:        []byte(r.Body),
	}
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// deepQuery returns a JS expression resolving to the first element matching
// selector in the document or any open shadow root beneath it, or null.
// Authentik renders its flows inside web components, so plain
// document.querySelector misses most inputs.
func deepQuery(selector string) string {
	return fmt.Sprintf(`((sel) => {
  const visit = (root) => {
    const hit = root.querySelector(sel);
    if (hit) { return hit; }
    for (const host of root.querySelectorAll("*")) {
      if (host.shadowRoot) {
        const inner = visit(host.shadowRoot);
        if (inner) { return inner; }
      }
    }
    return null;
  };
  return visit(document);
})(%s)`, jsString(selector))
}

func queryScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = %s;
  if (!el) { return null; }
  return { name: el.getAttribute("name") || el.id || "", value: el.value || "" };
})()`, deepQuery(selector))
}

func presentScript(selector string) string {
	return "!!" + deepQuery(selector)
}

// fetchScript builds an async in-page fetch that resolves to a fetchResult.
func fetchScript(target, method string, headers map[string]string, body interface{}) (string, error) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %s", jsString(k), jsString(headers[k])))
	}

	payload := "undefined"
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		payload = jsString(string(encoded))
	}

	return fmt.Sprintf(`(async () => {
  try {
    const r = await fetch(%s, {method: %s, credentials: "include", headers: {%s}, body: %s});
    return {status: r.status, url: r.url, contentType: r.headers.get("content-type") || "", body: await r.text(), error: ""};
  } catch (e) {
    return {status: 0, url: "", contentType: "", body: "", error: String(e)};
  }
})()`, jsString(target), jsString(method), strings.Join(pairs, ", "), payload), nil
}

func cookieMap(cookies []*network.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

func headerFrom(h network.Headers) http.Header {
	out := http.Header{}
	for k, v := range h {
		out.Set(k, fmt.Sprint(v))
	}
	return out
}

// mapError turns chromedp failures into domain errors. Navigation errors such
// as net::ERR_CONNECTION_REFUSED mean the target is unreachable.
func mapError(ctx context.Context, target string, err error) error {
	if err == nil {
		return nil
	}
	var typed *bootstrap.Error
	if errors.As(err, &typed) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return bootstrap.NewCancelled(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "net::ERR_") {
		return bootstrap.NewUnreachable(target, err)
	}
	return bootstrap.NewInternal("browser action failed", err)
}
