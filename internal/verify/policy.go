package verify

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// DefaultPolicy is the healthy set for every auth-guarded endpoint.
var DefaultPolicy = []string{"3xx", "401", "405"}

// Policy is the set of status codes an endpoint may answer with and still
// count as working. Tokens are exact codes ("401") or classes ("3xx").
type Policy struct {
	tokens  []string
	exact   map[int]struct{}
	classes map[int]struct{}
}

// ParsePolicy builds a policy from tokens.
func ParsePolicy(tokens []string) (Policy, error) {
	if len(tokens) == 0 {
		return Policy{}, bootstrap.NewValidationError("status policy must not be empty", nil)
	}
	p := Policy{exact: map[int]struct{}{}, classes: map[int]struct{}{}}
	for _, raw := range tokens {
		token := strings.ToLower(strings.TrimSpace(raw))
		class, code, ok := parseToken(token)
		if !ok {
			return Policy{}, bootstrap.NewValidationError(fmt.Sprintf("invalid status policy token %q", raw), map[string]interface{}{"token": raw})
		}
		if class > 0 {
			p.classes[class] = struct{}{}
		} else {
			p.exact[code] = struct{}{}
		}
		p.tokens = append(p.tokens, token)
	}
	return p, nil
}

// MustParsePolicy is ParsePolicy for literals known to be valid.
func MustParsePolicy(tokens ...string) Policy {
	p, err := ParsePolicy(tokens)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidToken reports whether token can appear in a policy.
func ValidToken(token string) bool {
	_, _, ok := parseToken(strings.ToLower(strings.TrimSpace(token)))
	return ok
}

func parseToken(token string) (class, code int, ok bool) {
	if len(token) != 3 {
		return 0, 0, false
	}
	if strings.HasSuffix(token, "xx") {
		c := int(token[0] - '0')
		return c, 0, c >= 1 && c <= 5
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 100 || n > 599 {
		return 0, 0, false
	}
	return 0, n, true
}

// Allows reports whether code satisfies the policy.
func (p Policy) Allows(code int) bool {
	if _, ok := p.exact[code]; ok {
		return true
	}
	_, ok := p.classes[code/100]
	return ok
}

// String renders the policy as it was configured.
func (p Policy) String() string {
	return strings.Join(p.tokens, ",")
}

// Classify maps an observed status to a probe status. 404 always means the
// endpoint is not configured, whatever the policy says.
func Classify(code int, p Policy) bootstrap.ProbeStatus {
	switch {
	case code == http.StatusNotFound:
		return bootstrap.ProbeNotConfigured
	case p.Allows(code):
		return bootstrap.ProbeWorking
	default:
		return bootstrap.ProbeUnexpected
	}
}
