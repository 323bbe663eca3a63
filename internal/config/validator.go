package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/authboot/internal/verify"
	apperrors "github.com/alexisbeaulieu97/authboot/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)
	probeNames  = map[string]struct{}{
		verify.ProbeForwardAuth:  {},
		verify.ProbeAuthorize:    {},
		verify.ProbeToken:        {},
		verify.ProbeUserinfo:     {},
		verify.ProbeRelyingParty: {},
	}
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return strings.ToLower(field.Name)
			}
			return name
		})

		_ = v.RegisterValidation("driver", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case DriverHTTP, DriverDOM:
				return true
			}
			return false
		})

		_ = v.RegisterValidation("status_policy", func(fl validator.FieldLevel) bool {
			return verify.ValidToken(fl.Field().String())
		})

		_ = v.RegisterValidation("probe_name", func(fl validator.FieldLevel) bool {
			_, ok := probeNames[fl.Field().String()]
			return ok
		})

		_ = v.RegisterValidation("flow_path", func(fl validator.FieldLevel) bool {
			p := fl.Field().String()
			return strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") && !strings.Contains(p, "..")
		})

		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validate checks cfg. When root is the parsed YAML document, errors carry
// the line of the offending value.
func Validate(cfg *Config, root *yaml.Node) error {
	if cfg == nil {
		return apperrors.NewValidationError("config", "configuration is nil", nil)
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return locate(convertValidationError(err), root)
	}
	r := cfg.Settings.Retry
	if r.MaxBackoff > 0 && r.InitialBackoff > r.MaxBackoff {
		return locate(apperrors.NewValidationError("settings.retry.max_backoff", "must not be shorter than initial_backoff", nil), root)
	}
	return nil
}

func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apperrors.NewValidationError("config", err.Error(), err)
	}
	fe := ves[0]
	field := yamlFieldName(fe)
	return apperrors.NewValidationError(field, describe(fe), err)
}

// yamlFieldName drops the root struct name from the namespace, which the tag
// name func has already rendered with YAML keys.
func yamlFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "driver":
		return fmt.Sprintf("unknown driver %q (want http or dom)", fe.Value())
	case "status_policy":
		return fmt.Sprintf("invalid status %q (want a code like 401 or a class like 3xx)", fe.Value())
	case "probe_name":
		return fmt.Sprintf("unknown probe %q", fe.Value())
	case "flow_path":
		return "must be an absolute path ending in /"
	case "slug":
		return "must be lowercase letters, digits, - or _"
	case "http_url", "url":
		return "must be an absolute URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min", "max":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}

func locate(err error, root *yaml.Node) error {
	var ve *apperrors.ValidationError
	if root == nil || !errors.As(err, &ve) {
		return err
	}
	if line := lineOf(root, ve.Field); line > 0 {
		return ve.AtLine(line)
	}
	return err
}

// lineOf resolves a dotted field path such as "verify.policies[oauth2-token][0]"
// against the parsed document.
func lineOf(root *yaml.Node, field string) int {
	node := root
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	matched := 0
	for _, seg := range splitField(field) {
		next := child(node, seg)
		if next == nil {
			break
		}
		node = next
		matched++
	}
	if matched == 0 {
		return 0
	}
	return node.Line
}

func splitField(field string) []string {
	var segs []string
	for _, part := range strings.Split(field, ".") {
		for {
			open := strings.Index(part, "[")
			if open < 0 {
				break
			}
			if open > 0 {
				segs = append(segs, part[:open])
			}
			end := strings.Index(part, "]")
			if end < open {
				break
			}
			segs = append(segs, part[open+1:end])
			part = part[end+1:]
		}
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

func child(node *yaml.Node, seg string) *yaml.Node {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == seg {
				return node.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		var idx int
		if _, err := fmt.Sscanf(seg, "%d", &idx); err == nil && idx >= 0 && idx < len(node.Content) {
			return node.Content[idx]
		}
	}
	return nil
}
