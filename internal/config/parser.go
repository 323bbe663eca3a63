package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	apperrors "github.com/alexisbeaulieu97/authboot/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// DefaultEnvFile is read when no env file is named and it exists.
const DefaultEnvFile = ".env"

// LoadOptions names the sources layered over Default. Precedence, highest
// first: process environment, env file, YAML file, defaults.
type LoadOptions struct {
	// Path is the YAML file; empty means defaults plus environment only.
	Path string
	// EnvFile is a dotenv file. A missing DefaultEnvFile is ignored; a
	// missing explicit file is an error.
	EnvFile string
	// Lookup reads the process environment; nil uses os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Load builds and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	var root *yaml.Node
	if opts.Path != "" {
		parsed, node, err := ParseFile(opts.Path)
		if err != nil {
			return nil, err
		}
		cfg, root = *parsed, node
	}

	lookup, err := envLookup(opts.EnvFile, opts.Lookup)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(&cfg, root); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseFile decodes the YAML file at path over Default without validating
// it. The returned node locates validation errors.
func ParseFile(path string) (*Config, *yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.NewConfigError(path, 0, err)
	}
	return Parse(path, data)
}

// Parse decodes data over Default. Unknown keys are rejected.
func Parse(path string, data []byte) (*Config, *yaml.Node, error) {
	cfg := Default()

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, apperrors.NewConfigError(path, extractLine(err), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, apperrors.NewConfigError(path, extractLine(err), err)
	}
	return &cfg, &root, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
