package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	apperrors "github.com/alexisbeaulieu97/authboot/pkg/errors"
)

// Environment overrides.
const (
	EnvURL           = "AUTHBOOT_URL"
	EnvAdminUser     = "AUTHBOOT_ADMIN_USER"
	EnvAdminPassword = "AUTHBOOT_ADMIN_PASSWORD"
	EnvAdminEmail    = "AUTHBOOT_ADMIN_EMAIL"
	EnvDriver        = "AUTHBOOT_DRIVER"
	EnvHeadless      = "AUTHBOOT_HEADLESS"
)

// ApplyEnv overlays the AUTHBOOT_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvURL, &cfg.Target.URL)
	str(EnvAdminUser, &cfg.Admin.Username)
	str(EnvAdminEmail, &cfg.Admin.Email)
	str(EnvDriver, &cfg.Driver.Type)
	cfg.Driver.Type = strings.ToLower(cfg.Driver.Type)

	// Passwords may legitimately carry surrounding spaces.
	if v, ok := lookup(EnvAdminPassword); ok && v != "" {
		cfg.Admin.Password = v
	}

	if v, ok := lookup(EnvHeadless); ok && strings.TrimSpace(v) != "" {
		headless, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return apperrors.NewEnvError(EnvHeadless, "must be a boolean", err)
		}
		cfg.Driver.Headless = headless
	}
	return nil
}

// envLookup layers the process environment over the env file.
func envLookup(envFile string, lookup func(string) (string, bool)) (func(string) (string, bool), error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	fileVars, err := godotenv.Read(path)
	if err != nil {
		if envFile == "" && errors.Is(err, os.ErrNotExist) {
			return lookup, nil
		}
		return nil, apperrors.NewConfigError(path, 0, err)
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}
