package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewConfigError("authboot.yaml", 12, underlying)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "authboot.yaml", cfgErr.Path)
	require.Equal(t, 12, cfgErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "config error: authboot.yaml:12: unexpected token", err.Error())
}

func TestEnvErrorNamesVariable(t *testing.T) {
	t.Parallel()

	err := NewEnvError("AUTHBOOT_HEADLESS", "must be a boolean", nil)
	require.Equal(t, "config error: environment: AUTHBOOT_HEADLESS: must be a boolean", err.Error())
}

func TestValidationErrorLocation(t *testing.T) {
	t.Parallel()

	err := NewValidationError("driver.type", "must be http or dom", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "driver.type", validationErr.Field)
	require.Equal(t, "validation error: driver.type: must be http or dom", err.Error())

	located := validationErr.AtLine(7)
	require.Equal(t, 7, located.Line)
	require.Zero(t, validationErr.Line)
	require.Equal(t, "validation error: driver.type (line 7): must be http or dom", located.Error())
}

func TestNilErrorsRenderEmpty(t *testing.T) {
	t.Parallel()

	var cfgErr *ConfigError
	var valErr *ValidationError
	require.Empty(t, cfgErr.Error())
	require.Empty(t, valErr.Error())
	require.Nil(t, cfgErr.Unwrap())
}
