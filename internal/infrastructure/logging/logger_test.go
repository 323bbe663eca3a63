package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

func decodeLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	payload := make(map[string]interface{})
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return payload
}

func TestLoggerIncludesCorrelationIDAndLayer(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{
		Writer:     &buf,
		Level:      "debug",
		Format:     "json",
		Layer:      "engine",
		Component:  "runner",
		TimeFormat: "2006-01-02T15:04:05Z07:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := ports.WithCorrelationID(context.Background(), "abc123")
	logger.Info(ctx, "step completed", "step_id", "authenticate")

	payload := decodeLine(t, strings.TrimSpace(buf.String()))
	if payload["layer"] != "engine" {
		t.Fatalf("expected layer to be engine, got %v", payload["layer"])
	}
	if payload["component"] != "runner" {
		t.Fatalf("expected component field, got %v", payload["component"])
	}
	if payload["correlation_id"] != "abc123" {
		t.Fatalf("expected correlation_id to be abc123, got %v", payload["correlation_id"])
	}
	if payload["step_id"] != "authenticate" {
		t.Fatalf("expected step_id to be recorded, got %v", payload["step_id"])
	}
	if payload["msg"] != "step completed" {
		t.Fatalf("expected message to be recorded, got %v", payload["msg"])
	}
}

func TestLoggerWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child := logger.With("component", "verifier").(*Logger)
	child.Warn(context.Background(), "probe unexpected", "probe", "oauth2-token")

	payload := decodeLine(t, strings.TrimSpace(buf.String()))
	if payload["component"] != "verifier" {
		t.Fatalf("expected component=verifier, got %v", payload["component"])
	}
	if payload["probe"] != "oauth2-token" {
		t.Fatalf("expected probe oauth2-token, got %v", payload["probe"])
	}
	if payload["layer"] != "cli" {
		t.Fatalf("expected default layer cli, got %v", payload["layer"])
	}
}

func TestLoggerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info(context.Background(), "submitting form",
		"password", "hunter2",
		"client_secret", "s3cr3t",
		"csrfmiddlewaretoken", "abc",
		"authorization_flow", "default-provider-authorization-explicit-consent",
		"empty_password", "",
	)

	payload := decodeLine(t, strings.TrimSpace(buf.String()))
	for _, key := range []string{"password", "client_secret", "csrfmiddlewaretoken"} {
		if payload[key] != redactedValue {
			t.Fatalf("expected %s to be redacted, got %v", key, payload[key])
		}
	}
	if payload["authorization_flow"] != "default-provider-authorization-explicit-consent" {
		t.Fatalf("flow slug must not be redacted, got %v", payload["authorization_flow"])
	}
	if payload["empty_password"] != "" {
		t.Fatalf("empty values stay empty, got %v", payload["empty_password"])
	}
}

func TestLoggerExpandsDomainErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cause := fmt.Errorf("authenticate: %w", bootstrap.NewTokenNotFound("/if/flow/default-authentication-flow/"))
	logger.Warn(context.Background(), "step failed", "error", cause, "other", errors.New("plain"))

	payload := decodeLine(t, strings.TrimSpace(buf.String()))
	if payload["error_code"] != string(bootstrap.ErrCodeTokenNotFound) {
		t.Fatalf("expected error_code TOKEN_NOT_FOUND, got %v", payload["error_code"])
	}
	if msg, _ := payload["error"].(string); !strings.HasPrefix(msg, "authenticate: ") {
		t.Fatalf("expected wrapped error message, got %v", payload["error"])
	}
	if _, ok := payload["other_code"]; ok {
		t.Fatal("plain errors carry no code")
	}
	if payload["other"] != "plain" {
		t.Fatalf("expected plain error text, got %v", payload["other"])
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"", "text", "JSON", "logfmt"} {
		if _, err := ParseFormat(name); err != nil {
			t.Fatalf("format %q: unexpected error %v", name, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected unknown format to fail")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected New to reject unknown format")
	}
}

func TestNoOpLogger(t *testing.T) {
	noOp := NewNoOpLogger()
	noOp.Info(context.Background(), "hello world")

	if noOp.With("key", "value") != noOp {
		t.Fatalf("expected With to return same no-op logger instance")
	}
}

func TestBufferStoresAndFlushes(t *testing.T) {
	buffer := NewBuffer(10)
	bufLogger := buffer.Logger()

	ctx := ports.WithCorrelationID(context.Background(), "buffered")
	bufLogger.Info(ctx, "run started", "component", "runner")
	bufLogger.With("component", "httpdriver").Error(ctx, "request failed", "attempt", 1)
	if buffer.Len() != 2 {
		t.Fatalf("expected 2 buffered entries, got %d", buffer.Len())
	}

	var output bytes.Buffer
	delegate, err := New(Options{Writer: &output, Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buffer.Flush(delegate)
	if buffer.Len() != 0 {
		t.Fatal("expected flush to empty the buffer")
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	first := decodeLine(t, lines[0])
	if first["msg"] != "run started" || first["component"] != "runner" {
		t.Fatalf("unexpected first event payload: %+v", first)
	}
	second := decodeLine(t, lines[1])
	if second["msg"] != "request failed" || second["component"] != "httpdriver" {
		t.Fatalf("unexpected second event payload: %+v", second)
	}
	if second["correlation_id"] != "buffered" {
		t.Fatalf("expected correlation id to be preserved, got %v", second["correlation_id"])
	}
}

func TestBufferDropsOldestPastLimit(t *testing.T) {
	buffer := NewBuffer(2)
	l := buffer.Logger()
	for _, msg := range []string{"one", "two", "three"} {
		l.Info(context.Background(), msg)
	}

	var output bytes.Buffer
	delegate, err := New(Options{Writer: &output, Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buffer.Flush(delegate)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected overflow warning plus 2 entries, got %d lines", len(lines))
	}
	if decodeLine(t, lines[0])["msg"] != "log buffer overflowed" {
		t.Fatalf("expected overflow warning first, got %s", lines[0])
	}
	if decodeLine(t, lines[1])["msg"] != "two" {
		t.Fatalf("expected oldest entry dropped, got %s", lines[1])
	}
}
