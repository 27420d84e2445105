package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("evaluator")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "evaluator" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("ARBFLOW_TEST_ENV", "bar")
	log := Logger()
	entry := log.WithEnv("ARBFLOW_TEST_ENV")
	if v, ok := entry.Entry.Data["ARBFLOW_TEST_ENV"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogMetricEmitsStructuredLine(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.LogMetric("scanner", "opportunities_found", 3, "counter", Fields{"pair": "BTC/USDT"})

	out := buf.String()
	for _, want := range []string{`"metric":"opportunities_found"`, `"value":3`, `"component":"scanner"`} {
		if !strings.Contains(out, want) {
			t.Errorf("metric line missing %s: %s", want, out)
		}
	}
}
