package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record emitted below configured level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn record missing")
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), `"key":"value"`) {
		t.Errorf("output is not JSON: %s", buf.String())
	}
}

func TestMetricsRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsForRegistry(reg)

	m.MessageCounter.WithLabelValues("onebot", "inbound").Inc()
	m.ObserveTurn("ok", 2*time.Second)
	m.ActiveSessions.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"horizon_messages_total", "horizon_turn_duration_seconds", "horizon_active_sessions"} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}

func TestObserveTurnNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("ok", time.Second)
}

func TestNewLoggerSetsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})
	if slog.Default() != logger {
		t.Error("logger was not installed as default")
	}
}
