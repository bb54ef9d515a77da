package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown", zap.String("client", "abc"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "abc") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello", zap.Int("n", 1))

	if !strings.Contains(buf.String(), `"msg":"hello"`) || !strings.Contains(buf.String(), `"n":1`) {
		t.Fatalf("unexpected json output: %q", buf.String())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	if _, _, err := New(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")

	var buf bytes.Buffer
	log, closer, err := New(Config{File: path}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("to file")
	_ = log.Sync()
	if closer == nil {
		t.Fatalf("expected a closer for file output")
	}
	_ = closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing line: %q", data)
	}
}
