package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logPath := filepath.Join(dir, LogFileName)
		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.out.file != nil {
			t.Error("expected no file when dir is empty")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close on stderr logger: %v", err)
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Errorf("unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelDebug)

	root.WithPhase("refine").WithWorker(2).WithCell(17).Info("step accepted", "facets", 54)
	root.Info("plain")

	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	first := lines[0]
	if first["phase"] != "refine" {
		t.Errorf("phase = %v, want refine", first["phase"])
	}
	if first["worker"] != float64(2) {
		t.Errorf("worker = %v, want 2", first["worker"])
	}
	if first["cell"] != float64(17) {
		t.Errorf("cell = %v, want 17", first["cell"])
	}
	if first["facets"] != float64(54) {
		t.Errorf("facets = %v, want 54", first["facets"])
	}
	if _, ok := lines[1]["phase"]; ok {
		t.Error("child attributes leaked into the parent logger")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelDebug)
	if root.With() != root {
		t.Error("With() without args should return the same logger")
	}

	root.With("run", "abc", 42, "ignored", "seeds", 10).Info("start")
	lines := decodeLines(t, buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}
	if lines[0]["run"] != "abc" {
		t.Errorf("run = %v, want abc", lines[0]["run"])
	}
	if lines[0]["seeds"] != float64(10) {
		t.Errorf("seeds = %v, want 10", lines[0]["seeds"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	logger.WithPhase("x").Warn("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
	if got := len(ValidLevels()); got != 4 {
		t.Errorf("ValidLevels() has %d entries, want 4", got)
	}
}

func TestCloseTwice(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	child := logger.WithPhase("partition")
	if err := child.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestConcurrentWrites(t *testing.T) {
	var out lockedBuffer
	root := NewWriterLogger(&out, LevelInfo)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			l := root.WithWorker(w)
			for i := 0; i < 25; i++ {
				l.Info("refined", "i", i)
			}
		}(w)
	}
	wg.Wait()

	if got := len(decodeLines(t, out.buf.String())); got != 100 {
		t.Errorf("got %d lines, want 100", got)
	}
}
