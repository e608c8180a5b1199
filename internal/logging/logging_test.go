package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := Setup(Options{Level: tt.level})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l.GetLevel() != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, l.GetLevel())
			}
		})
	}
}

func TestSetup_InvalidLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestSetup_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	if _, err := Setup(Options{Level: "info", File: file}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Info(Fields{"identity": "alice"}, "marked")
	t.Cleanup(func() { _, _ = Setup(Options{}) })
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Logger()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	t.Cleanup(func() { _, _ = Setup(Options{}) })

	Component("stream").Info("frame")

	if !bytes.Contains(buf.Bytes(), []byte(`"component":"stream"`)) {
		t.Errorf("expected component field in %s", buf.String())
	}
}
