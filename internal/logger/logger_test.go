package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.Info("hidden")
	l.Warn("mirror write failed", F("id", "g1"), Err(os.ErrDeadlineExceeded))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO entry written at WARN level: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "id=g1") || !strings.Contains(out, "error=") {
		t.Errorf("unexpected entry: %q", out)
	}
}

func TestWithFieldsSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: DEBUG, Writer: &buf})

	child := l.WithFields(F("component", "repository"))
	child.Debug("created", F("id", "g1"))
	l.Debug("plain")

	out := buf.String()
	if !strings.Contains(out, "component=repository id=g1") {
		t.Errorf("child fields missing: %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Errorf("parent picked up child fields: %q", out)
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goalpost.log")
	l, err := New(Config{Level: DEBUG, FilePath: path, MaxSize: 64, MaxBackups: 2, MaxAge: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Info("a line long enough to push the file over its size limit")
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated backup: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != DEBUG || ParseLevel("WARNING") != WARN || ParseLevel("bogus") != INFO {
		t.Error("ParseLevel mismatch")
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("nothing happens")
	Nop().WithFields(F("k", "v")).Info("still nothing")
}
