package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	cmd := newRootCmd(viper.New(), strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLintStdinJSON(t *testing.T) {
	out, err := execute(t, "[Happy:80]Hello [Sad:30]world", "--format", "json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var reports []fileReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].File != "<stdin>" {
		t.Fatalf("reports=%+v", reports)
	}
	r := reports[0]
	if r.PlainText != "Hello world" || len(r.Segments) != 2 || r.Segments[1].Vector[2] != 0.3 {
		t.Fatalf("report=%+v", r)
	}
}

func TestLintYAML(t *testing.T) {
	out, err := execute(t, "[Calm:50]ok [x]", "-f", "yaml")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var reports []fileReport
	if err := yaml.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(reports) != 1 || len(reports[0].Diagnostics) != 1 || reports[0].Diagnostics[0].Code != "missing_colon" {
		t.Fatalf("reports=%+v", reports)
	}
}

func TestLintStrict(t *testing.T) {
	if _, err := execute(t, "[Bogus:10]hi", "--strict"); !errors.Is(err, errDiagnostics) {
		t.Fatalf("err=%v, want errDiagnostics", err)
	}
	if _, err := execute(t, "[Happy:10]hi", "--strict"); err != nil {
		t.Fatalf("clean input err=%v", err)
	}
}

func TestLintFilesText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "line.txt")
	if err := os.WriteFile(path, []byte("[Angry:40]stop"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := execute(t, "", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, path+": 1 segment(s), 0 diagnostic(s)") || !strings.Contains(out, `"stop"`) {
		t.Fatalf("output=%s", out)
	}

	if _, err := execute(t, "", filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLintEnvAndBadFlags(t *testing.T) {
	t.Setenv("EMOTAG_FORMAT", "json")
	out, err := execute(t, "plain")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Fatalf("EMOTAG_FORMAT=json should select json, got %s", out)
	}

	if _, err := execute(t, "x", "--format", "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := execute(t, "x", "--adjacency", "stack"); err == nil {
		t.Fatalf("expected unsupported adjacency error")
	}
}
