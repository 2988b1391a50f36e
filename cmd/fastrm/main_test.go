package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fastrm/internal/exitcodes"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestExitCodes(t *testing.T) {
	tmpDir := t.TempDir()
	badConfig := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("jobs: -3\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tests := []struct {
		name      string
		args      []string
		wantCode  int
		wantInErr string
	}{
		{"no patterns", nil, exitcodes.Usage, "at least one pattern"},
		{"unknown flag", []string{"--bogus", "x"}, exitcodes.Usage, "bogus"},
		{"zero jobs", []string{"-j", "0", "x"}, exitcodes.InvalidConfig, "jobs"},
		{"negative jobs in config", []string{"--config", badConfig, "x"}, exitcodes.InvalidConfig, "jobs"},
		{"missing config", []string{"--config", filepath.Join(tmpDir, "nope.yaml"), "x"}, exitcodes.InvalidConfig, "config"},
		{"bad pattern", []string{filepath.Join(tmpDir, "[")}, exitcodes.PatternError, "invalid pattern"},
		{"protected path", []string{"/etc"}, exitcodes.SafetyViolation, "protected path"},
		{"no matches", []string{filepath.Join(tmpDir, "*.tmp")}, exitcodes.Success, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := execute(context.Background(), tt.args, &stderr)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, expected %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if tt.wantInErr == "" {
				if stderr.Len() != 0 {
					t.Errorf("Expected empty stderr, got %q", stderr.String())
				}
				return
			}
			if !strings.HasPrefix(stderr.String(), "fastrm: ") || !strings.Contains(stderr.String(), tt.wantInErr) {
				t.Errorf("stderr = %q, expected fastrm: ...%s...", stderr.String(), tt.wantInErr)
			}
		})
	}
}

func TestDeletesTreeWithJobs(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a")
	writeFile(t, filepath.Join(a, "x"))
	writeFile(t, filepath.Join(a, "y", "z"))

	var stderr bytes.Buffer
	if code := execute(context.Background(), []string{"-j", "4", a}, &stderr); code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	if _, err := os.Lstat(a); !os.IsNotExist(err) {
		t.Errorf("%s should be gone", a)
	}
}

func TestVerboseWritesPaths(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "one.tmp")
	writeFile(t, f)

	var stderr bytes.Buffer
	if code := execute(context.Background(), []string{"-v", filepath.Join(tmpDir, "*.tmp")}, &stderr); code != exitcodes.Success {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	if stderr.String() != f+"\n" {
		t.Errorf("stderr = %q, expected %q", stderr.String(), f+"\n")
	}
}

func TestRuntimeErrorExitCode(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	tmpDir := t.TempDir()
	locked := filepath.Join(tmpDir, "locked")
	writeFile(t, filepath.Join(locked, "f"))
	if err := os.Chmod(locked, 0555); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	var stderr bytes.Buffer
	code := execute(context.Background(), []string{filepath.Join(locked, "f")}, &stderr)
	if code != exitcodes.RuntimeError {
		t.Errorf("exit code = %d, expected %d", code, exitcodes.RuntimeError)
	}
	if !strings.Contains(stderr.String(), "permission denied") {
		t.Errorf("stderr = %q, expected a permission error", stderr.String())
	}
	if strings.Count(stderr.String(), "\n") != 1 {
		t.Errorf("Expected exactly one error line, got %q", stderr.String())
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "fastrm.yaml")
	if err := os.WriteFile(cfgPath, []byte("jobs: 8\nverbose: true\nforce: true\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cmd := newRootCmd(&bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "-j", "2", "--verbose=false"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	opts := &options{}
	opts.configPath = cfgPath
	opts.jobs, _ = cmd.Flags().GetInt("jobs")
	opts.verbose, _ = cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig(cmd.Flags(), opts)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Jobs != 2 {
		t.Errorf("Jobs = %d, expected flag value 2", cfg.Jobs)
	}
	if cfg.Verbose {
		t.Error("Verbose should be overridden to false")
	}
	if !cfg.Force {
		t.Error("Force should keep the config value")
	}
}
