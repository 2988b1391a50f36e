package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fastrm/internal/cleanup"
	"fastrm/internal/config"
	"fastrm/internal/database"
	"fastrm/internal/logging"
	"fastrm/internal/metrics"
	"fastrm/internal/pool"
	"fastrm/internal/safety"
)

func init() {
	// Initialize metrics once for all integration tests
	metrics.Init()
}

// loadConfig writes a YAML config the way an operator would and loads it
func loadConfig(t *testing.T, dir, body string) *config.Config {
	t.Helper()
	path := filepath.Join(dir, "fastrm.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// TestCleanupSafetyIntegration verifies the complete safety contract with a
// real filesystem, a config file, run history and a log file
func TestCleanupSafetyIntegration(t *testing.T) {
	tmpRoot := t.TempDir()
	allowedDir := filepath.Join(tmpRoot, "allowed")
	protectedDir := filepath.Join(tmpRoot, "protected")
	stateDir := filepath.Join(tmpRoot, "state")

	for _, dir := range []string{allowedDir, protectedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	junkFile := filepath.Join(allowedDir, "junk.log")
	if err := os.WriteFile(junkFile, []byte("deletable content"), 0644); err != nil {
		t.Fatalf("Failed to create junk file: %v", err)
	}

	deletableDir := filepath.Join(allowedDir, "old_backups")
	for i := 0; i < 20; i++ {
		sub := filepath.Join(deletableDir, fmt.Sprintf("set%02d", i))
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", sub, err)
		}
		if err := os.WriteFile(filepath.Join(sub, "old.tar.gz"), []byte("old backup"), 0644); err != nil {
			t.Fatalf("Failed to create backup file: %v", err)
		}
	}

	protectedFile := filepath.Join(protectedDir, "keep.txt")
	if err := os.WriteFile(protectedFile, []byte("MUST KEEP"), 0644); err != nil {
		t.Fatalf("Failed to create protected file: %v", err)
	}

	// Links inside the allowed dir pointing at protected data
	linkToFile := filepath.Join(allowedDir, "link_to_file")
	if err := os.Symlink(protectedFile, linkToFile); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	linkToDir := filepath.Join(deletableDir, "link_to_dir")
	if err := os.Symlink(protectedDir, linkToDir); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	logFile := filepath.Join(stateDir, "fastrm.log")
	cfg := loadConfig(t, tmpRoot, fmt.Sprintf(`
jobs: 4
log:
  file: %s
history:
  database_path: %s
metrics:
  textfile: %s
safety:
  allowed_roots:
    - %s
`, logFile, filepath.Join(stateDir, "history.db"), filepath.Join(stateDir, "fastrm.prom"), allowedDir))

	db, err := database.NewHistoryDB(cfg.History.DatabasePath)
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	defer db.Close()

	p, err := pool.New(cfg.Jobs)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	cleaner := cleanup.NewCleaner(cfg, p, logging.NewWithConfig(cfg), db)

	t.Run("RealMode_OnlyAllowedDeletes", func(t *testing.T) {
		res, err := cleaner.Run(context.Background(), []string{filepath.Join(allowedDir, "*")})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		for _, p := range []string{junkFile, deletableDir, linkToFile} {
			if _, err := os.Lstat(p); !os.IsNotExist(err) {
				t.Errorf("%s should have been deleted", p)
			}
		}
		if _, err := os.Stat(protectedFile); err != nil {
			t.Errorf("SAFETY VIOLATION: protected file was deleted: %v", err)
		}
		if _, err := os.Stat(allowedDir); err != nil {
			t.Errorf("The pattern base directory must survive: %v", err)
		}

		if res.Stats.Files != 21 || res.Stats.Symlinks != 2 || res.Stats.Dirs != 21 {
			t.Errorf("Stats = %+v, expected 21 files, 2 symlinks, 21 dirs", res.Stats)
		}

		run, err := db.GetRun(res.RunID)
		if err != nil {
			t.Fatalf("Run not recorded in history: %v", err)
		}
		if run.Status != database.StatusSuccess || run.Jobs != 4 {
			t.Errorf("Recorded run = %+v", run)
		}
	})

	t.Run("OutsideAllowedRoot_Blocked", func(t *testing.T) {
		_, err := cleaner.Run(context.Background(), []string{protectedFile})

		var verr *safety.ViolationError
		if !errors.As(err, &verr) || !errors.Is(err, safety.ErrOutsideAllowed) {
			t.Fatalf("Expected outside-allowed violation, got %v", err)
		}
		if verr.Path != protectedFile {
			t.Errorf("Violation path = %s, expected %s", verr.Path, protectedFile)
		}
		if _, err := os.Stat(protectedFile); os.IsNotExist(err) {
			t.Error("CRITICAL SAFETY VIOLATION: file outside allowed root was deleted")
		}
	})

	t.Run("ProtectedPaths_Blocked", func(t *testing.T) {
		validator := safety.NewValidator([]string{"/"}, nil)
		for _, path := range []string{"/", "/etc", "/bin", "/usr", "/boot"} {
			if err := validator.ValidateDeleteTarget(path); !errors.Is(err, safety.ErrProtectedPath) {
				t.Errorf("SAFETY VIOLATION: Protected path %s not blocked (err=%v)", path, err)
			}
		}
	})

	t.Run("LogAndMetricsWritten", func(t *testing.T) {
		data, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Log file not written: %v", err)
		}
		for _, want := range []string{"[INFO] Starting run", "[INFO] Run complete", "[ERROR] Failed to delete"} {
			if !strings.Contains(string(data), want) {
				t.Errorf("Log file missing %q", want)
			}
		}

		if _, err := os.Stat(cfg.Metrics.Textfile); err != nil {
			t.Errorf("Metrics textfile not written: %v", err)
		}

		stats, err := db.GetStats()
		if err != nil {
			t.Fatalf("Failed to get history stats: %v", err)
		}
		if stats.TotalRuns != 2 || stats.FailedRuns != 1 || stats.TotalFailures != 1 {
			t.Errorf("History stats = %+v, expected 2 runs, 1 failed, 1 failure", stats)
		}
	})
}
