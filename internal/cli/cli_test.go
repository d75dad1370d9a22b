package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type env struct {
	root   string
	config string
	dbPath string
	exp    string
}

// setupEnv writes a config file, an experiment, a readiness probe that
// exits with probeCode, and a fake sbatch.
func setupEnv(t *testing.T, probeCode int, schedBody string) env {
	t.Helper()
	root := t.TempDir()
	e := env{root: root, config: filepath.Join(root, "cyclelaunch.yml"), dbPath: filepath.Join(root, "state", "cyclelaunch.db"), exp: "S2S-2_1_ANA_002"}

	scripts := filepath.Join(root, "scripts")
	expDir := filepath.Join(root, "exps", e.exp)
	for _, d := range []string{scripts, expDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		filepath.Join(scripts, "forecast_dates.txt"): "",
		filepath.Join(scripts, "s2s_check.py"):       fmt.Sprintf("#!/bin/sh\nexit %d\n", probeCode),
		filepath.Join(expDir, "gcm_run.j"):           "#!/bin/sh\n",
		filepath.Join(root, "sbatch"):                "#!/bin/sh\n" + schedBody + "\n",
	}
	for p, body := range files {
		if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := fmt.Sprintf(`experiments_root: %s
script_dir: %s
check_interval: 10ms
max_wait: 50ms
scheduler:
  kind: slurm
  command: %s
lease:
  db_path: %s
  ttl: 1m
`, filepath.Join(root, "exps"), scripts, filepath.Join(root, "sbatch"), e.dbPath)
	if err := os.WriteFile(e.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

func runCLI(t *testing.T, args ...string) (string, int) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)

	code := execute(context.Background(), root, args)
	return buf.String(), code
}

func TestRunCommand_Submits(t *testing.T) {
	e := setupEnv(t, 0, "echo 123456")

	out, code := runCLI(t, "--config", e.config, e.exp, "2024-01-01")
	if code != 0 {
		t.Fatalf("exit code = %d\noutput: %s", code, out)
	}
	if !strings.Contains(out, "Run Submitted - "+e.exp) {
		t.Errorf("expected success notification in log output, got: %s", out)
	}

	hist, code := runCLI(t, "--config", e.config, "history")
	if code != 0 {
		t.Fatalf("history exit code = %d: %s", code, hist)
	}
	if !strings.Contains(hist, "2024-01-01") || !strings.Contains(hist, "123456") {
		t.Errorf("history output missing run: %s", hist)
	}
}

func TestRunCommand_SkipsNonCycleDate(t *testing.T) {
	e := setupEnv(t, 0, "touch should-not-exist; echo 1")

	out, code := runCLI(t, "--config", e.config, e.exp, "2024-01-02")
	if code != 0 {
		t.Fatalf("exit code = %d\noutput: %s", code, out)
	}
	if strings.Contains(out, "Run Submitted") || strings.Contains(out, "Run Failed") {
		t.Errorf("unexpected notification on skipped date: %s", out)
	}
}

func TestRunCommand_UnusableStateDatabase(t *testing.T) {
	e := setupEnv(t, 0, "echo 123456")

	blocker := filepath.Join(e.root, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(e.config)
	if err != nil {
		t.Fatal(err)
	}
	cfg := strings.Replace(string(data), e.dbPath, filepath.Join(blocker, "state", "cyclelaunch.db"), 1)
	if err := os.WriteFile(e.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, code := runCLI(t, "--config", e.config, e.exp, "2024-01-02")
	if code != 0 {
		t.Fatalf("non-cycle date: exit code = %d\noutput: %s", code, out)
	}
	if strings.Contains(out, "Run Submitted") || strings.Contains(out, "Run Failed") {
		t.Errorf("unexpected notification on skipped date: %s", out)
	}

	out, code = runCLI(t, "--config", e.config, e.exp, "2024-01-01")
	if code != 0 {
		t.Fatalf("cycle date: exit code = %d\noutput: %s", code, out)
	}
	if !strings.Contains(out, "Run Submitted - "+e.exp) {
		t.Errorf("expected success notification, got: %s", out)
	}
	if !strings.Contains(out, "state database unavailable") {
		t.Errorf("expected warning about the state database, got: %s", out)
	}
}

func TestRunCommand_TimeoutFails(t *testing.T) {
	e := setupEnv(t, 110, "echo 1")

	out, code := runCLI(t, "--config", e.config, e.exp, "2024-01-01")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\noutput: %s", code, out)
	}
	if !strings.Contains(out, "Run Failed - "+e.exp) {
		t.Errorf("expected failure notification, got: %s", out)
	}
}

func TestRunCommand_FlagOverrides(t *testing.T) {
	e := setupEnv(t, 1, "echo 1")

	out, code := runCLI(t, "--config", e.config, "--no-lease", "--max-wait", "20ms", "--check-interval", "5ms", e.exp, "2024-01-01")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\noutput: %s", code, out)
	}
	if _, err := os.Stat(e.dbPath); err == nil {
		t.Error("--no-lease still created the state database")
	}
}

func TestRunCommand_InvalidDate(t *testing.T) {
	e := setupEnv(t, 0, "echo 1")

	out, code := runCLI(t, "--config", e.config, e.exp, "2024-13-01")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, "invalid cycle date") {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "Run Failed") {
		t.Error("invalid date argument must not send a notification")
	}
}

func TestRunCommand_WrongArgCount(t *testing.T) {
	e := setupEnv(t, 0, "echo 1")
	if _, code := runCLI(t, "--config", e.config, e.exp); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestCyclesCommand(t *testing.T) {
	e := setupEnv(t, 0, "")

	out, code := runCLI(t, "--config", e.config, "cycles", "--year", "2023")
	if code != 0 {
		t.Fatalf("exit code = %d: %s", code, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 73 {
		t.Fatalf("got %d cycle dates, want 73", len(lines))
	}
	if lines[0] != "2023-01-01" || lines[1] != "2023-01-06" || lines[72] != "2023-12-27" {
		t.Errorf("unexpected dates: first %s, second %s, last %s", lines[0], lines[1], lines[72])
	}
}

func TestHistoryCommand_Empty(t *testing.T) {
	e := setupEnv(t, 0, "")
	out, code := runCLI(t, "--config", e.config, "history", "--experiment", "nobody")
	if code != 0 || !strings.Contains(out, "No runs recorded.") {
		t.Errorf("code = %d, output = %s", code, out)
	}
}

func TestLeaseRelease(t *testing.T) {
	e := setupEnv(t, 0, "")

	out, code := runCLI(t, "--config", e.config, "lease", "release", e.exp, "2024-01-01")
	if code != 0 {
		t.Fatalf("exit code = %d: %s", code, out)
	}
	if !strings.Contains(out, "No lease held for "+e.exp+"/2024-01-01") {
		t.Errorf("output = %s", out)
	}
}

func TestConfigError(t *testing.T) {
	out, code := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yml"), "cycles")
	if code != 1 || !strings.Contains(out, "read config") {
		t.Errorf("code = %d, output = %s", code, out)
	}
}
