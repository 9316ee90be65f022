package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/runtime"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

var (
	buildOnce  sync.Once
	binaryPath string
	buildErr   error
)

// configFixturePath returns the path to the config package fixtures
func configFixturePath(t *testing.T, filename string) string {
	t.Helper()
	return absPath(t, filepath.Join("..", "..", "internal", "config", "testdata", filename))
}

// fixturePath returns the path to this package's fixtures
func fixturePath(t *testing.T, filename string) string {
	t.Helper()
	return absPath(t, filepath.Join("testdata", filename))
}

func absPath(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs path: %v", err)
	}
	return abs
}

// buildCLI builds the binary once for the whole test run.
func buildCLI(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "carexplorer-cli")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(dir, "carexplorer")
		cmd := exec.Command("go", "build", "-o", binaryPath, ".")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			buildErr = err
			binaryPath = stderr.String()
		}
	})
	if buildErr != nil {
		t.Fatalf("failed to build CLI: %v\n%s", buildErr, binaryPath)
	}
	return binaryPath
}

// runCLI runs the CLI binary in dir and returns stdout, stderr, and exit code
func runCLI(t *testing.T, dir string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmd := exec.Command(buildCLI(t), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CAREXPLORER_LOG_FORMAT=json")
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("failed to run CLI: %v", err)
		}
	}
	return stdout, stderr, exitCode
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, t.TempDir(), "--help")

	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, want := range []string{"carexplorer", "validate", "run", "watch", "columns"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, t.TempDir(), "version")
	if exitCode != 0 || !strings.Contains(stdout, "Version: dev") {
		t.Errorf("exit %d, stdout %q", exitCode, stdout)
	}
}

func TestCLI_Columns(t *testing.T) {
	stdout, _, exitCode := runCLI(t, t.TempDir(), "columns")
	if exitCode != 0 {
		t.Fatalf("exit code %d", exitCode)
	}
	for _, want := range []string{"Miles_per_Gallon", "quantitative", "Origin", "nominal"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("columns output missing %q:\n%s", want, stdout)
		}
	}
}

func TestCLI_Validate(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"valid yaml", configFixturePath(t, "valid-dashboard.yaml"), ExitSuccess, "format: yaml", ""},
		{"valid json", configFixturePath(t, "valid-dashboard.json"), ExitSuccess, "format: json", ""},
		{"invalid json", configFixturePath(t, "invalid-json.json"), ExitParseError, "", "Parse errors"},
		{"invalid yaml", configFixturePath(t, "invalid-yaml.yaml"), ExitParseError, "", "Parse errors"},
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml"), ExitParseError, "", "failed to read file"},
		{"schema violation", configFixturePath(t, "invalid-schema-missing-dashboard.yaml"), ExitValidationError, "", "Validation errors"},
		{"unknown column", configFixturePath(t, "invalid-columns.yaml"), ExitValidationError, "", "Validation errors"},
		{"unknown output", fixturePath(t, "unknown-output.yaml"), ExitValidationError, "", "unknown output type \"webhook\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, exitCode := runCLI(t, t.TempDir(), "validate", tt.file)
			if exitCode != tt.wantCode {
				t.Fatalf("exit code = %d, want %d\nstderr: %s", exitCode, tt.wantCode, stderr)
			}
			if tt.wantOut != "" && !strings.Contains(stdout, tt.wantOut) {
				t.Errorf("stdout missing %q:\n%s", tt.wantOut, stdout)
			}
			if tt.wantErr != "" && !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, stderr)
			}
		})
	}
}

func TestCLI_RunConsole(t *testing.T) {
	stdout, stderr, exitCode := runCLI(t, t.TempDir(), "run", fixturePath(t, "run-console.yaml"))
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d\nstderr: %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "console-check") {
		t.Errorf("console output missing dashboard name:\n%s", stdout)
	}
	if !strings.Contains(stderr, "evaluated successfully") {
		t.Errorf("stderr missing run summary:\n%s", stderr)
	}
	if strings.Contains(stdout, `"msg"`) {
		t.Error("logs must not be written to stdout")
	}
}

func TestCLI_RunWritesFiles(t *testing.T) {
	dir := t.TempDir()
	_, stderr, exitCode := runCLI(t, dir, "run", fixturePath(t, "run-files.yaml"))
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d\nstderr: %s", exitCode, stderr)
	}
	for _, name := range []string{"files.csv", "files.arrow", "files-Weight.png"} {
		info, err := os.Stat(filepath.Join(dir, "out", name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestCLI_RunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	_, stderr, exitCode := runCLI(t, dir, "run", "--dry-run", fixturePath(t, "run-files.yaml"))
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d\nstderr: %s", exitCode, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("dry run created outputs: %v", err)
	}
	if !strings.Contains(stderr, "dry-run") {
		t.Errorf("stderr should mention dry-run:\n%s", stderr)
	}
}

func TestCLI_RunDryRunFromEnv(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command(buildCLI(t), "run", fixturePath(t, "run-files.yaml"))
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CAREXPLORER_DRY_RUN=true")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("CAREXPLORER_DRY_RUN should skip outputs: %v", err)
	}
}

func TestCLI_RunEmptyResult(t *testing.T) {
	_, stderr, exitCode := runCLI(t, t.TempDir(), "run", fixturePath(t, "run-empty.yaml"))
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d, want 0 for an empty result\nstderr: %s", exitCode, stderr)
	}
	if !strings.Contains(stderr, "no data") {
		t.Errorf("stderr missing empty notice:\n%s", stderr)
	}
}

func TestCLI_RunLoadFailure(t *testing.T) {
	_, stderr, exitCode := runCLI(t, t.TempDir(), "run", fixturePath(t, "run-missing-csv.yaml"))
	if exitCode != ExitLoadFailure {
		t.Fatalf("exit code = %d, want %d\nstderr: %s", exitCode, ExitLoadFailure, stderr)
	}
	if !strings.Contains(stderr, "LOAD_FAILED") {
		t.Errorf("stderr missing error code:\n%s", stderr)
	}
}

func TestCLI_RunUnknownOutput(t *testing.T) {
	_, stderr, exitCode := runCLI(t, t.TempDir(), "run", fixturePath(t, "unknown-output.yaml"))
	if exitCode != ExitValidationError {
		t.Fatalf("exit code = %d, want %d\nstderr: %s", exitCode, ExitValidationError, stderr)
	}
}

func TestCLI_LogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	_, stderr, exitCode := runCLI(t, dir, "run", "--log-file", logPath, fixturePath(t, "run-console.yaml"))
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d\nstderr: %s", exitCode, stderr)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "run completed") {
		t.Errorf("log file missing run completion:\n%s", data)
	}
}

func TestCLI_InvalidLogFormat(t *testing.T) {
	_, stderr, exitCode := runCLI(t, t.TempDir(), "--log-format", "xml", "columns")
	if exitCode != ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", exitCode, ExitRuntimeError)
	}
	if !strings.Contains(stderr, "unknown log format") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name   string
		result *dashboard.RunResult
		err    error
		want   int
	}{
		{"success", &dashboard.RunResult{Status: dashboard.StatusSuccess}, nil, ExitSuccess},
		{"empty", &dashboard.RunResult{Status: dashboard.StatusEmpty}, nil, ExitSuccess},
		{"load", &dashboard.RunResult{Error: &dashboard.RunError{Code: runtime.ErrCodeLoadFailed}}, errhandling.NewNotFoundError("x", "missing", nil), ExitLoadFailure},
		{"invalid", &dashboard.RunResult{Error: &dashboard.RunError{Code: runtime.ErrCodeInvalidInput}}, runtime.ErrNilDashboard, ExitValidationError},
		{"output", &dashboard.RunResult{Error: &dashboard.RunError{Code: runtime.ErrCodeOutputFailed}}, errhandling.NewRenderError("x", "failed", nil), ExitRuntimeError},
		{"no result", nil, runtime.ErrNilDashboard, ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.result, tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
