// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/invowk/asmconflicts/internal/issue"
	"github.com/invowk/asmconflicts/internal/report"
	"github.com/invowk/asmconflicts/internal/testutil"
	"github.com/invowk/asmconflicts/internal/testutil/clrmetatest"
	"github.com/invowk/asmconflicts/pkg/assembly"
)

const ecmaToken = "b77a5c561934e089"

// isolate points configuration lookup at empty directories.
// Callers must not run in parallel.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.MustSetenv(t, "XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	testutil.MustChdir(t, dir)
	return dir
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	c := newRootCommand(&rootOptions{})
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs(args)

	err = c.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// writeDiamond lays out App.exe -> {A 1.0, B 1.0}, B -> A 2.0 (signed)
// with only A 1.0 on disk.
func writeDiamond(t *testing.T, dir string) string {
	t.Helper()
	id := assembly.MustParseIdentity

	app := filepath.Join(dir, "App.exe")
	clrmetatest.NewImage(id("App, Version=1.0.0.0"),
		clrmetatest.WithReference(id("A, Version=1.0.0.0")),
		clrmetatest.WithReference(id("B, Version=1.0.0.0")),
	).MustWriteFile(t, app)
	clrmetatest.NewImage(id("A, Version=1.0.0.0")).MustWriteFile(t, filepath.Join(dir, "A.dll"))
	clrmetatest.NewImage(id("B, Version=1.0.0.0"),
		clrmetatest.WithReference(id("A, Version=2.0.0.0, PublicKeyToken="+ecmaToken)),
	).MustWriteFile(t, filepath.Join(dir, "B.dll"))

	return app
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2026-06-15T10:00:00Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got, want := getVersionString(), "dev (built from source)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestRoot_NoArguments(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 || exitErr.Err != nil {
		t.Fatalf("error = %v, want a silent ExitError with code 1", err)
	}
	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "--assembly") {
		t.Errorf("expected usage on stdout, got:\n%s", stdout)
	}
}

func TestRoot_HelpFlag(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, "-?")
	if err != nil {
		t.Fatalf("-? error = %v", err)
	}
	if !strings.Contains(stdout, "--include-system") {
		t.Errorf("expected help on stdout, got:\n%s", stdout)
	}
}

func TestRoot_UsageErrors(t *testing.T) {
	dir := isolate(t)
	app := writeDiamond(t, dir)

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"missing assembly", []string{"-s"}, `required flag "assembly" not set`},
		{"unknown flag", []string{"-a", app, "--frobnicate"}, "unknown flag"},
		{"missing flag value", []string{"-a"}, "flag needs an argument"},
		{"positional argument", []string{"-a", app, "extra"}, `unexpected argument "extra"`},
		{"bad format", []string{"-a", app, "-o", "xml"}, "invalid output format"},
		{"bad policy", []string{"-a", app, "--policy", "loose"}, "invalid match policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			var usageErr *UsageError
			if !errors.As(err, &usageErr) {
				t.Fatalf("error = %v (%T), want *UsageError", err, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should contain %q", err, tt.contains)
			}
			if !strings.Contains(usageErr.Usage, "Usage:") {
				t.Errorf("UsageError should carry the usage text, got %q", usageErr.Usage)
			}
		})
	}
}

func TestRoot_TextReport(t *testing.T) {
	dir := isolate(t)
	app := writeDiamond(t, dir)

	stdout, _, err := execute(t, "-a", app)
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	want := "A has conflicts. Reference paths\n" +
		"  (1.0.0.0, ) App => A\n" +
		"  (2.0.0.0, " + ecmaToken + ") App => B => A\n" +
		"\n"
	if stdout != want {
		t.Errorf("stdout =\n%q\nwant\n%q", stdout, want)
	}
}

func TestRoot_RedirectPolicy(t *testing.T) {
	dir := isolate(t)
	app := writeDiamond(t, dir)

	stdout, _, err := execute(t, "-a", app, "--policy", "redirect")
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want no conflicts under redirect", stdout)
	}
}

func TestRoot_ConfigDrivesDefaults(t *testing.T) {
	dir := isolate(t)
	app := writeDiamond(t, dir)
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), []byte(`output: format: "json"`+"\n"))

	stdout, _, err := execute(t, "-a", app)
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if rep.Summary.Conflicts != 1 || rep.Conflicts[0].Name != "A" {
		t.Errorf("unexpected report %+v", rep)
	}

	// The flag wins over the file.
	stdout, _, err = execute(t, "-a", app, "-o", "text")
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if !strings.HasPrefix(stdout, "A has conflicts.") {
		t.Errorf("-o text should override the config, got:\n%s", stdout)
	}
}

func TestRoot_VerboseSummary(t *testing.T) {
	dir := isolate(t)
	app := writeDiamond(t, dir)

	_, stderr, err := execute(t, "-a", app, "-v")
	if err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if !strings.Contains(stderr, "4 assemblies, 1 conflicts, 1 unresolved references") {
		t.Errorf("stderr should carry the run summary, got:\n%s", stderr)
	}
	if !strings.Contains(stderr, "DEBU") {
		t.Errorf("stderr should carry debug logs, got:\n%s", stderr)
	}
}

func TestRoot_MissingAssembly(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "-a", "nope.exe")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.IssueId != issue.AssemblyNotFoundId {
		t.Fatalf("error = %v, want an actionable AssemblyNotFound error", err)
	}
}

func TestRoot_InvalidConfigFile(t *testing.T) {
	dir := isolate(t)
	bad := filepath.Join(dir, "bad.cue")
	testutil.MustWriteFile(t, bad, []byte(`output: format: "xml"`+"\n"))

	_, _, err := execute(t, "--config", bad, "-a", "App.exe")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.IssueId != issue.ConfigLoadFailedId {
		t.Fatalf("error = %v, want an actionable ConfigLoadFailed error", err)
	}
}

func TestConfig_ShowAndInit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	dir := isolate(t)

	stdout, _, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"// source: defaults", `policy: "exact"`, `extensions: [".exe", ".dll"]`} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	created := filepath.Join(dir, "xdg", "asmconflicts", "config.cue")
	if _, err := os.Stat(created); err != nil {
		t.Fatalf("config init did not create %s: %v", created, err)
	}

	stdout, _, err = execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(stdout) != created {
		t.Errorf("config path = %q, want %q", stdout, created)
	}

	if _, _, err := execute(t, "config", "init"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("second config init error = %v, want fs.ErrExist", err)
	}
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	notFound := issue.NewErrorContext().
		WithOperation("read assembly").
		WithResource("App.exe").
		WithSuggestion("Check the path passed to --assembly").
		WithIssue(issue.AssemblyNotFoundId).
		Wrap(fs.ErrNotExist).
		BuildError()

	tests := []struct {
		name     string
		err      error
		verbose  bool
		contains []string
		excludes []string
		empty    bool
	}{
		{name: "silent exit", err: &ExitError{Code: 1}, empty: true},
		{
			name:     "usage error",
			err:      &UsageError{Err: errors.New("unknown flag: --x"), Usage: "Usage:\n  asmconflicts\n"},
			contains: []string{"Error:", "unknown flag: --x", "Usage:\n  asmconflicts"},
		},
		{
			name:     "actionable",
			err:      notFound,
			contains: []string{"failed to read assembly: App.exe", "• Check the path"},
			excludes: []string{"Things you can try"},
		},
		{
			name:     "actionable verbose",
			err:      notFound,
			verbose:  true,
			contains: []string{"Error chain:", "Assembly not found", "Things you can try"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			printError(&buf, tt.err, tt.verbose, "notty")
			got := buf.String()

			if tt.empty {
				if got != "" {
					t.Errorf("printError() wrote %q, want nothing", got)
				}
				return
			}
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("output missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("output should not contain %q:\n%s", s, got)
				}
			}
		})
	}
}
