package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/goleak"

	synccit "github.com/synccit/synccit"
)

func TestProjectCacheMiss(t *testing.T) {
	pc := NewProjectCache(nil)
	defer pc.Close()

	if got := pc.Cached("/nonexistent/path"); got != nil {
		t.Errorf("expected nil for cache miss, got %+v", got)
	}
}

func TestProjectCacheExpired(t *testing.T) {
	pc := newProjectCache(nil, time.Millisecond, time.Millisecond)
	defer pc.Close()

	pc.cache.Set("/p", &synccit.ProjectSummary{Path: "/p"}, ttlcache.DefaultTTL)
	time.Sleep(10 * time.Millisecond)

	if got := pc.Cached("/p"); got != nil {
		t.Errorf("expected nil for expired entry, got %+v", got)
	}
}

func TestProjectCacheCloseStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	for i := 0; i < 50; i++ {
		NewProjectCache(nil).Close()
	}
	pc := NewProjectCache(nil)
	pc.Close()
	pc.Close()
}

func TestProjectSummary(t *testing.T) {
	pc := NewProjectCache(nil)
	defer pc.Close()

	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "package.json"), `{"scripts":{"test":"jest","build":"tsc"}}`)
	mkfile(t, filepath.Join(dir, "pyproject.toml"), "[project]\nname = \"demo\"\nrequires-python = \">=3.10\"\n")
	mkfile(t, filepath.Join(dir, "Makefile"), "VAR := 1\nall: build\nbuild:\n\tgo build\n.PHONY: all\n")
	mkfile(t, filepath.Join(dir, "yarn.lock"), "")

	s, err := pc.Summary(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Manifests["package.json scripts"]; got != "build: tsc, test: jest" {
		t.Errorf("unexpected scripts %q", got)
	}
	if got := s.Manifests["pyproject.toml"]; got != `name = "demo", requires-python = ">=3.10"` {
		t.Errorf("unexpected pyproject %q", got)
	}
	if got := s.Manifests["Makefile targets"]; got != "all, build" {
		t.Errorf("unexpected make targets %q", got)
	}
	if s.PackageManager != "yarn" {
		t.Errorf("expected yarn, got %q", s.PackageManager)
	}
	if !strings.Contains(strings.Join(s.Listing, " "), "package.json") {
		t.Errorf("listing missing package.json: %v", s.Listing)
	}

	if cached := pc.Cached(dir); cached != s {
		t.Error("expected the summary to be cached")
	}
	again, err := pc.Summary(context.Background(), dir)
	if err != nil || again != s {
		t.Errorf("expected cached summary on second call (%v)", err)
	}

	pc.Invalidate(dir)
	if pc.Cached(dir) != nil {
		t.Error("expected entry to be dropped")
	}
}

func TestProjectSummaryErrors(t *testing.T) {
	pc := NewProjectCache(nil)
	defer pc.Close()

	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "f"), "")
	if _, err := pc.Summary(context.Background(), filepath.Join(dir, "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := pc.Summary(context.Background(), filepath.Join(dir, "f")); !errors.Is(err, ErrNotDir) {
		t.Errorf("expected ErrNotDir, got %v", err)
	}
}

func TestExtractCargo(t *testing.T) {
	got := extractCargo("[package]\nname = \"tool\"\nedition = \"2021\"\n\n[[bin]]\nname = \"tool-cli\"\n")
	want := `name = "tool", edition = "2021", bin = "tool-cli"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if extractCargo("not = [valid") != "" {
		t.Error("expected empty result for invalid toml")
	}
}

func TestExtractRequirements(t *testing.T) {
	got := extractRequirements("# pinned\nflask==3.0\n-r base.txt\n\nrequests\n")
	if got != "flask==3.0 requests" {
		t.Errorf("got %q", got)
	}
}

func TestParseStagedFiles(t *testing.T) {
	got := parseStagedFiles("M\tmain.go\nA\tnew.go\nR100\told.go\trenamed.go\n")
	want := []string{"M:main.go", "A:new.go", "R:old.go→renamed.go"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", got, want)
	}
	if parseStagedFiles("") != nil {
		t.Error("expected nil for empty input")
	}
}

func TestDetectPackageManagerFallsBackToGitRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	mkfile(t, filepath.Join(root, "Cargo.lock"), "")
	mkfile(t, filepath.Join(sub, "x"), "")
	if got := detectPackageManager(sub, root); got != "cargo" {
		t.Errorf("expected cargo, got %q", got)
	}
	if got := detectPackageManager(sub, ""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
