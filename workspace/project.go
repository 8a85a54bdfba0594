package workspace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	synccit "github.com/synccit/synccit"
)

const (
	projectCacheTTL  = 1 * time.Hour
	pruneInterval    = 10 * time.Minute
	gatherTimeout    = 5 * time.Second
	manifestMaxBytes = 512
	listingMaxNames  = 200
)

// ProjectCache holds project summaries keyed by absolute directory.
type ProjectCache struct {
	cache  *ttlcache.Cache[string, *synccit.ProjectSummary]
	logger *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewProjectCache creates a cache and starts its expiration loop.
func NewProjectCache(logger *zap.Logger) *ProjectCache {
	return newProjectCache(logger, projectCacheTTL, pruneInterval)
}

func newProjectCache(logger *zap.Logger, ttl, prune time.Duration) *ProjectCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	pc := &ProjectCache{
		cache: ttlcache.New[string, *synccit.ProjectSummary](
			ttlcache.WithTTL[string, *synccit.ProjectSummary](ttl),
			ttlcache.WithDisableTouchOnHit[string, *synccit.ProjectSummary](),
		),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go pc.prune(prune)
	return pc
}

// prune evicts expired entries until Close. Expired entries are already
// invisible to Get; this only releases their memory.
func (pc *ProjectCache) prune(every time.Duration) {
	defer close(pc.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-pc.stop:
			return
		case <-t.C:
			pc.cache.DeleteExpired()
		}
	}
}

// Close stops the expiration loop and waits for it to exit. It is safe to
// call more than once.
func (pc *ProjectCache) Close() {
	pc.stopOnce.Do(func() { close(pc.stop) })
	<-pc.done
}

// Cached returns the summary for dir if present and fresh.
func (pc *ProjectCache) Cached(dir string) *synccit.ProjectSummary {
	item := pc.cache.Get(dir)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Invalidate drops the entry for dir.
func (pc *ProjectCache) Invalidate(dir string) {
	pc.cache.Delete(dir)
}

// Summary returns the cached summary for dir or gathers a new one.
func (pc *ProjectCache) Summary(ctx context.Context, dir string) (*synccit.ProjectSummary, error) {
	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDir)
	}
	if s := pc.Cached(dir); s != nil {
		return s, nil
	}
	return pc.Gather(ctx, dir), nil
}

// Gather collects the summary for dir within a fixed budget and caches it.
// Parts that fail or run out of time are left empty.
func (pc *ProjectCache) Gather(ctx context.Context, dir string) *synccit.ProjectSummary {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	s := &synccit.ProjectSummary{Path: dir, Manifests: map[string]string{}}
	var gitRoot string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Listing = listNames(dir)
		return nil
	})
	g.Go(func() error {
		gitRoot = strings.TrimSpace(runCmd(gctx, dir, "git", "rev-parse", "--show-toplevel"))
		return nil
	})
	g.Go(func() error {
		s.Staged = parseStagedFiles(runCmd(gctx, dir, "git", "diff", "--cached", "--name-status"))
		return nil
	})
	g.Go(func() error {
		gatherManifests(dir, s.Manifests)
		return nil
	})
	_ = g.Wait()

	if gitRoot != "" && gitRoot != dir {
		s.GitRoot = gitRoot
		s.GitRootListing = listNames(gitRoot)
		s.GitManifests = map[string]string{}
		gatherManifests(gitRoot, s.GitManifests)
	} else if gitRoot != "" {
		s.GitRoot = gitRoot
	}
	s.PackageManager = detectPackageManager(dir, gitRoot)

	pc.cache.Set(dir, s, ttlcache.DefaultTTL)
	pc.logger.Debug("gathered project summary", zap.String("path", dir), zap.String("git_root", gitRoot))
	return s
}

// listNames returns the sorted entry names of dir, dot entries included.
func listNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) > listingMaxNames {
		names = names[:listingMaxNames]
	}
	return names
}

// runCmd returns the stdout of a helper command, or "" on any failure.
func runCmd(ctx context.Context, dir, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

// manifestExtractors maps manifest file names to the summary they contribute.
var manifestExtractors = []struct {
	file    string
	label   string
	extract func(string) string
}{
	{"package.json", "package.json scripts", extractPackageScripts},
	{"Makefile", "Makefile targets", extractMakeTargets},
	{"Cargo.toml", "Cargo.toml", extractCargo},
	{"pyproject.toml", "pyproject.toml", extractPyproject},
	{"requirements.txt", "requirements.txt", extractRequirements},
	{"go.mod", "go.mod", extractGoMod},
}

func gatherManifests(dir string, out map[string]string) {
	for _, m := range manifestExtractors {
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if v := m.extract(string(data)); v != "" {
			out[m.label] = truncate(v, manifestMaxBytes)
		}
	}
}

func extractPackageScripts(content string) string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil || len(pkg.Scripts) == 0 {
		return ""
	}
	names := make([]string, 0, len(pkg.Scripts))
	for k := range pkg.Scripts {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + ": " + pkg.Scripts[k]
	}
	return strings.Join(parts, ", ")
}

func extractMakeTargets(content string) string {
	var targets []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '\t' || line[0] == '#' || line[0] == '.' {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 || (idx+1 < len(line) && line[idx+1] == '=') {
			continue
		}
		target := strings.TrimSpace(line[:idx])
		if strings.ContainsAny(target, "$%= ") || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return strings.Join(targets, ", ")
}

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Edition string `toml:"edition"`
	} `toml:"package"`
	Bin []struct {
		Name string `toml:"name"`
	} `toml:"bin"`
}

func extractCargo(content string) string {
	var m cargoManifest
	if _, err := toml.Decode(content, &m); err != nil {
		return ""
	}
	var parts []string
	if m.Package.Name != "" {
		parts = append(parts, fmt.Sprintf("name = %q", m.Package.Name))
	}
	if m.Package.Edition != "" {
		parts = append(parts, fmt.Sprintf("edition = %q", m.Package.Edition))
	}
	for _, b := range m.Bin {
		if b.Name != "" {
			parts = append(parts, fmt.Sprintf("bin = %q", b.Name))
		}
	}
	return strings.Join(parts, ", ")
}

type pyprojectManifest struct {
	Project struct {
		Name           string   `toml:"name"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
}

func extractPyproject(content string) string {
	var m pyprojectManifest
	if _, err := toml.Decode(content, &m); err != nil {
		return ""
	}
	var parts []string
	if m.Project.Name != "" {
		parts = append(parts, fmt.Sprintf("name = %q", m.Project.Name))
	}
	if m.Project.RequiresPython != "" {
		parts = append(parts, fmt.Sprintf("requires-python = %q", m.Project.RequiresPython))
	}
	if len(m.Project.Dependencies) > 0 {
		parts = append(parts, "dependencies = "+strings.Join(m.Project.Dependencies, " "))
	}
	return strings.Join(parts, ", ")
}

func extractRequirements(content string) string {
	var deps []string
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		deps = append(deps, line)
	}
	return strings.Join(deps, " ")
}

func extractGoMod(content string) string {
	var parts []string
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "module ") || (strings.HasPrefix(line, "go ") && !strings.HasPrefix(line, "go.")) {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

var lockfiles = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"poetry.lock", "poetry"},
	{"uv.lock", "uv"},
	{"Pipfile.lock", "pipenv"},
	{"Cargo.lock", "cargo"},
	{"go.sum", "go"},
}

// detectPackageManager checks dir first, then the git root.
func detectPackageManager(dir, gitRoot string) string {
	for _, d := range []string{dir, gitRoot} {
		if d == "" {
			continue
		}
		for _, lf := range lockfiles {
			if _, err := os.Stat(filepath.Join(d, lf.file)); err == nil {
				return lf.manager
			}
		}
	}
	return ""
}

// parseStagedFiles turns `git diff --cached --name-status` output into
// "M:file" entries; renames and copies become "R:old→new".
func parseStagedFiles(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		if len(status) > 1 && (status[0] == 'R' || status[0] == 'C') {
			status = status[:1]
		}
		if (status == "R" || status == "C") && len(fields) >= 3 {
			out = append(out, status+":"+fields[1]+"→"+fields[2])
			continue
		}
		out = append(out, status+":"+fields[1])
	}
	return out
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "..."
}
