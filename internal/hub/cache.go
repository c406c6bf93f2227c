package hub

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const repoDirPrefix = "models--"

// repoDir is the cache directory for repo, e.g. models--openai-community--gpt2.
func (r *Resolver) repoDir(repo string) string {
	return filepath.Join(r.opts.CacheDir, repoDirPrefix+strings.ReplaceAll(repo, "/", "--"))
}

func (r *Resolver) resolveCached(repo string) (Location, bool) {
	if r.opts.CacheDir == "" {
		return Location{}, false
	}
	dir := r.repoDir(repo)
	snapshot, ok := pickSnapshot(dir, r.opts.Revision)
	if !ok {
		return Location{}, false
	}
	return Location{
		Name:          repo,
		Source:        SourceCache,
		TokenizerPath: filepath.Join(snapshot, TokenizerFile),
		ConfigPath:    existing(filepath.Join(snapshot, TokenizerConfigFile)),
	}, true
}

// pickSnapshot prefers the commit named by refs/<revision>, then a snapshot
// named after the revision itself, then for "main" the newest snapshot that
// holds a tokenizer.
func pickSnapshot(repoDir, revision string) (string, bool) {
	snapshots := filepath.Join(repoDir, "snapshots")
	if ref, err := os.ReadFile(filepath.Join(repoDir, "refs", revision)); err == nil {
		dir := filepath.Join(snapshots, strings.TrimSpace(string(ref)))
		if existing(filepath.Join(dir, TokenizerFile)) != "" {
			return dir, true
		}
	}
	dir := filepath.Join(snapshots, revision)
	if existing(filepath.Join(dir, TokenizerFile)) != "" {
		return dir, true
	}
	if revision != "main" {
		return "", false
	}
	all := listSnapshots(snapshots)
	if len(all) == 0 {
		return "", false
	}
	return all[0].path, true
}

type snapshot struct {
	name    string
	path    string
	modUnix int64
}

// listSnapshots returns snapshots holding a tokenizer, newest first.
func listSnapshots(dir string) []snapshot {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(filepath.Join(path, TokenizerFile))
		if err != nil {
			continue
		}
		out = append(out, snapshot{name: e.Name(), path: path, modUnix: info.ModTime().UnixNano()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].modUnix != out[j].modUnix {
			return out[i].modUnix > out[j].modUnix
		}
		return out[i].name < out[j].name
	})
	return out
}

// CachedModel is a repository with at least one usable snapshot in the cache.
type CachedModel struct {
	Repo     string
	Snapshot string
	Path     string
}

// CachedModels lists cached repositories that hold a tokenizer.json, sorted by repo.
func (r *Resolver) CachedModels() ([]CachedModel, error) {
	if r.opts.CacheDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(r.opts.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []CachedModel
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), repoDirPrefix) {
			continue
		}
		repo := strings.ReplaceAll(strings.TrimPrefix(e.Name(), repoDirPrefix), "--", "/")
		dir, ok := pickSnapshot(filepath.Join(r.opts.CacheDir, e.Name()), r.opts.Revision)
		if !ok {
			continue
		}
		out = append(out, CachedModel{
			Repo:     repo,
			Snapshot: filepath.Base(dir),
			Path:     filepath.Join(dir, TokenizerFile),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Repo < out[j].Repo })
	return out, nil
}
