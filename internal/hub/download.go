package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

func (r *Resolver) fileURL(repo, file string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", r.opts.Endpoint, repo, url.PathEscape(r.opts.Revision), file)
}

func (r *Resolver) download(ctx context.Context, repo, token string) (Location, error) {
	r.log.Info("downloading tokenizer", "repo", repo, "revision", r.opts.Revision, "endpoint", r.opts.Endpoint)

	resp, err := r.get(ctx, r.fileURL(repo, TokenizerFile), token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Location{}, ctxErr
		}
		return Location{}, fmt.Errorf("%w: %s: hub unreachable: %v", ErrModelNotFound, repo, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case isAuthStatus(resp.StatusCode):
		return Location{}, &AccessError{Repo: repo, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return Location{}, fmt.Errorf("%w: %s has no %s at %s", ErrModelNotFound, repo, TokenizerFile, r.opts.Revision)
	default:
		return Location{}, fmt.Errorf("%w: %s: hub returned HTTP %d", ErrModelNotFound, repo, resp.StatusCode)
	}

	commit := resp.Header.Get("X-Repo-Commit")
	if commit == "" || strings.ContainsAny(commit, `/\`) {
		commit = r.opts.Revision
	}
	repoDir := r.repoDir(repo)
	snapshot := filepath.Join(repoDir, "snapshots", commit)
	tokPath := filepath.Join(snapshot, TokenizerFile)
	if err := writeAtomic(tokPath, resp.Body); err != nil {
		return Location{}, fmt.Errorf("cache %s: %w", repo, err)
	}
	if commit != r.opts.Revision {
		if err := writeAtomic(filepath.Join(repoDir, "refs", r.opts.Revision), strings.NewReader(commit)); err != nil {
			r.log.Warn("failed to record revision ref", "repo", repo, "error", err)
		}
	}

	loc := Location{Name: repo, Source: SourceDownload, TokenizerPath: tokPath}
	cfgPath := filepath.Join(snapshot, TokenizerConfigFile)
	if err := r.fetchOptional(ctx, repo, TokenizerConfigFile, token, cfgPath); err != nil {
		r.log.Debug("tokenizer config not fetched", "repo", repo, "error", err)
	} else {
		loc.ConfigPath = cfgPath
	}
	return loc, nil
}

func (r *Resolver) fetchOptional(ctx context.Context, repo, file, token, dst string) error {
	resp, err := r.get(ctx, r.fileURL(repo, file), token)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return writeAtomic(dst, resp.Body)
}

func (r *Resolver) get(ctx context.Context, rawURL, token string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "tokbridge")
	return r.client.Do(req)
}

// writeAtomic writes src to path through a temporary file in the same directory.
func writeAtomic(path string, src io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp.Name(), err)
	}
	return nil
}
