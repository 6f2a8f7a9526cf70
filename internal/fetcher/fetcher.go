// Package fetcher keeps local copies of the devservices directory of remote
// dependency repositories.
//
// Repositories are partially cloned with a sparse checkout of devservices/
// into <cache>/<repo_name>. Later fetches update the copy in place. Network
// operations are retried with the configured retry.Policy and concurrent
// fetches of the same repository share one git invocation.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"devservices/internal/config"
	"devservices/internal/retry"
	"devservices/pkg/logging"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
)

const subsystem = "Fetcher"

// lockRetryDelay is how often a fetch waiting on another process retries
// the repository lock.
const lockRetryDelay = 100 * time.Millisecond

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

var partialCloneConfig = [][2]string{
	{"protocol.version", "2"},
	{"extensions.partialClone", "true"},
	{"core.sparseCheckout", "true"},
}

// FetchError reports a remote that could not be fetched.
type FetchError struct {
	Repo   string
	Branch string
	Link   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch %s@%s from %s: %v", e.Repo, e.Branch, e.Link, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher fetches remote dependency configs into a cache directory.
type Fetcher struct {
	cacheDir string
	policy   retry.Policy
	group    singleflight.Group

	mu      sync.Mutex
	repos   map[string]*sync.Mutex
	fetched map[string]string
}

// New returns a Fetcher caching repositories under cacheDir.
func New(cacheDir string, policy retry.Policy) *Fetcher {
	return &Fetcher{
		cacheDir: cacheDir,
		policy:   policy,
		repos:    make(map[string]*sync.Mutex),
		fetched:  make(map[string]string),
	}
}

// RepoPath is where a remote repository is checked out.
func (f *Fetcher) RepoPath(repoName string) string {
	return filepath.Join(f.cacheDir, repoName)
}

func (f *Fetcher) repoLock(repoName string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.repos[repoName]
	if !ok {
		l = &sync.Mutex{}
		f.repos[repoName] = l
	}
	return l
}

// lockRepoFile takes <cache>/<repo>.lock so only one devservices process
// updates a checkout at a time.
func (f *Fetcher) lockRepoFile(ctx context.Context, repoName string) (func(), error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	fl := flock.New(filepath.Join(f.cacheDir, repoName+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", repoName, err)
	}
	if !locked {
		logging.Info(subsystem, "Waiting for another devservices process fetching %s", repoName)
		if _, err := fl.TryLockContext(ctx, lockRetryDelay); err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", repoName, err)
		}
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logging.Warn(subsystem, "Failed to unlock %s: %v", repoName, err)
		}
	}, nil
}

// Fetch makes sure the remote's devservices directory is present and current
// and returns the local repository path. A remote is fetched at most once per
// Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rc config.RemoteConfig) (string, error) {
	key := rc.Key()

	f.mu.Lock()
	path, ok := f.fetched[key]
	f.mu.Unlock()
	if ok {
		return path, nil
	}

	v, err, shared := f.group.Do(key, func() (interface{}, error) {
		lock := f.repoLock(rc.RepoName)
		lock.Lock()
		defer lock.Unlock()

		unlock, err := f.lockRepoFile(ctx, rc.RepoName)
		if err != nil {
			return "", err
		}
		defer unlock()

		path, err := f.fetch(ctx, rc)
		if err != nil {
			return "", err
		}
		f.mu.Lock()
		f.fetched[key] = path
		f.mu.Unlock()
		return path, nil
	})
	if shared {
		logging.Debug(subsystem, "Shared in-flight fetch of %s", key)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Resolve fetches the remote and loads its service config.
func (f *Fetcher) Resolve(ctx context.Context, rc config.RemoteConfig) (*config.Service, error) {
	path, err := f.Fetch(ctx, rc)
	if err != nil {
		return nil, err
	}
	return config.LoadService(path)
}

// Clean removes every cached repository.
func (f *Fetcher) Clean() error {
	f.mu.Lock()
	f.fetched = make(map[string]string)
	f.mu.Unlock()

	logging.Info(subsystem, "Removing dependency cache %s", f.cacheDir)
	if err := os.RemoveAll(f.cacheDir); err != nil {
		return fmt.Errorf("failed to remove dependency cache: %w", err)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, rc config.RemoteConfig) (string, error) {
	dst := f.RepoPath(rc.RepoName)
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", &FetchError{Repo: rc.RepoName, Branch: rc.Branch, Link: rc.RepoLink, Err: err}
	}

	policy := f.policy.Named("fetch " + rc.Key())
	err := policy.Do(ctx, func(ctx context.Context) error {
		if validCheckout(dst) {
			return f.update(ctx, rc, dst)
		}
		return f.clone(ctx, rc, dst)
	})
	if err == nil && !validCheckout(dst) {
		err = fmt.Errorf("%s has no %s", rc.RepoLink, filepath.Join(config.DirName, config.ConfigFileName))
	}
	if err != nil {
		logging.Error(subsystem, err, "Failed to fetch %s", rc.Key())
		return "", &FetchError{Repo: rc.RepoName, Branch: rc.Branch, Link: rc.RepoLink, Err: err}
	}
	logging.Debug(subsystem, "Fetched %s into %s", rc.Key(), dst)
	return dst, nil
}

func validCheckout(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return false
	}
	_, err := os.Stat(config.ConfigPath(dir))
	return err == nil
}

func (f *Fetcher) clone(ctx context.Context, rc config.RemoteConfig, dst string) error {
	logging.Info(subsystem, "Cloning %s (%s)", rc.RepoName, rc.Branch)
	tmp, err := os.MkdirTemp(f.cacheDir, ".clone-"+rc.RepoName+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if _, err := git(ctx, f.cacheDir, "clone", "--filter=blob:none", "--no-checkout", rc.RepoLink, tmp); err != nil {
		return err
	}
	if err := ensureConfig(ctx, tmp); err != nil {
		return err
	}
	if _, err := git(ctx, tmp, "checkout", rc.Branch); err != nil {
		return err
	}

	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (f *Fetcher) update(ctx context.Context, rc config.RemoteConfig, dst string) error {
	if err := ensureConfig(ctx, dst); err != nil {
		return err
	}
	if _, err := git(ctx, dst, "fetch", "origin", rc.Branch, "--filter=blob:none"); err != nil {
		return err
	}
	local, err := git(ctx, dst, "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	remote, err := git(ctx, dst, "rev-parse", "FETCH_HEAD")
	if err != nil {
		return err
	}
	if local == remote {
		return nil
	}
	logging.Info(subsystem, "Updating %s to %s", rc.RepoName, shortSHA(remote))
	_, err = git(ctx, dst, "checkout", "-f", "FETCH_HEAD")
	return err
}

func ensureConfig(ctx context.Context, dir string) error {
	for _, kv := range partialCloneConfig {
		if _, err := git(ctx, dir, "config", kv[0], kv[1]); err != nil {
			return err
		}
	}
	_, err := git(ctx, dir, "sparse-checkout", "set", config.DirName+"/")
	return err
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	logging.Debug(subsystem, "Running: git %s (in %s)", strings.Join(args, " "), dir)
	cmd := execCommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\nOutput: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
