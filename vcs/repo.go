// Package vcs wraps local git repositories for schema history resolution.
//
// All operations shell out to the git binary; failures are reported as RepoError with
// the captured command output.
package vcs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// RepoError reports a failed repository operation with its captured output.
type RepoError struct {
	Op  string
	Out string
	Err error
}

func (e *RepoError) Error() string {
	msg := fmt.Sprintf("git %s: %v", e.Op, e.Err)
	if e.Out != "" {
		msg += "\n" + e.Out
	}
	return msg
}
func (e *RepoError) Unwrap() error { return e.Err }

// Repo is a local git work tree driven through the git binary.
// It is not safe for concurrent use.
type Repo struct {
	Dir    string
	URL    string
	Branch string

	tmps  []string
	graph map[string]*Commit
}

// Init creates a new git repository at dir.
func Init(dir string) (*Repo, error) {
	r := &Repo{Dir: dir}
	if _, err := r.git("init", "-q"); err != nil {
		return nil, err
	}
	return r, nil
}

// Open returns a repo for the existing work tree containing dir.
func Open(dir string) (*Repo, error) {
	r := &Repo{Dir: dir}
	out, err := r.git("rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	r.Dir = strings.TrimSpace(out)
	return r, nil
}

// Clone clones url at branch into a new temporary directory that is tracked for Cleanup.
func Clone(url, branch string) (*Repo, error) {
	dir, err := os.MkdirTemp("", "otab-repo-")
	if err != nil {
		return nil, errors.Wrap(err, "create clone dir")
	}
	r := &Repo{Dir: dir, URL: url, Branch: branch, tmps: []string{dir}}
	args := []string{"clone"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dir)
	if _, err = r.git(args...); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return r, nil
}

// Checkout checks out the commit with a detached head.
func (r *Repo) Checkout(hash string) error {
	_, err := r.git("checkout", "--detach", hash)
	return err
}

// Head returns the hash of the current head commit.
func (r *Repo) Head() (string, error) {
	out, err := r.git("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Add stages the given paths.
func (r *Repo) Add(paths ...string) error {
	_, err := r.git(append([]string{"add", "--"}, paths...)...)
	return err
}

// CommitAll commits all staged and changed files and returns the new head hash.
func (r *Repo) CommitAll(msg string) (string, error) {
	_, err := r.git("commit", "-a", "-m", msg)
	if err != nil {
		return "", err
	}
	r.graph = nil
	return r.Head()
}

// Config sets a local git config value, mostly used to set a committer identity.
func (r *Repo) Config(key, val string) error {
	_, err := r.git("config", key, val)
	return err
}

// Path joins elems onto the work tree root.
func (r *Repo) Path(elems ...string) string {
	return filepath.Join(append([]string{r.Dir}, elems...)...)
}

// Cleanup removes all temporary directories created for this repo.
func (r *Repo) Cleanup() error {
	var err error
	for _, d := range r.tmps {
		if e := os.RemoveAll(d); e != nil && err == nil {
			err = e
		}
	}
	r.tmps = nil
	return err
}

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &RepoError{Op: args[0], Out: strings.TrimSpace(string(out)), Err: err}
	}
	return string(out), nil
}
