package vcs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Commit is one commit of the repository history.
type Commit struct {
	Hash    string
	Time    int64
	Parents []string
}

// Graph loads and caches the commit graph of all branches, keyed by hash.
func (r *Repo) Graph() (map[string]*Commit, error) {
	if r.graph != nil {
		return r.graph, nil
	}
	out, err := r.git("log", "--all", "--format=%H %ct %P")
	if err != nil {
		return nil, err
	}
	g := make(map[string]*Commit)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fs := strings.Fields(line)
		if len(fs) < 2 {
			continue
		}
		t, err := strconv.ParseInt(fs[1], 10, 64)
		if err != nil {
			return nil, &RepoError{Op: "log", Out: line, Err: err}
		}
		g[fs[0]] = &Commit{Hash: fs[0], Time: t, Parents: fs[2:]}
	}
	r.graph = g
	return g, nil
}

// Commit returns the commit for the full hash or an error.
func (r *Repo) Commit(hash string) (*Commit, error) {
	g, err := r.Graph()
	if err != nil {
		return nil, err
	}
	c := g[hash]
	if c == nil {
		return nil, &RepoError{Op: "lookup", Err: errors.Errorf("no commit %s", hash)}
	}
	return c, nil
}

// Dependents returns the set of commits that transitively depend on the given commit,
// that is every commit that has it as an ancestor.
func (r *Repo) Dependents(hash string) (map[string]bool, error) {
	g, err := r.Graph()
	if err != nil {
		return nil, err
	}
	if g[hash] == nil {
		return nil, &RepoError{Op: "dependents", Err: errors.Errorf("no commit %s", hash)}
	}
	children := make(map[string][]string, len(g))
	for _, c := range g {
		for _, p := range c.Parents {
			children[p] = append(children[p], c.Hash)
		}
	}
	res := make(map[string]bool)
	stack := []string{hash}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ch := range children[h] {
			if !res[ch] {
				res[ch] = true
				stack = append(stack, ch)
			}
		}
	}
	return res, nil
}

// OrderDependent sorts the given commits from antecedent to dependent. Commits on
// concurrent branches order by commit time and then hash, so the result is stable.
func (r *Repo) OrderDependent(hashes []string) ([]string, error) {
	g, err := r.Graph()
	if err != nil {
		return nil, err
	}
	deps := make(map[string]map[string]bool, len(hashes))
	for _, h := range hashes {
		if g[h] == nil {
			return nil, &RepoError{Op: "order", Err: errors.Errorf("no commit %s", h)}
		}
	}
	for _, h := range hashes {
		ds, err := r.Dependents(h)
		if err != nil {
			return nil, err
		}
		for _, o := range hashes {
			if ds[o] {
				if deps[o] == nil {
					deps[o] = make(map[string]bool)
				}
				deps[o][h] = true
			}
		}
	}
	res := make([]string, 0, len(hashes))
	done := make(map[string]bool, len(hashes))
	for len(res) < len(hashes) {
		best := ""
		for _, h := range hashes {
			if done[h] {
				continue
			}
			ready := true
			for d := range deps[h] {
				if !done[d] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if best == "" || commitLess(g[h], g[best]) {
				best = h
			}
		}
		if best == "" {
			return nil, &RepoError{Op: "order", Err: errors.New("dependency cycle")}
		}
		res = append(res, best)
		done[best] = true
	}
	return res, nil
}

func commitLess(a, b *Commit) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.Hash < b.Hash
}
