package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	err = r.Config("user.email", "test@example.org")
	if err == nil {
		err = r.Config("user.name", "test")
	}
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return r
}

func commitFile(t *testing.T, r *Repo, name, data, msg string) string {
	t.Helper()
	err := os.WriteFile(filepath.Join(r.Dir, name), []byte(data), 0644)
	if err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err = r.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	hash, err := r.CommitAll(msg)
	if err != nil {
		t.Fatalf("commit %s: %v", msg, err)
	}
	return hash
}

func TestRepoHistory(t *testing.T) {
	r := initRepo(t)
	c1 := commitFile(t, r, "a.txt", "1", "one")
	c2 := commitFile(t, r, "a.txt", "2", "two")
	c3 := commitFile(t, r, "a.txt", "3", "three")
	head, err := r.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != c3 {
		t.Errorf("want head %s got %s", c3, head)
	}
	dep, err := r.Dependents(c1)
	if err != nil {
		t.Fatalf("dependents: %v", err)
	}
	if len(dep) != 2 || !dep[c2] || !dep[c3] {
		t.Errorf("want dependents {%s %s} got %v", c2, c3, dep)
	}
	dep, err = r.Dependents(c3)
	if err != nil {
		t.Fatalf("dependents: %v", err)
	}
	if len(dep) != 0 {
		t.Errorf("want no dependents of head got %v", dep)
	}
	ordered, err := r.OrderDependent([]string{c3, c1, c2})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []string{c1, c2, c3}
	for i, h := range want {
		if ordered[i] != h {
			t.Errorf("want order %v got %v", want, ordered)
			break
		}
	}
	if _, err = r.Commit(c2); err != nil {
		t.Errorf("lookup %s: %v", c2, err)
	}
	_, err = r.Commit(strings.Repeat("0", 40))
	if _, ok := err.(*RepoError); !ok {
		t.Errorf("want repo error got %v", err)
	}
	if err = r.Checkout(c1); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if head, _ = r.Head(); head != c1 {
		t.Errorf("want detached head %s got %s", c1, head)
	}
}

func TestCloneCleanup(t *testing.T) {
	r := initRepo(t)
	c1 := commitFile(t, r, "a.txt", "1", "one")
	cl, err := Clone(r.Dir, "")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	head, err := cl.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != c1 {
		t.Errorf("want clone head %s got %s", c1, head)
	}
	dir := cl.Dir
	if err = cl.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err = os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("clone dir %s not removed", dir)
	}
}
