package mig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mb0/otab/vcs"
	"gopkg.in/yaml.v3"
)

// ChangeDir is the directory for change records inside a schema repository.
const ChangeDir = "changes"

const changePrefix = "schema_changes_"

// Change records the migration bookkeeping for one schema repository commit: the
// model and field renames it introduced and optionally a hook that transforms
// instances across it.
type Change struct {
	Hash    string        `yaml:"commit_hash"`
	Renames []Rename      `yaml:"renamed_models,omitempty"`
	Fields  []FieldRename `yaml:"renamed_fields,omitempty"`
	Hook    string        `yaml:"hook,omitempty"`

	Path string `yaml:"-"`
}

// ChangeError reports all problems found loading the change records of a repository.
type ChangeError struct {
	Dir   string
	Probs []string
}

func (e *ChangeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "changes %s: %d problem(s)", e.Dir, len(e.Probs))
	for _, p := range e.Probs {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

// ChangeFilename returns the canonical file name for a change record.
func ChangeFilename(t time.Time, hash string) string {
	pre := hash
	if len(pre) > 7 {
		pre = pre[:7]
	}
	return fmt.Sprintf("%s%s_%s.yaml", changePrefix,
		t.UTC().Format("2006-01-02-15-04-05"), pre)
}

// NewChange returns an empty change record for the current head of the repository.
func NewChange(r *vcs.Repo) (*Change, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	return &Change{Hash: head}, nil
}

// Write writes the change record to its canonical file in dir and returns the path.
func (c *Change) Write(dir string) (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ChangeFilename(time.Now(), c.Hash))
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return "", err
	}
	c.Path = path
	return path, nil
}

func (c *Change) validate() (probs []string) {
	if len(c.Hash) != 40 || !isHex(c.Hash) {
		probs = append(probs, fmt.Sprintf("%s: commit hash %q is not a full sha1",
			filepath.Base(c.Path), c.Hash))
	}
	if c.Hook != "" {
		if _, err := LookupHook(c.Hook); err != nil {
			probs = append(probs, fmt.Sprintf("%s: %v", filepath.Base(c.Path), err))
		}
	}
	return probs
}

// LoadChanges reads and validates all change records in the changes directory of the
// repository, sorted by file name and therefore by record time. Every commit hash must
// resolve in the repository. All problems aggregate into one ChangeError.
func LoadChanges(r *vcs.Repo) ([]*Change, error) {
	dir := r.Path(ChangeDir)
	fis, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var probs []string
	var res []*Change
	for _, fi := range fis {
		name := fi.Name()
		if fi.IsDir() || !strings.HasPrefix(name, changePrefix) ||
			!strings.HasSuffix(name, ".yaml") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			probs = append(probs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		var c Change
		if err = yaml.Unmarshal(data, &c); err != nil {
			probs = append(probs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		c.Path = path
		if ps := c.validate(); len(ps) > 0 {
			probs = append(probs, ps...)
			continue
		}
		if _, err = r.Commit(c.Hash); err != nil {
			probs = append(probs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		res = append(res, &c)
	}
	if len(probs) > 0 {
		return nil, &ChangeError{dir, probs}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'f' {
			continue
		}
		return false
	}
	return true
}
