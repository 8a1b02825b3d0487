package mig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mb0/otab/dom"
	"github.com/mb0/otab/log"
	"github.com/mb0/otab/vcs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config drives batch migration of data files tracked alongside a schema repository.
type Config struct {
	Files  []string `yaml:"files"`
	URL    string   `yaml:"schema_repo_url"`
	Branch string   `yaml:"branch,omitempty"`
	Schema string   `yaml:"schema_file"`
}

// LoadConfig reads a batch config from a YAML file. Relative data file paths resolve
// against the config file's directory and the branch defaults to master.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "batch config %s", path)
	}
	if cfg.Branch == "" {
		cfg.Branch = "master"
	}
	dir := filepath.Dir(path)
	for i, f := range cfg.Files {
		if !filepath.IsAbs(f) {
			cfg.Files[i] = filepath.Join(dir, f)
		}
	}
	return &cfg, nil
}

// Auto migrates data files in place to the head of their schema repository.
//
// For every data file it reads the schema commit recorded in the dataset meta,
// selects the change records of all later commits in dependency order, clones the
// schema repository at each of those commits and runs the resulting migration spec.
type Auto struct {
	Config
	Strict bool // stop at the first file failure
	Log    log.Logger

	repos []*vcs.Repo
}

func NewAuto(cfg *Config) *Auto {
	return &Auto{Config: *cfg, Log: log.Root}
}

// Validate checks the config and that the schema repository and its change records load.
func (a *Auto) Validate() error {
	var probs []string
	if a.URL == "" {
		probs = append(probs, "no schema repository url")
	}
	if a.Schema == "" {
		probs = append(probs, "no schema file")
	}
	if len(a.Files) == 0 {
		probs = append(probs, "no files to migrate")
	}
	for _, f := range a.Files {
		if _, err := os.Stat(f); err != nil {
			probs = append(probs, fmt.Sprintf("file %s: %v", f, err))
		}
	}
	if len(probs) > 0 {
		return &SpecError{"batch", probs}
	}
	repo, err := a.clone()
	if err != nil {
		return err
	}
	_, err = LoadChanges(repo)
	return err
}

// Run migrates every configured file. File failures are collected and reported after
// the batch unless Strict is set, in which case the first failure stops it. Temporary
// clones are removed in either case.
func (a *Auto) Run() (err error) {
	defer a.Cleanup()
	repo, err := a.clone()
	if err != nil {
		return err
	}
	changes, err := LoadChanges(repo)
	if err != nil {
		return err
	}
	var probs []string
	for _, f := range a.Files {
		err = a.runFile(repo, changes, f)
		if err != nil {
			if a.Strict {
				return errors.Wrapf(err, "migrate %s", f)
			}
			a.log().Error("migrate failed", "file", f, "err", err)
			probs = append(probs, fmt.Sprintf("%s: %v", f, err))
		}
	}
	if len(probs) > 0 {
		return &SpecError{"batch", probs}
	}
	return nil
}

func (a *Auto) runFile(repo *vcs.Repo, changes []*Change, file string) error {
	ds, err := ReadDataset(file)
	if err != nil {
		return err
	}
	meta := ds.Meta
	ds.Close()
	if meta.Commit == "" {
		return errors.Errorf("dataset %s records no schema commit", file)
	}
	if _, err = repo.Commit(meta.Commit); err != nil {
		return err
	}
	dep, err := repo.Dependents(meta.Commit)
	if err != nil {
		return err
	}
	byHash := make(map[string]*Change, len(changes))
	var hs []string
	for _, c := range changes {
		if dep[c.Hash] {
			byHash[c.Hash] = c
			hs = append(hs, c.Hash)
		}
	}
	if len(hs) == 0 {
		a.log().Debug("up to date", "file", file)
		return nil
	}
	ordered, err := repo.OrderDependent(hs)
	if err != nil {
		return err
	}
	cl, err := a.cloneAt(meta.Commit)
	if err != nil {
		return err
	}
	spec := &Spec{
		Name:    filepath.Base(file),
		Files:   []string{file},
		Schemas: []string{cl.Path(a.Schema)},
		InPlace: true,
	}
	for _, h := range ordered {
		cl, err = a.cloneAt(h)
		if err != nil {
			return err
		}
		c := byHash[h]
		spec.Schemas = append(spec.Schemas, cl.Path(a.Schema))
		spec.Renames = append(spec.Renames, c.Renames)
		spec.Fields = append(spec.Fields, c.Fields)
		spec.Hooks = append(spec.Hooks, c.Hook)
	}
	last := ordered[len(ordered)-1]
	p := &Pipeline{
		Loader: &dom.Loader{},
		Log:    a.log(),
		Meta:   &Meta{URL: a.URL, Branch: a.Branch, Commit: last},
	}
	return p.Run(spec)
}

// Cleanup removes every temporary clone made for this batch.
func (a *Auto) Cleanup() {
	for _, r := range a.repos {
		if err := r.Cleanup(); err != nil {
			a.log().Warn("cleanup failed", "dir", r.Dir, "err", err)
		}
	}
	a.repos = nil
}

func (a *Auto) clone() (*vcs.Repo, error) {
	r, err := vcs.Clone(a.URL, a.Branch)
	if err != nil {
		return nil, err
	}
	a.repos = append(a.repos, r)
	return r, nil
}

func (a *Auto) cloneAt(hash string) (*vcs.Repo, error) {
	r, err := a.clone()
	if err != nil {
		return nil, err
	}
	if err = r.Checkout(hash); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *Auto) log() log.Logger {
	if a.Log != nil {
		return a.Log
	}
	return log.Root
}
