package mig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Renames decode from the YAML pair syntax [Old, New].
func (r *Rename) UnmarshalYAML(n *yaml.Node) error {
	var pair [2]string
	if err := n.Decode(&pair); err != nil {
		return err
	}
	r.Old, r.New = pair[0], pair[1]
	return nil
}

// Field renames decode from the YAML pair of pairs syntax [[Model, Field], [Model, Field]].
func (r *FieldRename) UnmarshalYAML(n *yaml.Node) error {
	var pair [2][2]string
	if err := n.Decode(&pair); err != nil {
		return err
	}
	r.Old = FieldRef{pair[0][0], pair[0][1]}
	r.New = FieldRef{pair[1][0], pair[1][1]}
	return nil
}

func (r Rename) MarshalYAML() (interface{}, error) {
	return [2]string{r.Old, r.New}, nil
}

func (r FieldRename) MarshalYAML() (interface{}, error) {
	return [2][2]string{{r.Old.Model, r.Old.Field}, {r.New.Model, r.New.Field}}, nil
}

// SpecError reports all problems found validating a migration spec.
type SpecError struct {
	Name  string
	Probs []string
}

func (e *SpecError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "spec %s: %d problem(s)", e.Name, len(e.Probs))
	for _, p := range e.Probs {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

// Spec describes one migration of dataset files over a sequence of schema versions.
//
// Schemas lists at least two schema file paths. The per-step lists hold one entry per
// adjacent schema pair or are empty. Migrated optionally names an output path per
// file; otherwise outputs get Suffix before the file extension, or replace the input
// when InPlace is set.
type Spec struct {
	Name    string          `yaml:"name,omitempty"`
	Files   []string        `yaml:"files"`
	Schemas []string        `yaml:"schemas"`
	Renames [][]Rename      `yaml:"renamed_models,omitempty"`
	Fields  [][]FieldRename `yaml:"renamed_fields,omitempty"`
	Hooks   []string        `yaml:"hooks,omitempty"`

	Migrated []string `yaml:"migrated,omitempty"`
	Suffix   string   `yaml:"suffix,omitempty"`
	InPlace  bool     `yaml:"in_place,omitempty"`

	dir string
}

// LoadSpecs reads a YAML config mapping spec names to specs. Relative paths in each
// spec resolve against the config file's directory on Standardize.
func LoadSpecs(path string) (map[string]*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]*Spec
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("spec config %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for name, s := range raw {
		if s == nil {
			return nil, fmt.Errorf("spec config %s: empty spec %s", path, name)
		}
		if s.Name == "" {
			s.Name = name
		}
		s.dir = dir
	}
	return raw, nil
}

// Validate collects every problem with the spec into one SpecError.
func (s *Spec) Validate() error {
	var probs []string
	if len(s.Schemas) < 2 {
		probs = append(probs, fmt.Sprintf("want at least two schemas got %d",
			len(s.Schemas)))
	}
	if len(s.Files) == 0 {
		probs = append(probs, "no files to migrate")
	}
	for _, f := range s.Files {
		if _, err := os.Stat(s.abs(f)); err != nil {
			probs = append(probs, fmt.Sprintf("file %s: %v", f, err))
		}
	}
	steps := len(s.Schemas) - 1
	if n := len(s.Renames); n != 0 && n != steps {
		probs = append(probs, fmt.Sprintf("want %d renamed model lists got %d", steps, n))
	}
	if n := len(s.Fields); n != 0 && n != steps {
		probs = append(probs, fmt.Sprintf("want %d renamed field lists got %d", steps, n))
	}
	if n := len(s.Hooks); n != 0 && n != steps {
		probs = append(probs, fmt.Sprintf("want %d hook names got %d", steps, n))
	}
	for _, h := range s.Hooks {
		if h == "" {
			continue
		}
		if _, err := LookupHook(h); err != nil {
			probs = append(probs, err.Error())
		}
	}
	if n := len(s.Migrated); n != 0 && n != len(s.Files) {
		probs = append(probs, fmt.Sprintf("want %d migrated paths got %d",
			len(s.Files), n))
	}
	if s.InPlace && (len(s.Migrated) != 0 || s.Suffix != "") {
		probs = append(probs, "in place migration excludes migrated paths and suffix")
	}
	if len(probs) > 0 {
		return &SpecError{s.Name, probs}
	}
	return nil
}

// Standardize fills the per-step lists and resolves all paths. It must run after
// Validate and before Steps.
func (s *Spec) Standardize() {
	steps := len(s.Schemas) - 1
	if len(s.Renames) == 0 {
		s.Renames = make([][]Rename, steps)
	}
	if len(s.Fields) == 0 {
		s.Fields = make([][]FieldRename, steps)
	}
	if len(s.Hooks) == 0 {
		s.Hooks = make([]string, steps)
	}
	if s.Suffix == "" && !s.InPlace && len(s.Migrated) == 0 {
		s.Suffix = "_migrated"
	}
	for i, f := range s.Files {
		s.Files[i] = s.abs(f)
	}
	for i, f := range s.Schemas {
		s.Schemas[i] = s.abs(f)
	}
	for i, f := range s.Migrated {
		s.Migrated[i] = s.abs(f)
	}
}

// Steps builds one unprepared step per adjacent schema pair.
func (s *Spec) Steps() ([]*Step, error) {
	res := make([]*Step, 0, len(s.Schemas)-1)
	for i := 0; i < len(s.Schemas)-1; i++ {
		st := &Step{OldPath: s.Schemas[i], NewPath: s.Schemas[i+1]}
		if len(s.Renames) > i {
			st.Renames = s.Renames[i]
		}
		if len(s.Fields) > i {
			st.Fields = s.Fields[i]
		}
		if len(s.Hooks) > i && s.Hooks[i] != "" {
			h, err := LookupHook(s.Hooks[i])
			if err != nil {
				return nil, err
			}
			st.Hook = h
		}
		res = append(res, st)
	}
	return res, nil
}

// MigratedPath returns the output path for the i-th file.
func (s *Spec) MigratedPath(i int) string {
	if s.InPlace {
		return s.Files[i]
	}
	if len(s.Migrated) > i && s.Migrated[i] != "" {
		return s.Migrated[i]
	}
	f := s.Files[i]
	ext := filepath.Ext(f)
	return f[:len(f)-len(ext)] + s.Suffix + ext
}

func (s *Spec) abs(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}
