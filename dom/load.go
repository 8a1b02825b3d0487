package dom

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lex"
	"github.com/mb0/xelf/lit"
)

// LoadError reports all problems found loading and validating one schema file.
type LoadError struct {
	Path  string
	Probs []string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema %s: %d problem(s)", e.Path, len(e.Probs))
	for _, p := range e.Probs {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

// Loader reads and caches schemas by resolved file path. It is not safe for concurrent use.
type Loader struct {
	Relax bool // skip schema validation
	cache map[string]*Schema
}

// Load reads, validates and caches the schema at path. Repeated loads of the same
// resolved path return the cached schema.
func (l *Loader) Load(path string) (*Schema, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, cor.Errorf("resolve schema path %s: %w", path, err)
	}
	if s, ok := l.cache[abs]; ok {
		return s, nil
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, cor.Errorf("open schema %s: %w", abs, err)
	}
	defer f.Close()
	s, err := l.Read(f, abs)
	if err != nil {
		return nil, err
	}
	if l.cache == nil {
		l.cache = make(map[string]*Schema)
	}
	l.cache[abs] = s
	return s, nil
}

// Read parses a schema literal from r. The schema name defaults to the base of path
// when the literal declares none.
func (l *Loader) Read(r io.Reader, path string) (*Schema, error) {
	tr, err := lex.New(r).Tree()
	if err != nil {
		return nil, &LoadError{path, []string{fmt.Sprintf("lex: %v", err)}}
	}
	v, err := lit.Parse(tr)
	if err != nil {
		return nil, &LoadError{path, []string{fmt.Sprintf("parse: %v", err)}}
	}
	d, ok := v.(*lit.Dict)
	if !ok {
		return nil, &LoadError{path, []string{fmt.Sprintf("expect dict got %T", v)}}
	}
	s := &Schema{Path: path}
	if nl, err := d.Key("name"); err == nil && nl != nil {
		if c, ok := nl.(lit.Character); ok {
			s.Name = c.Char()
		}
	}
	if s.Name == "" {
		name := filepath.Base(path)
		if i := strings.IndexByte(name, '.'); i > 0 {
			name = name[:i]
		}
		s.Name = name
	}
	err = s.FromDict(d)
	if err != nil {
		return nil, &LoadError{path, []string{err.Error()}}
	}
	dropMarked(s)
	if !l.Relax {
		if probs := Validate(s); len(probs) > 0 {
			return nil, &LoadError{path, probs}
		}
	}
	return s, nil
}

// dropMarked removes bookkeeping models with a leading underscore in their name.
func dropMarked(s *Schema) {
	res := s.Models[:0]
	for _, m := range s.Models {
		if strings.HasPrefix(m.Name, "_") {
			continue
		}
		res = append(res, m)
	}
	s.Models = res
}

// Validate returns a list of all structural problems in s.
//
// Every model reference must resolve within the schema, every relationship must declare
// an inverse name that is unique on the target model and does not collide with one of
// its fields, and the schema must hold at least one model.
func Validate(s *Schema) (probs []string) {
	if len(s.Models) == 0 {
		return []string{"schema has no models"}
	}
	seen := make(map[string]bool, len(s.Models))
	for _, m := range s.Models {
		if seen[m.Key()] {
			probs = append(probs, fmt.Sprintf("%s: duplicate model name", m.Name))
		}
		seen[m.Key()] = true
	}
	invs := make(map[string][]string)
	for _, m := range s.Models {
		for i, p := range m.Params {
			e := m.Elems[i]
			if e.Ref == "" {
				continue
			}
			b := s.Model(cor.Keyed(e.Ref))
			if b == nil {
				probs = append(probs, fmt.Sprintf("%s.%s: reference to unknown model %s",
					m.Name, p.Name, e.Ref))
				continue
			}
			if e.Rel == "" {
				probs = append(probs, fmt.Sprintf("%s.%s: relationship without inverse name",
					m.Name, p.Name))
				continue
			}
			rk := cor.Keyed(e.Rel)
			if f := b.Field(rk); f.Param != nil {
				probs = append(probs, fmt.Sprintf("%s.%s: inverse name %s collides with a field of %s",
					m.Name, p.Name, e.Rel, b.Name))
			}
			invs[b.Key()+"."+rk] = append(invs[b.Key()+"."+rk],
				fmt.Sprintf("%s.%s", m.Name, p.Name))
		}
	}
	keys := make([]string, 0, len(invs))
	for key := range invs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if users := invs[key]; len(users) > 1 {
			probs = append(probs, fmt.Sprintf("%s: inverse name used by %s",
				key, strings.Join(users, ", ")))
		}
	}
	return probs
}
