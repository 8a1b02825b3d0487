package mig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
)

// FieldRef names a field of a model by key.
type FieldRef struct {
	Model string
	Field string
}

func (r FieldRef) String() string { return r.Model + "." + r.Field }

// Rename maps a model name in an old schema version to its name in the new version.
type Rename struct {
	Old string
	New string
}

// FieldRename maps an old field to a new one, possibly across a model rename.
type FieldRename struct {
	Old FieldRef
	New FieldRef
}

// MapError reports all problems found while building a schema mapping.
type MapError struct {
	Probs []string
}

func (e *MapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema mapping: %d problem(s)", len(e.Probs))
	for _, p := range e.Probs {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

// Mapping relates the models and fields of an old schema version to a new one.
//
// Every old model key is either in the Models domain or in Deleted. Models is
// injective; no two old models migrate to the same new model.
type Mapping struct {
	Old, New *dom.Schema
	Models   map[string]string     // old model key to new model key
	Fields   map[FieldRef]FieldRef // explicitly renamed fields
	Deleted  map[string]bool       // old model keys without a new counterpart
}

// BuildMapping validates the given renames against both schema versions and derives
// the full model and field mapping. Unrenamed old models map to the same key in the
// new schema when it exists and are recorded as deleted otherwise. All problems are
// collected and returned in one MapError.
func BuildMapping(old, new *dom.Schema, models []Rename, fields []FieldRename) (*Mapping, error) {
	var probs []string
	mm := make(map[string]string, len(models))
	seenNew := make(map[string]bool, len(models))
	for _, r := range models {
		ok, nk := cor.Keyed(r.Old), cor.Keyed(r.New)
		if old.Model(ok) == nil {
			probs = append(probs, fmt.Sprintf("rename %s to %s: no model %s in old schema",
				r.Old, r.New, r.Old))
		}
		if new.Model(nk) == nil {
			probs = append(probs, fmt.Sprintf("rename %s to %s: no model %s in new schema",
				r.Old, r.New, r.New))
		}
		if _, dup := mm[ok]; dup {
			probs = append(probs, fmt.Sprintf("duplicate model rename of %s", r.Old))
		}
		if seenNew[nk] {
			probs = append(probs, fmt.Sprintf("duplicate model rename to %s", r.New))
		}
		mm[ok] = nk
		seenNew[nk] = true
	}
	fm := make(map[FieldRef]FieldRef, len(fields))
	seenNewF := make(map[FieldRef]bool, len(fields))
	for _, r := range fields {
		o := FieldRef{cor.Keyed(r.Old.Model), cor.Keyed(r.Old.Field)}
		n := FieldRef{cor.Keyed(r.New.Model), cor.Keyed(r.New.Field)}
		if old.Model(o.Model).Field(o.Field).Param == nil {
			probs = append(probs, fmt.Sprintf("rename %s to %s: no field %s in old schema",
				r.Old, r.New, r.Old))
		}
		if new.Model(n.Model).Field(n.Field).Param == nil {
			probs = append(probs, fmt.Sprintf("rename %s to %s: no field %s in new schema",
				r.Old, r.New, r.New))
		}
		if want, renamed := mm[o.Model]; renamed && want != n.Model ||
			!renamed && o.Model != n.Model {
			probs = append(probs, fmt.Sprintf(
				"rename %s to %s inconsistent with model renames", r.Old, r.New))
		}
		if _, dup := fm[o]; dup {
			probs = append(probs, fmt.Sprintf("duplicate field rename of %s", r.Old))
		}
		if seenNewF[n] {
			probs = append(probs, fmt.Sprintf("duplicate field rename to %s", r.New))
		}
		fm[o] = n
		seenNewF[n] = true
	}
	if len(probs) > 0 {
		return nil, &MapError{probs}
	}
	res := &Mapping{Old: old, New: new, Models: mm, Fields: fm,
		Deleted: make(map[string]bool)}
	for _, m := range old.Models {
		k := m.Key()
		if _, ok := mm[k]; ok {
			continue
		}
		if new.Model(k) != nil {
			mm[k] = k
		} else {
			res.Deleted[k] = true
		}
	}
	targets := make(map[string]string, len(mm))
	for _, m := range old.Models {
		k := m.Key()
		nk, ok := mm[k]
		if !ok {
			continue
		}
		if prev, ok := targets[nk]; ok {
			probs = append(probs, fmt.Sprintf("models %s and %s both map to %s",
				prev, k, nk))
			continue
		}
		targets[nk] = k
	}
	if len(probs) > 0 {
		return nil, &MapError{probs}
	}
	return res, nil
}

// MappedField returns the new location of an old field. Explicit renames win,
// otherwise the same key on the mapped model is used when it exists there.
func (m *Mapping) MappedField(ref FieldRef) (FieldRef, bool) {
	if n, ok := m.Fields[ref]; ok {
		return n, true
	}
	nk, ok := m.Models[ref.Model]
	if !ok {
		return FieldRef{}, false
	}
	if m.New.Model(nk).Field(ref.Field).Param != nil {
		return FieldRef{nk, ref.Field}, true
	}
	return FieldRef{}, false
}

// AddedModels returns the keys of new models without an old counterpart, sorted.
func (m *Mapping) AddedModels() []string {
	targets := make(map[string]bool, len(m.Models))
	for _, nk := range m.Models {
		targets[nk] = true
	}
	var res []string
	for _, mod := range m.New.Models {
		if !targets[mod.Key()] {
			res = append(res, mod.Key())
		}
	}
	sort.Strings(res)
	return res
}
