package mig

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lex"
	"github.com/mb0/xelf/lit"
	"github.com/mb0/xelf/typ"
)

// MigrateError reports a fatal instance migration failure with model and field context.
type MigrateError struct {
	Model string
	Field string
	Err   error
}

func (e *MigrateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("migrate %s.%s: %v", e.Model, e.Field, e.Err)
	}
	return fmt.Sprintf("migrate %s: %v", e.Model, e.Err)
}
func (e *MigrateError) Unwrap() error { return e.Err }

// ScratchName returns the key for the transient forward edge used during migration.
// It is strictly longer than every field and inverse name in the schema and therefore
// cannot collide with either.
func ScratchName(s *dom.Schema) string {
	max := 0
	for _, m := range s.Models {
		for _, p := range m.Params {
			if n := len(p.Key()); n > max {
				max = n
			}
		}
		for _, e := range m.Elems {
			if n := len(e.Rel); n > max {
				max = n
			}
		}
	}
	name := "__migrated"
	for len(name) <= max {
		name += "_"
	}
	return name
}

// Migrate transforms instances of the old schema version into instances of the new one
// according to the mapping.
//
// The first phase copies mapped plain values, deep-copies containers, rewrites
// expression fields and links each old instance to its migrated copy with a transient
// scratch edge. Relationship fields whose stored value never resolved to an edge keep
// that value. Duplicate primary keys among migrated instances of one model abort the
// run. The second phase relinks relationship edges through the scratch edges and
// rebuilds referrer edges under the inverse names of the new schema. All scratch edges
// are removed again before returning; the input objects are otherwise unchanged.
// Instances of deleted models are dropped along with every edge that points at them.
func Migrate(objs []*Obj, m *Mapping) ([]*Obj, error) {
	scratch := ScratchName(m.Old)
	res := make([]*Obj, 0, len(objs))
	olds := make([]*Obj, 0, len(objs))
	defer func() {
		for _, o := range olds {
			delete(o.Rels, scratch)
		}
	}()
	for _, o := range objs {
		mk, ok := m.Models[o.Model.Key()]
		if !ok {
			continue
		}
		nm := m.New.Model(mk)
		n := NewObj(nm)
		for _, p := range o.Model.Params {
			key := p.Key()
			val, ok := o.Vals[key]
			if !ok {
				continue
			}
			f := o.Model.Field(key)
			nref, ok := m.MappedField(FieldRef{o.Model.Key(), key})
			if !ok {
				continue
			}
			switch f.Kind() {
			case dom.KindRelOne, dom.KindRelMany:
				// edges relink in the second phase; a value that never
				// resolved to an edge carries over as stored
				if len(o.Rels[key]) == 0 {
					v, err := copyVal(val, f)
					if err != nil {
						return nil, &MigrateError{o.Model.Name, key, err}
					}
					n.Vals[nref.Field] = v
				}
			case dom.KindExpr:
				out, err := rewriteExpr(charVal(val), m)
				if err != nil {
					return nil, &MigrateError{o.Model.Name, key, err}
				}
				n.Vals[nref.Field] = lit.Str(out)
			default:
				v, err := copyVal(val, f)
				if err != nil {
					return nil, &MigrateError{o.Model.Name, key, err}
				}
				n.Vals[nref.Field] = v
			}
		}
		o.addRel(scratch, n)
		olds = append(olds, o)
		res = append(res, n)
	}
	ids := make(map[string]map[string]bool)
	for _, n := range res {
		id := n.ID()
		if id == nil {
			continue
		}
		mk := n.Model.Key()
		seen := ids[mk]
		if seen == nil {
			seen = make(map[string]bool)
			ids[mk] = seen
		}
		k := id.String()
		if seen[k] {
			return nil, &MigrateError{n.Model.Name, "",
				cor.Errorf("duplicate id %s", k)}
		}
		seen[k] = true
	}
	for _, o := range olds {
		n := o.Rels[scratch][0]
		for key, targets := range o.Rels {
			if key == scratch {
				continue
			}
			f := o.Model.Field(key)
			if f.Param == nil {
				continue // referrer edge, rebuilt from the forward side
			}
			nref, ok := m.MappedField(FieldRef{o.Model.Key(), key})
			if !ok {
				continue
			}
			g := n.Model.Field(nref.Field)
			for _, tgt := range targets {
				mapped := tgt.Rels[scratch]
				if len(mapped) == 0 {
					continue // target instance was dropped
				}
				mt := mapped[0]
				n.addRel(nref.Field, mt)
				if g.Elem != nil && g.Rel != "" {
					mt.addRel(cor.Keyed(g.Rel), n)
				}
			}
		}
	}
	return res, nil
}

func charVal(l lit.Lit) string {
	if c, ok := l.(lit.Character); ok {
		return c.Char()
	}
	return l.String()
}

// copyVal copies one plain field value. Primitive and ontology term values are shared,
// containers are copied by round-tripping their literal form.
func copyVal(l lit.Lit, f dom.FieldElem) (lit.Lit, error) {
	if l == nil {
		return nil, nil
	}
	if f.Elem != nil && f.Bits&dom.BitOnto != 0 {
		return l, nil
	}
	if l.Typ().Kind&typ.KindPrim != 0 {
		return l, nil
	}
	return lit.Read(strings.NewReader(l.String()))
}

// rewriteExpr replaces model name prefixes in an expression according to the model
// mapping and verifies that the result still lexes.
func rewriteExpr(expr string, m *Mapping) (string, error) {
	names := make(map[string]string, len(m.Models))
	for ok, nk := range m.Models {
		om, nm := m.Old.Model(ok), m.New.Model(nk)
		if om != nil && nm != nil && om.Name != nm.Name {
			names[om.Name] = nm.Name
		}
	}
	var b strings.Builder
	for i := 0; i < len(expr); {
		c := expr[i]
		if !isNameStart(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(expr) && isNamePart(expr[j]) {
			j++
		}
		word := expr[i:j]
		if n, ok := names[word]; ok && j < len(expr) && expr[j] == '.' {
			b.WriteString(n)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	out := b.String()
	lx := lex.New(strings.NewReader(out))
	for {
		tr, err := lx.Tree()
		if tr == nil && errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", cor.Errorf("rewritten expression %s: %w", out, err)
		}
	}
	return out, nil
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
func isNamePart(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9'
}
