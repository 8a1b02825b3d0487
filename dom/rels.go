package dom

import (
	"fmt"

	"github.com/mb0/xelf/cor"
)

// Rel is a bit-set describing the kind of relationship between two models referred to as a and b.
type Rel uint64

const (
	RelA1 Rel = 1 << iota // one a
	RelAN                 // many a
	RelB1                 // one b
	RelBN                 // many b

	Rel11 = RelA1 | RelB1 // one a to one b
	Rel1N = RelA1 | RelBN // one a to many b
	RelN1 = RelAN | RelB1 // many a to one b
	RelNN = RelAN | RelBN // many a to many b
)

// Relation links two models a and b. The a side holds the forward field and the b side the
// inverse name under which referrers are collected.
type Relation struct {
	Rel
	A, B ModelRef
}

func (r Relation) String() string {
	return fmt.Sprintf("%s>>%s", r.A, r.B)
}

// ModelRef is a model pointer with an optional field key.
type ModelRef struct {
	*Model
	Key string
}

func (r ModelRef) String() string {
	res := r.Model.Qualified()
	if r.Key == "" {
		return res
	}
	return fmt.Sprintf("%s.%s", res, r.Key)
}

// ModelRels contains outgoing and incoming relationships for a model.
type ModelRels struct {
	*Model
	Out, In []Relation
}

func (r ModelRels) String() string {
	return fmt.Sprintf("{out:%v in:%v}", r.Out, r.In)
}

// Relations maps qualified model names to a collection of all relations for that model.
type Relations map[string]*ModelRels

// Relate collects and returns all relations between the models in the given schema or an error.
func Relate(s *Schema) (Relations, error) {
	res := make(Relations)
	for _, m := range s.Models {
		if !m.Type.HasParams() { // is constant
			continue
		}
		err := res.relate(s, m)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (res *Relations) relate(s *Schema, m *Model) error {
	for i, p := range m.Type.Params {
		e := m.Elems[i]
		if e.Ref == "" {
			continue
		}
		rel := Relation{A: ModelRef{m, p.Key()}}
		rel.B.Model = s.Model(cor.Keyed(e.Ref))
		if rel.B.Model == nil {
			return cor.Errorf("model ref not found %s", e.Ref)
		}
		rel.B.Key = e.Rel
		if e.Bits&BitMany != 0 {
			rel.Rel = RelNN
		} else if e.Bits&BitUniq != 0 {
			rel.Rel = Rel11
		} else {
			rel.Rel = RelN1
		}
		res.add(rel)
	}
	return nil
}

func (rs Relations) add(r Relation) {
	a := rs.upsert(r.A.Model)
	a.Out = append(a.Out, r)
	b := rs.upsert(r.B.Model)
	b.In = append(b.In, r)
}

func (rs Relations) upsert(m *Model) *ModelRels {
	key := m.Qualified()
	r := rs[key]
	if r == nil {
		r = &ModelRels{Model: m}
		rs[key] = r
	}
	return r
}
