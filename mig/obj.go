package mig

import (
	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/lit"
)

// Obj is one instance of a model.
//
// Vals holds plain field values by field key. Rels holds object edges: forward
// relationship fields by field key and referrers by the inverse name declared on the
// relationship. Expression fields keep their text in Vals.
type Obj struct {
	Model *dom.Model
	Vals  map[string]lit.Lit
	Rels  map[string][]*Obj
}

func NewObj(m *dom.Model) *Obj {
	return &Obj{Model: m, Vals: make(map[string]lit.Lit)}
}

// ID returns the primary key value or nil if the model has no primary key.
func (o *Obj) ID() lit.Lit {
	pk := o.Model.PK()
	if pk.Param == nil {
		return nil
	}
	return o.Vals[pk.Key()]
}

func (o *Obj) addRel(key string, objs ...*Obj) {
	if o.Rels == nil {
		o.Rels = make(map[string][]*Obj)
	}
	o.Rels[key] = append(o.Rels[key], objs...)
}
