package mig

import (
	"io"
	"sort"

	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lit"
)

// ReadObjs reads all instances of the dataset as objects of the given schema version.
//
// Stream entries must be dicts keyed by field key. Relationship fields hold primary
// key values, or lists of them for to-many fields, and are resolved into object edges
// after all streams are read. Values are taken as stored; references to unknown
// instances keep their raw value but get no edge.
func ReadObjs(d *Dataset, s *dom.Schema) ([]*Obj, error) {
	idx := make(map[string]map[string]*Obj)
	var res []*Obj
	for _, st := range d.Streams {
		m := s.Model(st.Name())
		if m == nil {
			return nil, cor.Errorf("stream %s has no model in schema %s",
				st.Name(), s.Name)
		}
		it, err := st.Iter()
		if err != nil {
			return nil, err
		}
		for {
			l, err := it.Scan()
			if err == io.EOF {
				break
			}
			if err != nil {
				it.Close()
				return nil, err
			}
			dict, ok := l.(*lit.Dict)
			if !ok {
				it.Close()
				return nil, cor.Errorf("stream %s: want dict got %T", st.Name(), l)
			}
			o := NewObj(m)
			for _, kd := range dict.List {
				o.Vals[cor.Keyed(kd.Key)] = kd.Lit
			}
			if id := o.ID(); id != nil {
				mi := idx[m.Key()]
				if mi == nil {
					mi = make(map[string]*Obj)
					idx[m.Key()] = mi
				}
				mi[id.String()] = o
			}
			res = append(res, o)
		}
		it.Close()
	}
	for _, o := range res {
		for i, p := range o.Model.Params {
			f := dom.FieldElem{Param: &o.Model.Params[i], Elem: o.Model.Elems[i]}
			k := f.Kind()
			if k != dom.KindRelOne && k != dom.KindRelMany {
				continue
			}
			val, ok := o.Vals[p.Key()]
			if !ok || val == nil {
				continue
			}
			tm := s.Model(cor.Keyed(f.Ref))
			if tm == nil {
				continue
			}
			ti := idx[tm.Key()]
			link := func(v lit.Lit) {
				t := ti[v.String()]
				if t == nil {
					return
				}
				o.addRel(p.Key(), t)
				if f.Rel != "" {
					t.addRel(cor.Keyed(f.Rel), o)
				}
			}
			if k == dom.KindRelMany {
				if ix, ok := val.(lit.Indexer); ok {
					ix.IterIdx(func(_ int, v lit.Lit) error {
						link(v)
						return nil
					})
				}
			} else {
				link(val)
			}
		}
	}
	return res, nil
}

// NewDataset groups instances into one stream per model in the given key order and
// stamps meta and manifest with the schema versions.
func NewDataset(s *dom.Schema, objs []*Obj, order []string, meta Meta) (*Dataset, error) {
	groups := make(map[string][]lit.Lit)
	for _, o := range objs {
		l, err := objDict(o)
		if err != nil {
			return nil, err
		}
		groups[o.Model.Key()] = append(groups[o.Model.Key()], l)
	}
	if order == nil {
		order = s.Keys()
	} else {
		seen := make(map[string]bool, len(order))
		for _, k := range order {
			seen[k] = true
		}
		var rest []string
		for k := range groups {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		// copy so the caller's slice is never written through
		all := make([]string, 0, len(order)+len(rest))
		all = append(all, order...)
		order = append(all, rest...)
	}
	mf, err := Manifest(nil).Update(s)
	if err != nil {
		return nil, err
	}
	meta.Schema = s.Name
	meta.Order = order
	if v := mf.First(); v.Name != "" {
		meta.Vers, meta.Hash = v.Vers, v.Hash
	}
	d := &Dataset{Meta: meta, Manifest: mf}
	for _, k := range order {
		if s.Model(k) == nil {
			return nil, cor.Errorf("order key %s has no model in schema %s", k, s.Name)
		}
		d.Streams = append(d.Streams, NewLitStream(k, groups[k]))
	}
	return d, nil
}

// WriteObjs writes the instances as a dataset at path, see WriteDataset.
func WriteObjs(path string, s *dom.Schema, objs []*Obj, order []string, meta Meta) error {
	d, err := NewDataset(s, objs, order, meta)
	if err != nil {
		return err
	}
	return WriteDataset(path, d)
}

// objDict renders one instance as a dict in field declaration order. Relationship
// fields emit the primary key of their linked instances, falling back to the stored
// raw value when no edge exists.
func objDict(o *Obj) (*lit.Dict, error) {
	var d lit.Dict
	for i, p := range o.Model.Params {
		key := p.Key()
		f := dom.FieldElem{Param: &o.Model.Params[i], Elem: o.Model.Elems[i]}
		var v lit.Lit
		switch f.Kind() {
		case dom.KindRelOne:
			if edges := o.Rels[key]; len(edges) > 0 {
				v = edges[0].ID()
			} else {
				v = o.Vals[key]
			}
		case dom.KindRelMany:
			if edges := o.Rels[key]; len(edges) > 0 {
				ids := make([]lit.Lit, 0, len(edges))
				for _, e := range edges {
					if id := e.ID(); id != nil {
						ids = append(ids, id)
					}
				}
				v = &lit.List{Data: ids}
			} else {
				v = o.Vals[key]
			}
		default:
			v = o.Vals[key]
		}
		if v == nil {
			continue
		}
		_, err := d.SetKey(key, v)
		if err != nil {
			return nil, err
		}
	}
	return &d, nil
}
