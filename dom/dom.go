package dom

import (
	"fmt"
	"strings"

	"github.com/mb0/xelf/bfr"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lit"
	"github.com/mb0/xelf/typ"
)

// Bit is a bit set used for a number of field options.
type Bit uint64

const (
	BitOpt Bit = 1 << iota
	BitPK
	BitUniq
	BitAuto
	BitRO
	BitMany
	BitExpr
	BitOnto
)

func (Bit) Bits() map[string]int64 { return bitConsts }

// Elem holds additional information for either constants or field parameters.
//
// Ref names a related model in the same schema and Rel the inverse field key under which
// instances of the related model list their referrers. Both are empty for plain fields.
type Elem struct {
	Bits  Bit       `json:"bits,omitempty"`
	Extra *lit.Dict `json:"extra,omitempty"`
	Ref   string    `json:"ref,omitempty"`
	Rel   string    `json:"rel,omitempty"`
}

// Common represents the common name and version of model or schema nodes.
type Common struct {
	Vers  int64     `json:"vers,omitempty"`
	Extra *lit.Dict `json:"extra,omitempty"`
	Name  string    `json:"name,omitempty"`
	key   string
}

func (c *Common) Version() int64 { return c.Vers }

func (c *Common) Key() string {
	if c.key == "" && c.Name != "" {
		c.key = strings.ToLower(c.Name)
	}
	return c.key
}

type Node interface {
	Qualified() string
	Version() int64
	String() string
	WriteBfr(b *bfr.Ctx) error
}

// Model represents either a bits, enum or object type and has extra field information.
type Model struct {
	Common
	typ.Type `json:"typ"`
	Elems    []*Elem `json:"elems,omitempty"`
	schema   string
}

func (m *Model) Qual() string      { return m.schema }
func (m *Model) Qualified() string { return fmt.Sprintf("%s.%s", m.schema, m.Key()) }

// FieldKind is the closed set of field categories the migration engine distinguishes.
type FieldKind int

const (
	KindVal FieldKind = iota
	KindRelOne
	KindRelMany
	KindExpr
)

func (k FieldKind) String() string {
	switch k {
	case KindRelOne:
		return "rel1"
	case KindRelMany:
		return "reln"
	case KindExpr:
		return "expr"
	}
	return "val"
}

type ConstElem struct {
	*typ.Const
	*Elem
}

// Const returns a constant element for key or nil.
func (m *Model) Const(key string) ConstElem {
	if m != nil {
		for i, c := range m.Consts {
			if c.Key() == key {
				return ConstElem{&m.Consts[i], m.Elems[i]}
			}
		}
	}
	return ConstElem{}
}

type FieldElem struct {
	*typ.Param
	*Elem
}

// Field returns a field element for key or nil.
func (m *Model) Field(key string) FieldElem {
	if m != nil {
		_, i, err := m.ParamByKey(key)
		if err == nil {
			return FieldElem{&m.Params[i], m.Elems[i]}
		}
	}
	return FieldElem{}
}

// Kind returns the field category. Fields with a model reference are relationships,
// to-many when the many bit is set, and fields with the expr bit hold expressions.
func (f FieldElem) Kind() FieldKind {
	switch {
	case f.Elem == nil:
		return KindVal
	case f.Bits&BitExpr != 0:
		return KindExpr
	case f.Ref == "":
		return KindVal
	case f.Bits&BitMany != 0:
		return KindRelMany
	}
	return KindRelOne
}

// PK returns the primary key field element or an empty element if the model has none.
func (m *Model) PK() FieldElem {
	if m != nil {
		for i, e := range m.Elems {
			if e.Bits&BitPK != 0 && i < len(m.Params) {
				return FieldElem{&m.Params[i], e}
			}
		}
	}
	return FieldElem{}
}

// Schema is a namespace for models of one schema version. Two loaded schema versions
// never share model tables; identity across versions is established only by an explicit
// mapping, never by name lookup in a shared registry.
type Schema struct {
	Common
	Path   string   `json:"path,omitempty"`
	Models []*Model `json:"models"`
}

func (s *Schema) Qualified() string { return s.Key() }

// Model returns a model for key or nil.
func (s *Schema) Model(key string) *Model {
	if s != nil {
		for _, m := range s.Models {
			if m.Key() == key {
				return m
			}
		}
	}
	return nil
}

// Keys returns the model keys in declaration order.
func (s *Schema) Keys() []string {
	res := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		res = append(res, m.Key())
	}
	return res
}

var bitConsts = map[string]int64{
	"Opt":  int64(BitOpt),
	"PK":   int64(BitPK),
	"Uniq": int64(BitUniq),
	"Auto": int64(BitAuto),
	"RO":   int64(BitRO),
	"Many": int64(BitMany),
	"Expr": int64(BitExpr),
	"Onto": int64(BitOnto),
}

func setNode(n *Common, x lit.Keyed) error {
	switch x.Key {
	case "name":
		n.Name = x.Lit.(lit.Character).Char()
	case "vers":
		n.Vers = int64(x.Lit.(lit.Numeric).Num())
	default:
		if n.Extra == nil {
			n.Extra = &lit.Dict{}
		}
		_, err := n.Extra.SetKey(x.Key, x.Lit)
		return err
	}
	return nil
}

func addElemFromDict(m *Model, d *lit.Dict) error {
	var el Elem
	var p typ.Param
	var c typ.Const
	for _, x := range d.List {
		switch x.Key {
		case "name":
			p.Name = x.Lit.(lit.Character).Char()
			c.Name = p.Name
		case "val":
			c.Val = int64(x.Lit.(lit.Numeric).Num())
		case "ref":
			el.Ref = x.Lit.(lit.Character).Char()
		case "rel":
			el.Rel = x.Lit.(lit.Character).Char()
		case "typ":
			t, err := typ.ParseSym(x.Lit.(lit.Character).Char(), nil)
			if err != nil {
				return err
			}
			p.Type = t
		case "bits":
			el.Bits = Bit(x.Lit.(lit.Numeric).Num())
		default:
			if el.Extra == nil {
				el.Extra = &lit.Dict{}
			}
			_, err := el.Extra.SetKey(x.Key, x.Lit)
			if err != nil {
				return err
			}
		}
	}
	if m.Kind&typ.KindPrim != 0 {
		m.Consts = append(m.Consts, c)
	} else {
		m.Params = append(m.Params, p)
	}
	m.Elems = append(m.Elems, &el)
	return nil
}

func (m *Model) FromDict(d *lit.Dict) (err error) {
	if m.Info == nil {
		m.Type.Kind = typ.KindObj
		m.Info = &typ.Info{}
	}
	for _, x := range d.List {
		switch x.Key {
		case "typ":
			t, err := typ.ParseSym(x.Lit.(lit.Character).Char(), nil)
			if err != nil {
				return err
			}
			m.Type.Kind = t.Kind
		case "elems":
			idx, ok := x.Lit.(lit.Indexer)
			if !ok {
				return cor.Errorf("expect indexer got %T", x.Lit)
			}
			if len(m.Elems) == 0 {
				n := idx.Len()
				m.Elems = make([]*Elem, 0, n)
				m.Params = make([]typ.Param, 0, n)
			}
			err = idx.IterIdx(func(i int, el lit.Lit) error {
				return addElemFromDict(m, el.(*lit.Dict))
			})
		default:
			err = setNode(&m.Common, x)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
func (m *Model) String() string { return bfr.String(m) }
func (m *Model) WriteBfr(b *bfr.Ctx) error {
	b.WriteString("{name:")
	b.Quote(m.Name)
	b.WriteString(" typ:")
	b.Quote(m.Kind.String())
	b.WriteString(" elems:[")
	for i, e := range m.Elems {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		if len(m.Params) > 0 {
			p := m.Params[i]
			if p.Name != "" {
				b.WriteString("name:")
				b.Quote(p.Name)
				b.WriteByte(' ')
			}
			b.WriteString("typ:")
			b.Quote(p.Type.String())
		} else if len(m.Consts) > 0 {
			c := m.Consts[i]
			if c.Name != "" {
				b.WriteString("name:")
				b.Quote(string(c.Name))
				b.WriteByte(' ')
			}
			b.Fmt("val:%d", c.Val)
		}
		if e.Bits != 0 {
			b.Fmt(" bits:%d", e.Bits)
		}
		if e.Ref != "" {
			b.Fmt(" ref:'%s'", e.Ref)
		}
		if e.Rel != "" {
			b.Fmt(" rel:'%s'", e.Rel)
		}
		err := writeExtra(b, e.Extra)
		if err != nil {
			return err
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	err := writeExtra(b, m.Extra)
	b.WriteByte('}')
	return err
}

func (s *Schema) FromDict(d *lit.Dict) (err error) {
	for _, x := range d.List {
		switch x.Key {
		case "models":
			idx, ok := x.Lit.(lit.Indexer)
			if !ok {
				return cor.Errorf("expect indexer got %T", x.Lit)
			}
			if len(s.Models) == 0 {
				s.Models = make([]*Model, 0, idx.Len())
			}
			err = idx.IterIdx(func(i int, el lit.Lit) error {
				var m Model
				m.schema = s.Key()
				err := m.FromDict(el.(*lit.Dict))
				m.Ref = m.schema + "." + m.Name
				s.Models = append(s.Models, &m)
				return err
			})
		default:
			err = setNode(&s.Common, x)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
func (s *Schema) String() string { return bfr.String(s) }
func (s *Schema) WriteBfr(b *bfr.Ctx) error {
	b.WriteString("{name:")
	b.Quote(s.Name)
	if len(s.Models) > 0 {
		b.WriteString(" models:[")
		for i, m := range s.Models {
			if i > 0 {
				b.WriteByte(' ')
			}
			err := m.WriteBfr(b)
			if err != nil {
				return err
			}
		}
		b.WriteByte(']')
	}
	err := writeExtra(b, s.Extra)
	b.WriteByte('}')
	return err
}

func writeExtra(b *bfr.Ctx, extra *lit.Dict) (err error) {
	if extra != nil && len(extra.List) > 0 {
		for _, x := range extra.List {
			b.WriteByte(' ')
			b.WriteString(x.Key)
			b.WriteByte(':')
			if x.Lit.Typ().Kind&typ.KindAny != 0 {
				err = x.Lit.WriteBfr(b)
			} else {
				err = b.Quote(x.Lit.String())
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
