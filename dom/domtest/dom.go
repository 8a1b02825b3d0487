// Package domtest has default schemas and helpers for testing.
package domtest

import (
	"strings"

	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lit"
)

type Fixture struct {
	*dom.Schema
	Fix *lit.Dict
}

func New(raw, fix string) (*Fixture, error) {
	var l dom.Loader
	s, err := l.Read(strings.NewReader(raw), "fixture")
	if err != nil {
		return nil, cor.Errorf("schema: %w", err)
	}
	res := &Fixture{Schema: s}
	if fix != "" {
		v, err := lit.Read(strings.NewReader(fix))
		if err != nil {
			return nil, cor.Errorf("fixture: %w", err)
		}
		d, ok := v.(*lit.Dict)
		if !ok {
			return nil, cor.Errorf("want dict got %T", v)
		}
		res.Fix = d
	}
	return res, nil
}

func Must(f *Fixture, err error) *Fixture {
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Fixture) Keys() []string {
	if f.Fix == nil {
		return nil
	}
	return f.Fix.Keys()
}

// List returns the fixture instances for a model key.
func (f *Fixture) List(key string) ([]lit.Lit, error) {
	l, _ := f.Fix.Key(key)
	idxr, ok := l.(lit.Indexer)
	if !ok {
		return nil, cor.Errorf("want idxr got %T", l)
	}
	res := make([]lit.Lit, 0, idxr.Len())
	err := idxr.IterIdx(func(i int, el lit.Lit) error {
		res = append(res, el)
		return nil
	})
	return res, err
}
