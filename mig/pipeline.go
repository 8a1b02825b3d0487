package mig

import (
	"fmt"
	"os"

	"github.com/mb0/otab/dom"
	"github.com/mb0/otab/log"
	"github.com/mb0/xelf/cor"
)

// Pipeline runs migration specs over dataset files.
type Pipeline struct {
	Loader *dom.Loader
	Log    log.Logger
	Meta   *Meta // optional meta override for written datasets
}

func NewPipeline() *Pipeline {
	return &Pipeline{Loader: &dom.Loader{}, Log: log.Root}
}

// Run validates the spec, prepares one step per adjacent schema pair and migrates
// every file over the full sequence.
//
// Files are independent of each other; a failed file leaves no partial output and
// does not stop the remaining files. All file failures are collected into one error.
func (p *Pipeline) Run(s *Spec) error {
	err := s.Validate()
	if err != nil {
		return err
	}
	s.Standardize()
	steps, err := s.Steps()
	if err != nil {
		return err
	}
	l := p.Loader
	if l == nil {
		l = &dom.Loader{}
	}
	for _, st := range steps {
		if err = st.Prepare(l); err != nil {
			return err
		}
	}
	var probs []string
	for i := range s.Files {
		err = p.runFile(s, steps, i)
		if err != nil {
			p.log().Error("migrate failed", "file", s.Files[i], "err", err)
			probs = append(probs, fmt.Sprintf("%s: %v", s.Files[i], err))
			continue
		}
		p.log().Debug("migrated", "file", s.Files[i], "out", s.MigratedPath(i))
	}
	if len(probs) > 0 {
		return &SpecError{s.Name, probs}
	}
	return nil
}

func (p *Pipeline) runFile(s *Spec, steps []*Step, i int) error {
	out := s.MigratedPath(i)
	if !s.InPlace {
		if _, err := os.Stat(out); err == nil {
			return cor.Errorf("output %s already exists", out)
		}
	}
	ds, err := ReadDataset(s.Files[i])
	if err != nil {
		return err
	}
	objs, err := ReadObjs(ds, steps[0].Old)
	order := ds.Keys()
	meta := ds.Meta
	ds.Close()
	if err != nil {
		return err
	}
	if p.Meta != nil {
		meta = *p.Meta
	}
	for _, st := range steps {
		objs, err = st.Apply(objs)
		if err != nil {
			return err
		}
		order = mapOrder(order, st.Mapping)
	}
	last := steps[len(steps)-1]
	return WriteObjs(out, last.New, objs, order, meta)
}

// mapOrder keeps the position of retained models, drops deleted ones and appends
// added models alphabetically.
func mapOrder(order []string, m *Mapping) []string {
	res := make([]string, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		nk, ok := m.Models[k]
		if !ok || seen[nk] {
			continue
		}
		res = append(res, nk)
		seen[nk] = true
	}
	for _, k := range m.AddedModels() {
		if !seen[k] {
			res = append(res, k)
		}
	}
	return res
}

func (p *Pipeline) log() log.Logger {
	if p.Log != nil {
		return p.Log
	}
	return log.Root
}
