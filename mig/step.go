package mig

import (
	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
)

// State tracks the lifecycle of a migration step.
type State int

const (
	Unprepared State = iota
	Prepared
	Applied
)

// Hook transforms instances around one migration step. Hooks may mutate or replace
// the instance list; any error aborts the step.
type Hook interface {
	Before(*Step, []*Obj) ([]*Obj, error)
	After(*Step, []*Obj) ([]*Obj, error)
}

var hooks = make(map[string]Hook)

// RegisterHook makes a hook available under name so specs and change records can refer
// to it. It panics when the name is taken. Not safe for concurrent use.
func RegisterHook(name string, h Hook) {
	if _, ok := hooks[name]; ok {
		panic("hook already registered: " + name)
	}
	hooks[name] = h
}

// LookupHook returns the hook registered under name or an error.
func LookupHook(name string) (Hook, error) {
	h, ok := hooks[name]
	if !ok {
		return nil, cor.Errorf("no hook registered as %s", name)
	}
	return h, nil
}

// Step migrates instances between two adjacent schema versions.
type Step struct {
	OldPath string
	NewPath string
	Renames []Rename
	Fields  []FieldRename
	Hook    Hook

	State    State
	Old, New *dom.Schema
	Mapping  *Mapping
	Scratch  string
}

// Prepare loads both schema versions, builds and checks the mapping and computes the
// scratch name. It is a no-op when the step is already prepared.
func (s *Step) Prepare(l *dom.Loader) error {
	if s.State != Unprepared {
		return nil
	}
	old, err := l.Load(s.OldPath)
	if err != nil {
		return err
	}
	new, err := l.Load(s.NewPath)
	if err != nil {
		return err
	}
	m, err := BuildMapping(old, new, s.Renames, s.Fields)
	if err != nil {
		return err
	}
	if err = m.Check(); err != nil {
		return err
	}
	s.Old, s.New, s.Mapping = old, new, m
	s.Scratch = ScratchName(old)
	s.State = Prepared
	return nil
}

// Apply runs the hook around migrating the instances. The step must be prepared.
func (s *Step) Apply(objs []*Obj) ([]*Obj, error) {
	if s.State == Unprepared {
		return nil, cor.Errorf("step %s to %s not prepared", s.OldPath, s.NewPath)
	}
	var err error
	if s.Hook != nil {
		objs, err = s.Hook.Before(s, objs)
		if err != nil {
			return nil, err
		}
	}
	objs, err = Migrate(objs, s.Mapping)
	if err != nil {
		return nil, err
	}
	if s.Hook != nil {
		objs, err = s.Hook.After(s, objs)
		if err != nil {
			return nil, err
		}
	}
	s.State = Applied
	return objs, nil
}
