package mig

import (
	"fmt"
	"strings"

	"github.com/mb0/otab/dom"
	"github.com/mb0/xelf/cor"
)

// CheckError reports structural inconsistencies between two mapped schema versions.
type CheckError struct {
	Probs []string
}

func (e *CheckError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema check: %d inconsistenc(ies)", len(e.Probs))
	for _, p := range e.Probs {
		b.WriteString("\n\t")
		b.WriteString(p)
	}
	return b.String()
}

type pair struct {
	old, new *dom.Model
}

// Check verifies that the mapped models of both schema versions agree structurally.
//
// Checks run in groups and later groups only run when all earlier ones pass: first
// that both models of every pair exist and report the mapped names, then that they
// have the same structural kind, then that retained fields keep their field kind,
// and last that retained relationships keep their inverse name and point at mapped
// counterparts. Within a group every violation is reported.
func (m *Mapping) Check() error {
	var probs []string
	pairs := make([]pair, 0, len(m.Models))
	for _, om := range m.Old.Models {
		nk, ok := m.Models[om.Key()]
		if !ok {
			continue
		}
		nm := m.New.Model(nk)
		if nm == nil {
			probs = append(probs, fmt.Sprintf("%s: mapped model %s does not exist",
				om.Name, nk))
			continue
		}
		if cor.Keyed(nm.Name) != nk {
			probs = append(probs, fmt.Sprintf("%s: mapped model reports name %s for key %s",
				om.Name, nm.Name, nk))
			continue
		}
		pairs = append(pairs, pair{om, nm})
	}
	if len(probs) > 0 {
		return &CheckError{probs}
	}
	for _, p := range pairs {
		if p.old.Kind != p.new.Kind {
			probs = append(probs, fmt.Sprintf("%s: kind %s does not match %s",
				p.old.Name, p.old.Kind, p.new.Kind))
		}
	}
	if len(probs) > 0 {
		return &CheckError{probs}
	}
	for _, p := range pairs {
		for _, f := range p.old.Params {
			of := p.old.Field(f.Key())
			nref, ok := m.MappedField(FieldRef{p.old.Key(), f.Key()})
			if !ok {
				continue
			}
			nf := p.new.Field(nref.Field)
			if of.Kind() != nf.Kind() {
				probs = append(probs, fmt.Sprintf("%s.%s: field kind %s does not match %s",
					p.old.Name, f.Name, of.Kind(), nf.Kind()))
			}
		}
	}
	if len(probs) > 0 {
		return &CheckError{probs}
	}
	for _, p := range pairs {
		for _, f := range p.old.Params {
			of := p.old.Field(f.Key())
			if k := of.Kind(); k != dom.KindRelOne && k != dom.KindRelMany {
				continue
			}
			nref, ok := m.MappedField(FieldRef{p.old.Key(), f.Key()})
			if !ok {
				continue
			}
			nf := p.new.Field(nref.Field)
			ot := cor.Keyed(of.Ref)
			mt, ok := m.Models[ot]
			if !ok {
				probs = append(probs, fmt.Sprintf("%s.%s: related model %s is deleted",
					p.old.Name, f.Name, of.Ref))
				continue
			}
			if cor.Keyed(nf.Ref) != mt {
				probs = append(probs, fmt.Sprintf("%s.%s: related model %s does not map to %s",
					p.old.Name, f.Name, of.Ref, nf.Ref))
			}
			if cor.Keyed(of.Rel) != cor.Keyed(nf.Rel) {
				probs = append(probs, fmt.Sprintf("%s.%s: inverse name %s does not match %s",
					p.old.Name, f.Name, of.Rel, nf.Rel))
			}
		}
	}
	if len(probs) > 0 {
		return &CheckError{probs}
	}
	return nil
}
