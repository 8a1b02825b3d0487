package mig

import (
	"testing"

	"github.com/mb0/otab/dom/domtest"
	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/lit"
	"github.com/stretchr/testify/require"
)

// memberHook drops member instances before migration and adds a group afterwards.
type memberHook struct {
	fail bool
}

func (h *memberHook) Before(s *Step, objs []*Obj) ([]*Obj, error) {
	if h.fail {
		return nil, cor.Errorf("before failed")
	}
	var res []*Obj
	for _, o := range objs {
		if o.Model.Key() != "member" {
			res = append(res, o)
		}
	}
	return res, nil
}

func (h *memberHook) After(s *Step, objs []*Obj) ([]*Obj, error) {
	g := NewObj(s.New.Model("group"))
	g.Vals["id"] = lit.Int(99)
	g.Vals["name"] = lit.Str("Extras")
	return append(objs, g), nil
}

func noopStep(t *testing.T, h Hook) (*Step, []*Obj) {
	t.Helper()
	f := domtest.Must(domtest.PersonFixture())
	new := domtest.Must(domtest.New(domtest.PersonRaw, ""))
	m, err := BuildMapping(f.Schema, new.Schema, nil, nil)
	require.NoError(t, err)
	st := &Step{Old: f.Schema, New: new.Schema, Mapping: m,
		Scratch: ScratchName(f.Schema), State: Prepared, Hook: h}
	return st, fixtureObjs(t, f)
}

func TestStepApplyHooks(t *testing.T) {
	st, objs := noopStep(t, &memberHook{})
	res, err := st.Apply(objs)
	require.NoError(t, err)
	require.Equal(t, Applied, st.State)
	require.Empty(t, objsByModel(res, "member"))
	require.Len(t, objsByModel(res, "person"), 3)
	require.Len(t, objsByModel(res, "group"), 5)
	require.Equal(t, "Extras", charVal(findObj(res, "group", "99").Vals["name"]))
}

func TestStepApplyHookError(t *testing.T) {
	st, objs := noopStep(t, &memberHook{fail: true})
	_, err := st.Apply(objs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "before failed")
	require.Equal(t, Prepared, st.State)
}

func TestRegisterHook(t *testing.T) {
	h := &memberHook{}
	RegisterHook("drop-members", h)
	got, err := LookupHook("drop-members")
	require.NoError(t, err)
	require.Same(t, h, got)
	require.Panics(t, func() { RegisterHook("drop-members", h) })
}
