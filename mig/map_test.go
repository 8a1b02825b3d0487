package mig

import (
	"testing"

	"github.com/mb0/otab/dom/domtest"
	"github.com/stretchr/testify/require"
)

func TestBuildMappingAuto(t *testing.T) {
	old := domtest.Must(domtest.New(domtest.PersonRaw, ""))
	new := domtest.Must(domtest.New(domtest.PersonV2Raw, ""))
	m, err := BuildMapping(old.Schema, new.Schema,
		[]Rename{{"Group", "Team"}},
		[]FieldRename{{FieldRef{"Person", "Name"}, FieldRef{"Person", "FullName"}}})
	require.NoError(t, err)
	require.Equal(t, "team", m.Models["group"])
	require.Equal(t, "person", m.Models["person"])
	require.Equal(t, "member", m.Models["member"])
	require.Empty(t, m.Deleted)
	require.Equal(t, []string{"note"}, m.AddedModels())

	ref, ok := m.MappedField(FieldRef{"person", "name"})
	require.True(t, ok)
	require.Equal(t, FieldRef{"person", "fullname"}, ref)
	ref, ok = m.MappedField(FieldRef{"member", "person"})
	require.True(t, ok)
	require.Equal(t, FieldRef{"member", "person"}, ref)
	_, ok = m.MappedField(FieldRef{"member", "joined"})
	require.False(t, ok)
}

func TestBuildMappingAggregates(t *testing.T) {
	old := domtest.Must(domtest.New(domtest.PersonRaw, ""))
	new := domtest.Must(domtest.New(domtest.PersonV2Raw, ""))
	_, err := BuildMapping(old.Schema, new.Schema,
		[]Rename{{"Nope", "Team"}, {"Group", "Team"}},
		[]FieldRename{{FieldRef{"Person", "Name"}, FieldRef{"Note", "Text"}}})
	var me *MapError
	require.ErrorAs(t, err, &me)
	require.Len(t, me.Probs, 3)
	require.Contains(t, me.Probs[0], "no model Nope in old schema")
	require.Contains(t, me.Probs[1], "duplicate model rename to Team")
	require.Contains(t, me.Probs[2], "inconsistent with model renames")
}

const badInverseRaw = `{name:'person' models:[
	{name:'Group' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Name' typ:'str'}
	]}
	{name:'Person' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Name'   typ:'str'}
		{name:'Family' typ:'int' ref:'Group' rel:'members'}
	]}
	{name:'Member' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Person' typ:'int' ref:'Person' rel:'people'}
		{name:'Group'  typ:'int' ref:'Group' rel:'roster'}
		{name:'Joined' typ:'time'}
	]}
]}`

func TestCheckInverseName(t *testing.T) {
	old := domtest.Must(domtest.New(domtest.PersonRaw, ""))
	bad := domtest.Must(domtest.New(badInverseRaw, ""))
	m, err := BuildMapping(old.Schema, bad.Schema, nil, nil)
	require.NoError(t, err)
	err = m.Check()
	var ce *CheckError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Probs, 1)
	require.Contains(t, ce.Probs[0], "Member.Person")
	require.Contains(t, ce.Probs[0], "inverse name")
}

const refV1Raw = `{name:'ref' models:[
	{name:'Group' elems:[{name:'ID' typ:'int' bits:2}]}
	{name:'Person' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Family' typ:'int' ref:'Group' rel:'members'}
	]}
]}`

const refV2Raw = `{name:'ref' models:[
	{name:'Other' elems:[{name:'ID' typ:'int' bits:2}]}
	{name:'Person' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Family' typ:'int' ref:'Other' rel:'members'}
	]}
]}`

const refV3Raw = `{name:'ref' models:[
	{name:'Group' elems:[{name:'ID' typ:'int' bits:2}]}
	{name:'Other' elems:[{name:'ID' typ:'int' bits:2}]}
	{name:'Person' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Family' typ:'int' ref:'Other' rel:'members'}
	]}
]}`

func TestCheckRelatedModels(t *testing.T) {
	old := domtest.Must(domtest.New(refV1Raw, ""))

	// the relationship target was deleted
	del := domtest.Must(domtest.New(refV2Raw, ""))
	m, err := BuildMapping(old.Schema, del.Schema, nil, nil)
	require.NoError(t, err)
	var ce *CheckError
	require.ErrorAs(t, m.Check(), &ce)
	require.Contains(t, ce.Probs[0], "related model Group is deleted")

	// the relationship points at a model the target does not map to
	mis := domtest.Must(domtest.New(refV3Raw, ""))
	m, err = BuildMapping(old.Schema, mis.Schema, nil, nil)
	require.NoError(t, err)
	require.ErrorAs(t, m.Check(), &ce)
	require.Contains(t, ce.Probs[0], "does not map to")
}
