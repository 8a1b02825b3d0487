package mig

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mb0/otab/dom"
	"github.com/mb0/otab/dom/domtest"
	"github.com/mb0/otab/log"
	"github.com/stretchr/testify/require"
)

const personV3Raw = `{name:'person' vers:3 models:[
	{name:'Crew' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Name' typ:'str'}
	]}
	{name:'Person' elems:[
		{name:'ID'       typ:'int' bits:2}
		{name:'FullName' typ:'str'}
		{name:'Family'   typ:'int' ref:'Crew' rel:'members'}
	]}
	{name:'Member' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Person' typ:'int' ref:'Person' rel:'memberships'}
		{name:'Group'  typ:'int' ref:'Crew' rel:'roster'}
	]}
	{name:'Note' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Text' typ:'str'}
	]}
]}`

func writeSchema(t *testing.T, dir, name, raw string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))
	return path
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	s1 := writeSchema(t, dir, "s1.xelf", domtest.PersonRaw)
	s2 := writeSchema(t, dir, "s2.xelf", domtest.PersonV2Raw)
	s3 := writeSchema(t, dir, "s3.xelf", personV3Raw)
	f := domtest.Must(domtest.PersonFixture())
	objs := fixtureObjs(t, f)
	data := filepath.Join(dir, "data")
	require.NoError(t, WriteObjs(data, f.Schema, objs, nil, Meta{}))

	spec := &Spec{
		Name:    "chain",
		Files:   []string{data},
		Schemas: []string{s1, s2, s3},
		Renames: [][]Rename{{{"Group", "Team"}}, {{"Team", "Crew"}}},
		Fields: [][]FieldRename{
			{{FieldRef{"Person", "Name"}, FieldRef{"Person", "FullName"}}},
			{},
		},
	}
	p := NewPipeline()
	p.Log = &log.Testing{TB: t}
	require.NoError(t, p.Run(spec))

	out := data + "_migrated"
	ds, err := ReadDataset(out)
	require.NoError(t, err)
	defer ds.Close()
	require.Equal(t, "person", ds.Meta.Schema)
	// retained models keep their order, added models append alphabetically
	require.Equal(t, []string{"crew", "person", "member", "note"}, ds.Keys())

	var l dom.Loader
	final, err := l.Load(s3)
	require.NoError(t, err)
	res, err := ReadObjs(ds, final)
	require.NoError(t, err)
	require.Len(t, res, 12)
	p1 := findObj(res, "person", "1")
	require.Equal(t, "Martin", charVal(p1.Vals["fullname"]))
	crew1 := findObj(res, "crew", "1")
	require.Equal(t, "Schnabels", charVal(crew1.Vals["name"]))
	require.Same(t, crew1, p1.Rels["family"][0])
	require.Len(t, findObj(res, "crew", "4").Rels["roster"], 2)
	require.Len(t, objsByModel(res, "member"), 5)

	// a second run refuses to overwrite the migrated output
	p.Log = nil
	err = p.Run(spec)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	require.Contains(t, se.Error(), "already exists")
}

func TestDatasetDirRoundTrip(t *testing.T) {
	f := domtest.Must(domtest.PersonFixture())
	objs := fixtureObjs(t, f)
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, WriteObjs(path, f.Schema, objs, nil, Meta{}))

	// every member must be a complete gzip stream with its trailer
	data, err := os.ReadFile(filepath.Join(path, "person.json.gz"))
	require.NoError(t, err)
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.Contains(t, string(raw), "Martin")

	ds, err := ReadDataset(path)
	require.NoError(t, err)
	defer ds.Close()
	require.Equal(t, []string{"group", "person", "member"}, ds.Keys())
	res, err := ReadObjs(ds, f.Schema)
	require.NoError(t, err)
	require.Len(t, res, len(objs))
	require.Len(t, findObj(res, "group", "4").Rels["roster"], 2)
}

func TestNewDatasetOrder(t *testing.T) {
	f := domtest.Must(domtest.PersonFixture())
	objs := fixtureObjs(t, f)
	backing := []string{"group", "person", "pad1", "pad2"}
	d, err := NewDataset(f.Schema, objs, backing[:2], Meta{})
	require.NoError(t, err)
	require.Equal(t, []string{"group", "person", "member"}, d.Meta.Order)
	require.Equal(t, []string{"pad1", "pad2"}, backing[2:],
		"added models wrote into the caller's order slice")
}

func TestDatasetZipRoundTrip(t *testing.T) {
	f := domtest.Must(domtest.PersonFixture())
	objs := fixtureObjs(t, f)
	path := filepath.Join(t.TempDir(), "data.zip")
	require.NoError(t, WriteObjs(path, f.Schema, objs, nil, Meta{URL: "example.org/repo"}))

	ds, err := ReadDataset(path)
	require.NoError(t, err)
	defer ds.Close()
	require.Equal(t, "person", ds.Meta.Schema)
	require.Equal(t, "example.org/repo", ds.Meta.URL)
	require.Equal(t, []string{"group", "person", "member"}, ds.Keys())
	v, ok := ds.Manifest.Get("person")
	require.True(t, ok)
	require.Equal(t, int64(1), v.Vers)
	require.NotEmpty(t, v.Hash)

	res, err := ReadObjs(ds, f.Schema)
	require.NoError(t, err)
	require.Len(t, res, len(objs))
	require.Equal(t, "Martin", charVal(findObj(res, "person", "1").Vals["name"]))
	require.Len(t, findObj(res, "person", "2").Rels["memberships"], 2)
}
