package mig

import (
	"path/filepath"
	"testing"

	"github.com/mb0/otab/dom/domtest"
	"github.com/mb0/otab/log"
	"github.com/stretchr/testify/require"
)

func TestAutoRun(t *testing.T) {
	r := testRepo(t)
	c1 := commitFile(t, r, "schema.xelf", domtest.PersonRaw, "v1")
	c2 := commitFile(t, r, "schema.xelf", domtest.PersonV2Raw, "v2")
	rec := &Change{Hash: c2,
		Renames: []Rename{{"Group", "Team"}},
		Fields: []FieldRename{
			{FieldRef{"Person", "Name"}, FieldRef{"Person", "FullName"}},
		},
	}
	_, err := rec.Write(r.Path(ChangeDir))
	require.NoError(t, err)
	require.NoError(t, r.Add(ChangeDir))
	_, err = r.CommitAll("record changes")
	require.NoError(t, err)

	f := domtest.Must(domtest.PersonFixture())
	objs := fixtureObjs(t, f)
	data := filepath.Join(t.TempDir(), "data")
	require.NoError(t, WriteObjs(data, f.Schema, objs, nil, Meta{Commit: c1}))

	a := NewAuto(&Config{Files: []string{data}, URL: r.Dir, Schema: "schema.xelf"})
	a.Log = &log.Testing{TB: t}
	a.Strict = true
	require.NoError(t, a.Validate())
	require.NoError(t, a.Run())
	require.Empty(t, a.repos, "clones not cleaned up")

	ds, err := ReadDataset(data)
	require.NoError(t, err)
	defer ds.Close()
	require.Equal(t, c2, ds.Meta.Commit)
	require.Equal(t, r.Dir, ds.Meta.URL)

	v2 := domtest.Must(domtest.PersonV2Fixture())
	res, err := ReadObjs(ds, v2.Schema)
	require.NoError(t, err)
	require.Equal(t, "Martin", charVal(findObj(res, "person", "1").Vals["fullname"]))
	require.Equal(t, "Schnabels", charVal(findObj(res, "team", "1").Vals["name"]))

	// a second run finds no applicable changes and leaves the file alone
	require.NoError(t, a.Run())
	ds2, err := ReadDataset(data)
	require.NoError(t, err)
	defer ds2.Close()
	require.Equal(t, c2, ds2.Meta.Commit)
}
