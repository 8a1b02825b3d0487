package mig

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mb0/otab/vcs"
	"github.com/stretchr/testify/require"
)

func testRepo(t *testing.T) *vcs.Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	r, err := vcs.Init(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Config("user.email", "test@example.org"))
	require.NoError(t, r.Config("user.name", "test"))
	return r
}

func commitFile(t *testing.T, r *vcs.Repo, name, data, msg string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(r.Path(name), []byte(data), 0644))
	require.NoError(t, r.Add(name))
	hash, err := r.CommitAll(msg)
	require.NoError(t, err)
	return hash
}

func TestChangeFilename(t *testing.T) {
	ts := time.Date(2020, 5, 4, 3, 2, 1, 0, time.UTC)
	hash := "0123456789abcdef0123456789abcdef01234567"
	require.Equal(t, "schema_changes_2020-05-04-03-02-01_0123456.yaml",
		ChangeFilename(ts, hash))
}

func TestChangeRoundTrip(t *testing.T) {
	r := testRepo(t)
	hash := commitFile(t, r, "schema.xelf", "{}", "init")
	c := &Change{Hash: hash,
		Renames: []Rename{{"Group", "Team"}},
		Fields: []FieldRename{
			{FieldRef{"Person", "Name"}, FieldRef{"Person", "FullName"}},
		},
	}
	path, err := c.Write(r.Path(ChangeDir))
	require.NoError(t, err)
	require.Equal(t, filepath.Dir(path), r.Path(ChangeDir))

	cs, err := LoadChanges(r)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	require.Equal(t, hash, cs[0].Hash)
	require.Equal(t, Rename{"Group", "Team"}, cs[0].Renames[0])
	require.Equal(t, "FullName", cs[0].Fields[0].New.Field)
}

func TestLoadChangesAggregates(t *testing.T) {
	r := testRepo(t)
	commitFile(t, r, "schema.xelf", "{}", "init")
	short := &Change{Hash: "abc"}
	_, err := short.Write(r.Path(ChangeDir))
	require.NoError(t, err)
	unknown := &Change{Hash: "0123456789abcdef0123456789abcdef01234567"}
	_, err = unknown.Write(r.Path(ChangeDir))
	require.NoError(t, err)

	_, err = LoadChanges(r)
	var ce *ChangeError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Probs, 2)
	require.Contains(t, ce.Error(), "not a full sha1")
	require.Contains(t, ce.Error(), "no commit")
}
