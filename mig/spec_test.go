package mig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const specConfig = `
main:
  files: [d1]
  schemas: [s1.xelf, s2.xelf]
  renamed_models:
    - [[Group, Team]]
  renamed_fields:
    - [[[Person, Name], [Person, FullName]]]
`

func TestLoadSpecs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(specConfig), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d1"), 0755))

	specs, err := LoadSpecs(path)
	require.NoError(t, err)
	s := specs["main"]
	require.NotNil(t, s)
	require.Equal(t, "main", s.Name)
	require.Equal(t, Rename{"Group", "Team"}, s.Renames[0][0])
	require.Equal(t, FieldRename{
		Old: FieldRef{"Person", "Name"},
		New: FieldRef{"Person", "FullName"},
	}, s.Fields[0][0])
	require.NoError(t, s.Validate())

	s.Standardize()
	require.Equal(t, filepath.Join(dir, "d1"), s.Files[0])
	require.Equal(t, filepath.Join(dir, "s2.xelf"), s.Schemas[1])
	require.Equal(t, filepath.Join(dir, "d1_migrated"), s.MigratedPath(0))
}

func TestSpecValidateAggregates(t *testing.T) {
	s := &Spec{Name: "bad", Schemas: []string{"only.xelf"},
		Hooks: []string{"missing"}}
	err := s.Validate()
	var se *SpecError
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Probs, 4)
	require.Contains(t, se.Probs[0], "at least two schemas")
	require.Contains(t, se.Probs[1], "no files to migrate")
	require.Contains(t, se.Probs[2], "hook names")
	require.Contains(t, se.Probs[3], "no hook registered")
}

func TestMigratedPath(t *testing.T) {
	s := &Spec{Files: []string{"/tmp/data.zip"}, Schemas: []string{"a", "b"}}
	s.Standardize()
	require.Equal(t, "/tmp/data_migrated.zip", s.MigratedPath(0))

	s = &Spec{Files: []string{"/tmp/data.zip"}, Schemas: []string{"a", "b"}, InPlace: true}
	s.Standardize()
	require.Equal(t, "/tmp/data.zip", s.MigratedPath(0))

	s = &Spec{Files: []string{"/tmp/data.zip"}, Schemas: []string{"a", "b"},
		Migrated: []string{"/tmp/out.zip"}}
	s.Standardize()
	require.Equal(t, "/tmp/out.zip", s.MigratedPath(0))
}
