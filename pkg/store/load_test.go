package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodMol2 = "@<TRIPOS>MOLECULE\nGOOD\n1\nSMALL\nNO_CHARGES\n\n@<TRIPOS>ATOM\n1 C1 0.0 0.0 0.0 C.3\n"

// badMol2 has a non-numeric atom id: a fatal parse error for the whole
// file.
const badMol2 = "@<TRIPOS>MOLECULE\nBAD\n1\n\n\n\n\n@<TRIPOS>ATOM\noops C1 0.0 0.0 0.0 C.3\n"

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "good.mol2", goodMol2)
	st := openTemp(t)

	n, err := st.LoadFile(path, 3, "batch-1", "ingested for testing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.ScanAll("", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "batch-1", got[0].Desc)
	require.NotNil(t, got[0].Molecule.MolComment)
	assert.Equal(t, "ingested for testing", *got[0].Molecule.MolComment)
}

func TestLoadFile_ParseErrorInsertsNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "bad.mol2", badMol2)
	st := openTemp(t)

	_, err := st.LoadFile(path, 3, "", "")
	require.Error(t, err)

	got, err := st.ScanAll("", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFiles_PerFileIsolation(t *testing.T) {
	dir := t.TempDir()
	good1 := writeTemp(t, dir, "one.mol2", goodMol2)
	bad := writeTemp(t, dir, "broken.mol2", badMol2)
	good2 := writeTemp(t, dir, "two.mol2", goodMol2)
	st := openTemp(t)

	n, err := st.LoadFiles([]string{good1, bad, good2}, 3, "", false, "")
	assert.Error(t, err, "the broken file must be reported")
	assert.ErrorContains(t, err, "broken.mol2")
	assert.Equal(t, 2, n, "files after the broken one still load")

	got, scanErr := st.ScanAll("", "")
	require.NoError(t, scanErr)
	assert.Len(t, got, 2)
}

func TestLoadFiles_FilenameDesc(t *testing.T) {
	dir := t.TempDir()
	ligands := writeTemp(t, dir, "ligands.mol2", goodMol2)
	decoys := writeTemp(t, dir, "decoys.mol2", goodMol2)
	st := openTemp(t)

	_, err := st.LoadFiles([]string{ligands, decoys}, 0, "", true, "")
	require.NoError(t, err)

	descs, err := st.ListDescriptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"decoys.mol2", "ligands.mol2"}, descs)
}

func TestLoadFiles_FilenameDescAppendsToDesc(t *testing.T) {
	dir := t.TempDir()
	ligands := writeTemp(t, dir, "ligands.mol2", goodMol2)
	decoys := writeTemp(t, dir, "decoys.mol2", goodMol2)
	st := openTemp(t)

	_, err := st.LoadFiles([]string{ligands, decoys}, 0, "projectX", true, "")
	require.NoError(t, err)

	descs, err := st.ListDescriptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"projectX decoys.mol2", "projectX ligands.mol2"}, descs)
}

func TestLoadFiles_FilenameDescIgnoredForSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "ligands.mol2", goodMol2)
	st := openTemp(t)

	_, err := st.LoadFiles([]string{path}, 0, "projectX", true, "")
	require.NoError(t, err)

	descs, err := st.ListDescriptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"projectX"}, descs)
}

func TestLoadFiles_MissingFileIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeTemp(t, dir, "good.mol2", goodMol2)
	st := openTemp(t)

	n, err := st.LoadFiles([]string{filepath.Join(dir, "nope.mol2"), good}, 0, "", false, "")
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
