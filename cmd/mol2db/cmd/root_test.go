package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltools/mol2db/pkg/config"
	"github.com/moltools/mol2db/pkg/mol2"
	"github.com/moltools/mol2db/pkg/store"
)

const testMol2 = "@<TRIPOS>MOLECULE\nMOL1\n1\nSMALL\nNO_CHARGES\n\n@<TRIPOS>ATOM\n1 C1 0.0 0.0 0.0 C.3\n"

// resetFlags restores the package flag variables between tests; cobra
// keeps them as globals.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		inputFiles = nil
		outputFile = ""
		sqliteFile = ""
		appendOutput = false
		noShm = false
		descFlag = ""
		commentFlag = ""
		compression = 3
		filenameDesc = false
		listDesc = false
		jsonOutput = false
		configPath = ""
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureStdout collects what fn prints to os.Stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()
	fn()
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestConvert(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mol2")
	require.NoError(t, os.WriteFile(in, []byte(testMol2), 0644))

	inputFiles = []string{in}
	outputFile = filepath.Join(dir, "out.mol2")
	commentFlag = "converted"

	require.NoError(t, convert(quietLogger()))

	records, err := mol2.NewParser().ParseFile(outputFile)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "MOL1", records[0].Molecule.MolName)
	require.NotNil(t, records[0].Molecule.MolComment)
	assert.Equal(t, "converted", *records[0].Molecule.MolComment)
}

func TestIngestAndExport(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mol2")
	require.NoError(t, os.WriteFile(in, []byte(testMol2), 0644))

	inputFiles = []string{in}
	sqliteFile = filepath.Join(dir, "structures.db")
	descFlag = "cli-test"
	opts := store.Options{} // no staging in tests

	require.NoError(t, ingest(quietLogger(), opts, 3))

	outputFile = filepath.Join(dir, "out.mol2")
	require.NoError(t, export(quietLogger(), opts))

	records, err := mol2.NewParser().ParseFile(outputFile)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "MOL1", records[0].Molecule.MolName)

	// The description filter narrows the export.
	descFlag = "no-such-tag"
	outputFile = filepath.Join(dir, "empty.mol2")
	require.NoError(t, export(quietLogger(), opts))
	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPrintDescriptions(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mol2")
	require.NoError(t, os.WriteFile(in, []byte(testMol2), 0644))

	inputFiles = []string{in}
	sqliteFile = filepath.Join(dir, "structures.db")
	descFlag = "tagged"
	opts := store.Options{}

	require.NoError(t, ingest(quietLogger(), opts, 0))
	require.NoError(t, printDescriptions(opts))
}

func TestPrintJSON(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mol2")
	require.NoError(t, os.WriteFile(in, []byte(testMol2), 0644))

	inputFiles = []string{in}
	out := captureStdout(t, func() {
		require.NoError(t, printJSON(store.Options{}))
	})

	var records []*mol2.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "MOL1", records[0].Molecule.MolName)
}

func TestPrintJSON_FromStore(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mol2")
	require.NoError(t, os.WriteFile(in, []byte(testMol2), 0644))

	inputFiles = []string{in}
	sqliteFile = filepath.Join(dir, "structures.db")
	opts := store.Options{}
	require.NoError(t, ingest(quietLogger(), opts, 3))

	// The database wins over the input files as the JSON source.
	out := captureStdout(t, func() {
		require.NoError(t, printJSON(opts))
	})

	var records []*mol2.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "MOL1", records[0].Molecule.MolName)
}

func TestPrintJSON_NeedsSource(t *testing.T) {
	resetFlags(t)
	assert.Error(t, printJSON(store.Options{}))
}

func TestLoadEffectiveConfig(t *testing.T) {
	resetFlags(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	// No file anywhere yet: built-in defaults.
	cfg, err := loadEffectiveConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	// A file at the per-user default location is picked up without
	// --config.
	saved := config.DefaultConfig()
	saved.Compression = 7
	require.NoError(t, config.SaveConfig(saved, config.GetDefaultConfigPath()))

	cfg, err = loadEffectiveConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Compression)

	// An explicit --config path wins over the default location.
	explicit := filepath.Join(home, "other.yaml")
	other := config.DefaultConfig()
	other.Compression = 1
	require.NoError(t, config.SaveConfig(other, explicit))
	configPath = explicit

	cfg, err = loadEffectiveConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Compression)
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "unknown", ""} {
		assert.NotNil(t, newLogger(level), "level %q", level)
	}
}
