package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moltools/mol2db/pkg/config"
	"github.com/moltools/mol2db/pkg/mol2"
	"github.com/moltools/mol2db/pkg/store"
)

var (
	inputFiles   []string
	outputFile   string
	sqliteFile   string
	appendOutput bool
	noShm        bool
	descFlag     string
	commentFlag  string
	compression  int
	filenameDesc bool
	listDesc     bool
	jsonOutput   bool
	configPath   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mol2db",
	Short: "mol2db - mol2 structure store",
	Long: `mol2db reads TRIPOS mol2 files into a compact SQLite-backed store
and back. Atom, bond and substructure tables are kept as compressed
binary blobs; records can be tagged with a free-text description at
ingestion time and filtered by it later.`,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringArrayVarP(&inputFiles, "input", "i", nil, "Input mol2 file(s)")
	flags.StringVarP(&outputFile, "output", "o", "", "Output mol2 file")
	flags.StringVarP(&sqliteFile, "sqlite", "s", "", "Sqlite database file")
	flags.BoolVarP(&appendOutput, "append", "a", false, "Append to mol2 files when writing rather than truncate")
	flags.BoolVar(&noShm, "no-shm", false, "Do not try using shm device when writing to databases")
	flags.StringVar(&descFlag, "desc", "", "Description to add/filter to/by entries when writing to the database")
	flags.StringVar(&commentFlag, "comment", "", "Comment to add/filter to/by the molecule comment field")
	flags.IntVarP(&compression, "compression", "c", 3, "Level of compression for BLOB data, 0 means no compression")
	flags.BoolVar(&filenameDesc, "filename-desc", false, "Add filename to the desc field when adding a batch of files to the database")
	flags.BoolVar(&listDesc, "list-desc", false, "List available row descriptions present in the database")
	flags.BoolVar(&jsonOutput, "json", false, "Print records as JSON to stdout instead of writing mol2 text")
	flags.StringVar(&configPath, "config", "", "Path to a mol2db config file")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging.Level)

	level := compression
	if !cmd.Flags().Changed("compression") {
		level = cfg.Compression
	}
	opts := store.Options{
		UseStaging: !noShm,
		StagingDir: cfg.StagingDir,
	}

	// The operation tree mirrors the flag combinations: ingest into the
	// database, export from it, plain file-to-file conversion, JSON
	// inspection, then description listing last.
	if len(inputFiles) > 0 && sqliteFile != "" {
		if err := ingest(logger, opts, level); err != nil {
			return err
		}
	}
	if outputFile != "" && sqliteFile != "" {
		if err := export(logger, opts); err != nil {
			return err
		}
	}
	if len(inputFiles) > 0 && sqliteFile == "" && outputFile != "" {
		if err := convert(logger); err != nil {
			return err
		}
	}
	if jsonOutput {
		if err := printJSON(opts); err != nil {
			return err
		}
	}
	if listDesc && sqliteFile != "" {
		if err := printDescriptions(opts); err != nil {
			return err
		}
	}
	return nil
}

// loadEffectiveConfig resolves the configuration: an explicit --config
// path wins, otherwise the per-user default location is consulted when
// a file exists there, otherwise built-in defaults apply.
func loadEffectiveConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if def := config.GetDefaultConfigPath(); config.ConfigExists(def) {
			path = def
		}
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// ingest reads the input files into the database with per-file
// isolation: a malformed file fails that file only.
func ingest(logger *slog.Logger, opts store.Options, level int) error {
	st, err := store.Open(sqliteFile, opts)
	if err != nil {
		return err
	}
	n, loadErr := st.LoadFiles(inputFiles, level, descFlag, filenameDesc, commentFlag)
	closeErr := st.Close()
	logger.Info("inserted records", "count", n, "database", sqliteFile, "compression", level)
	if loadErr != nil {
		logger.Error("some input files failed", "error", loadErr)
	}
	return errors.Join(loadErr, closeErr)
}

func export(logger *slog.Logger, opts store.Options) error {
	records, err := scanStore(opts)
	if err != nil {
		return err
	}
	if err := mol2.WriteFile(outputFile, records, appendOutput); err != nil {
		return err
	}
	logger.Info("wrote records", "count", len(records), "output", outputFile)
	return nil
}

// convert is the database-free path: parse the inputs and re-render
// them into the output file.
func convert(logger *slog.Logger) error {
	records, err := parseInputs()
	if err != nil {
		return err
	}
	if err := mol2.WriteFile(outputFile, records, appendOutput); err != nil {
		return err
	}
	logger.Info("converted records", "count", len(records), "output", outputFile)
	return nil
}

func printJSON(opts store.Options) error {
	var (
		records []*mol2.Record
		err     error
	)
	switch {
	case sqliteFile != "":
		records, err = scanStore(opts)
	case len(inputFiles) > 0:
		records, err = parseInputs()
	default:
		return fmt.Errorf("--json needs --input or --sqlite to read records from")
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func printDescriptions(opts store.Options) error {
	st, err := store.Open(sqliteFile, opts)
	if err != nil {
		return err
	}
	descs, listErr := st.ListDescriptions()
	closeErr := st.Close()
	if err := errors.Join(listErr, closeErr); err != nil {
		return err
	}
	for _, desc := range descs {
		fmt.Println(desc)
	}
	return nil
}

func scanStore(opts store.Options) ([]*mol2.Record, error) {
	st, err := store.Open(sqliteFile, opts)
	if err != nil {
		return nil, err
	}
	records, scanErr := st.ScanAll(descFlag, commentFlag)
	closeErr := st.Close()
	if err := errors.Join(scanErr, closeErr); err != nil {
		return nil, err
	}
	return records, nil
}

func parseInputs() ([]*mol2.Record, error) {
	parser := mol2.NewParser()
	var records []*mol2.Record
	for _, path := range inputFiles {
		recs, err := parser.ParseFile(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			rec.Desc = descFlag
			rec.AppendComment(commentFlag)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
