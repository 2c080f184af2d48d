// Package store persists mol2 records in a single-table SQLite
// database. Molecule header fields live in scalar columns; the atom,
// bond and substructure lists are stored as binary blobs, optionally
// zstd-compressed, with the compression level recorded per row so
// stores with mixed levels stay valid.
//
// The engine is single-threaded and synchronous. Access to one store
// from multiple goroutines or processes must be serialized by the
// caller; there is no internal locking.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/moltools/mol2db/pkg/codec"
	"github.com/moltools/mol2db/pkg/mol2"

	_ "modernc.org/sqlite"
)

// ErrNoMolecule reports an attempt to insert a record whose molecule
// header was never populated.
var ErrNoMolecule = errors.New("record has no molecule header")

const createTableSQL = `CREATE TABLE IF NOT EXISTS structures (
	id INTEGER PRIMARY KEY,
	mol_name TEXT,
	num_atoms INTEGER,
	num_bonds INTEGER,
	num_subst INTEGER,
	num_feat INTEGER,
	num_sets INTEGER,
	mol_type TEXT,
	charge_type TEXT,
	status_bits TEXT,
	mol_comment TEXT,
	atom BLOB,
	bond BLOB,
	substructure BLOB,
	compression INTEGER,
	description TEXT
)`

const insertSQL = `INSERT INTO structures (
	mol_name, num_atoms, num_bonds, num_subst, num_feat, num_sets,
	mol_type, charge_type, status_bits, mol_comment,
	atom, bond, substructure, compression, description
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectSQL = `SELECT
	mol_name, num_atoms, num_bonds, num_subst, num_feat, num_sets,
	mol_type, charge_type, status_bits, mol_comment,
	atom, bond, substructure, compression, description
FROM structures ORDER BY id`

// Options configures how a store is opened.
type Options struct {
	// UseStaging relocates the database file to a fast volatile
	// filesystem for the session. See the stage type for the hazards
	// this carries.
	UseStaging bool

	// StagingDir overrides the staging location. Empty means
	// DefaultStagingDir.
	StagingDir string
}

// Store is an open handle to one mol2 database.
type Store struct {
	db     *sql.DB
	parser *mol2.Parser
	stage  *stage // nil when operating on the canonical path
	path   string
}

// Open opens (creating if needed) the database at path and ensures the
// structures table exists; an already existing table is success, not
// an error. With staging enabled the canonical file is copied to the
// staging path first and all work happens there until Close.
func Open(path string, opts Options) (*Store, error) {
	st := &Store{path: path, parser: mol2.NewParser()}
	workPath := path
	if opts.UseStaging {
		sg, err := acquireStage(path, opts.StagingDir)
		if err != nil {
			return nil, err
		}
		if sg != nil {
			st.stage = sg
			workPath = sg.staged
		}
	}
	db, err := sql.Open("sqlite", workPath)
	if err != nil {
		st.abandonStage()
		return nil, fmt.Errorf("open database %s: %w", workPath, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		st.abandonStage()
		return nil, fmt.Errorf("create structures table: %w", err)
	}
	st.db = db
	return st, nil
}

// Close releases the database handle and, when staging is active,
// copies the staged file back to the canonical path and removes the
// staged copy. Callers must always Close, including on failure paths,
// to bound the window in which staged writes exist only on the
// volatile filesystem.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		s.db = nil
	}
	if s.stage != nil {
		if err := s.stage.release(); err != nil {
			errs = append(errs, err)
		}
		s.stage = nil
	}
	return errors.Join(errs...)
}

// abandonStage drops the staged copy without copy-back; used only on
// Open failures, before any writes can exist.
func (s *Store) abandonStage() {
	if s.stage != nil {
		s.stage.abandon()
		s.stage = nil
	}
}

// Insert appends one row per record, encoding and compressing the
// three sub-collections at the given level (clamped to [0, 9]; 0
// stores the raw encoding). There is no deduplication or upsert. The
// whole batch runs in one transaction: either every record of this
// call is stored or none is.
func (s *Store) Insert(records []*mol2.Record, level int) error {
	level = codec.ClampLevel(level)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range records {
		if rec.Molecule == nil {
			tx.Rollback()
			return ErrNoMolecule
		}
		atomBlob, err := codec.Compress(codec.EncodeAtoms(rec.Atoms), level)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("compress atoms: %w", err)
		}
		bondBlob, err := codec.Compress(codec.EncodeBonds(rec.Bonds), level)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("compress bonds: %w", err)
		}
		subBlob, err := codec.Compress(codec.EncodeSubstructures(rec.Substructures), level)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("compress substructures: %w", err)
		}
		m := rec.Molecule
		_, err = stmt.Exec(
			m.MolName,
			nullCount(m.NumAtoms), nullCount(m.NumBonds), nullCount(m.NumSubst),
			nullCount(m.NumFeat), nullCount(m.NumSets),
			nullStr(m.MolType), nullStr(m.ChargeType), nullStr(m.StatusBits), nullStr(m.MolComment),
			atomBlob, bondBlob, subBlob, level, rec.Desc,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert record %q: %w", m.MolName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert transaction: %w", err)
	}
	return nil
}

// ScanAll reconstructs every stored row into a record, in insertion
// order, decompressing blobs with the per-row stored level, then
// applies the two in-memory substring filters. An empty filter
// excludes nothing; both filters are independent, case-sensitive
// contains tests. Every call reads the whole table.
func (s *Store) ScanAll(descFilter, commentFilter string) ([]*mol2.Record, error) {
	rows, err := s.db.Query(selectSQL)
	if err != nil {
		return nil, fmt.Errorf("scan structures: %w", err)
	}
	defer rows.Close()

	var records []*mol2.Record
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		if descFilter != "" && !strings.Contains(rec.Desc, descFilter) {
			continue
		}
		if commentFilter != "" {
			c := rec.Molecule.MolComment
			if c == nil || !strings.Contains(*c, commentFilter) {
				continue
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan structures: %w", err)
	}
	return records, nil
}

// ListDescriptions returns the distinct non-empty description tags in
// the store, sorted, via a full scan of the description column.
func (s *Store) ListDescriptions() ([]string, error) {
	rows, err := s.db.Query(`SELECT description FROM structures`)
	if err != nil {
		return nil, fmt.Errorf("scan descriptions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var desc sql.NullString
		if err := rows.Scan(&desc); err != nil {
			return nil, fmt.Errorf("scan description row: %w", err)
		}
		if desc.Valid && desc.String != "" {
			seen[desc.String] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan descriptions: %w", err)
	}
	descs := make([]string, 0, len(seen))
	for d := range seen {
		descs = append(descs, d)
	}
	sort.Strings(descs)
	return descs, nil
}

func scanRow(rows *sql.Rows) (*mol2.Record, error) {
	var (
		molName                                      sql.NullString
		numAtoms, numBonds, numSubst, numFeat, nSets sql.NullInt64
		molType, chargeType, statusBits, molComment  sql.NullString
		atomBlob, bondBlob, subBlob                  []byte
		level                                        int
		desc                                         sql.NullString
	)
	err := rows.Scan(
		&molName, &numAtoms, &numBonds, &numSubst, &numFeat, &nSets,
		&molType, &chargeType, &statusBits, &molComment,
		&atomBlob, &bondBlob, &subBlob, &level, &desc,
	)
	if err != nil {
		return nil, fmt.Errorf("scan structure row: %w", err)
	}

	atoms, err := decodeBlob(atomBlob, level, codec.DecodeAtoms)
	if err != nil {
		return nil, fmt.Errorf("row %q: %w", molName.String, err)
	}
	bonds, err := decodeBlob(bondBlob, level, codec.DecodeBonds)
	if err != nil {
		return nil, fmt.Errorf("row %q: %w", molName.String, err)
	}
	subs, err := decodeBlob(subBlob, level, codec.DecodeSubstructures)
	if err != nil {
		return nil, fmt.Errorf("row %q: %w", molName.String, err)
	}

	return &mol2.Record{
		Molecule: &mol2.Molecule{
			MolName:    molName.String,
			NumAtoms:   countPtr(numAtoms),
			NumBonds:   countPtr(numBonds),
			NumSubst:   countPtr(numSubst),
			NumFeat:    countPtr(numFeat),
			NumSets:    countPtr(nSets),
			MolType:    strPtr(molType),
			ChargeType: strPtr(chargeType),
			StatusBits: strPtr(statusBits),
			MolComment: strPtr(molComment),
		},
		Atoms:         atoms,
		Bonds:         bonds,
		Substructures: subs,
		Desc:          desc.String,
	}, nil
}

func decodeBlob[T any](blob []byte, level int, decode func([]byte) ([]T, error)) ([]T, error) {
	raw, err := codec.Decompress(blob, level)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullCount(v *uint32) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func countPtr(v sql.NullInt64) *uint32 {
	if !v.Valid {
		return nil
	}
	n := uint32(v.Int64)
	return &n
}
