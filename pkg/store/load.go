package store

import (
	"errors"
	"fmt"
	"path/filepath"
)

// LoadFile parses one mol2 file and inserts its records, tagging each
// with desc and appending comment to each molecule comment. Returns
// the number of records inserted. A parse failure aborts the whole
// file; nothing from it is inserted.
func (s *Store) LoadFile(path string, level int, desc, comment string) (int, error) {
	records, err := s.parser.ParseFile(path)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		rec.Desc = desc
		rec.AppendComment(comment)
	}
	if err := s.Insert(records, level); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return len(records), nil
}

// LoadFiles ingests a batch of mol2 files sequentially with per-file
// isolation: a failing file is reported and skipped, later files still
// proceed, and records from files inserted before a failure stay
// inserted. With filenameDesc set and more than one input file, each
// file's records are tagged with the file's base name (appended to
// desc when desc is non-empty); a single-file load keeps desc as
// given. Returns the total number of records inserted and the joined
// per-file errors, if any.
func (s *Store) LoadFiles(paths []string, level int, desc string, filenameDesc bool, comment string) (int, error) {
	// Base names disambiguate records only in an actual batch.
	tagNames := filenameDesc && len(paths) > 1
	var (
		total int
		errs  []error
	)
	for _, path := range paths {
		fileDesc := desc
		if tagNames {
			name := filepath.Base(path)
			if fileDesc != "" {
				fileDesc += " " + name
			} else {
				fileDesc = name
			}
		}
		n, err := s.LoadFile(path, level, fileDesc, comment)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}
