package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultStagingDir is the well-known fast volatile filesystem the
// database is staged to when staging is enabled.
const DefaultStagingDir = "/dev/shm"

// stage is the scoped staged-copy resource: acquire copies the
// canonical database file to the staging path, release copies it back
// and deletes the staged file. Release must run on every exit path.
//
// Hazards, by design and not locked around:
//   - a crash between acquire and release loses every write made
//     during the session;
//   - the staging path is fixed per database basename, so concurrent
//     sessions staging the same basename race destructively.
type stage struct {
	canonical string
	staged    string
}

// acquireStage stages the database file under dir (DefaultStagingDir
// when empty). Returns nil when the staged path resolves to the
// canonical path itself, in which case staging is a no-op.
func acquireStage(canonical, dir string) (*stage, error) {
	if dir == "" {
		dir = DefaultStagingDir
	}
	staged := filepath.Join(dir, filepath.Base(canonical))
	cAbs, err := filepath.Abs(canonical)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	sAbs, err := filepath.Abs(staged)
	if err != nil {
		return nil, fmt.Errorf("resolve staging path: %w", err)
	}
	if cAbs == sAbs {
		return nil, nil
	}
	if _, err := os.Stat(canonical); err == nil {
		if err := copyFile(canonical, staged); err != nil {
			return nil, fmt.Errorf("stage database: %w", err)
		}
	} else if os.IsNotExist(err) {
		// Fresh database: make sure a stale staged file from an
		// earlier crashed session cannot leak into this one.
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("clear stale staged file: %w", err)
		}
	} else {
		return nil, fmt.Errorf("stat database: %w", err)
	}
	return &stage{canonical: canonical, staged: staged}, nil
}

// release copies the staged file back to the canonical path and
// removes the staged copy.
func (sg *stage) release() error {
	if err := copyFile(sg.staged, sg.canonical); err != nil {
		return fmt.Errorf("copy staged database back: %w", err)
	}
	if err := os.Remove(sg.staged); err != nil {
		return fmt.Errorf("remove staged database: %w", err)
	}
	return nil
}

// abandon removes the staged copy without copy-back.
func (sg *stage) abandon() {
	os.Remove(sg.staged)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
