package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dsrec/internal/capture"
)

const sequenceLockName = ".sequence.lock"

// PersonDir returns the action/person folder for stamp.
func PersonDir(root string, stamp capture.Stamp) string {
	return filepath.Join(root, fmt.Sprintf("A%04dP%04d", stamp.ActionID, stamp.PersonID))
}

// SessionName returns the shot folder name for sequence number seq.
func SessionName(seq int) string {
	return fmt.Sprintf("S%02d", seq)
}

// AllocateSession creates the next session folder under the action/person
// folder and returns it with its sequence number. The sequence is the number
// of existing session folders; the scan and create run under an advisory lock
// so recorders sharing the dataset cannot pick the same folder.
func AllocateSession(root string, stamp capture.Stamp) (string, int, error) {
	personDir := PersonDir(root, stamp)
	if err := os.MkdirAll(personDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %w", personDir, err)
	}

	lock := flock.New(filepath.Join(personDir, sequenceLockName))
	if err := lock.Lock(); err != nil {
		return "", 0, fmt.Errorf("lock %s: %w", personDir, err)
	}
	defer func() { _ = lock.Unlock() }()

	entries, err := os.ReadDir(personDir)
	if err != nil {
		return "", 0, fmt.Errorf("scan %s: %w", personDir, err)
	}
	seq := 0
	for _, entry := range entries {
		if entry.IsDir() {
			seq++
		}
	}

	// A deleted shot leaves a gap, so the counted name may already exist.
	for {
		dir := filepath.Join(personDir, SessionName(seq))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, seq, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", 0, fmt.Errorf("create %s: %w", dir, err)
		}
		seq++
	}
}
