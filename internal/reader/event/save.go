package event

import (
	"errors"
	"fmt"
	"path/filepath"

	"dsrec/internal/fileutil"
)

// SaveStream moves a scratch stream into dir as EventStream.bin.
func SaveStream(dir string, data any) error {
	path, ok := data.(string)
	if !ok {
		return fmt.Errorf("event payload has type %T", data)
	}
	if path == "" {
		return errors.New("event payload has no stream file")
	}
	return fileutil.MoveFile(path, filepath.Join(dir, StreamFileName))
}
