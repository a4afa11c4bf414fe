package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/graaaaa/anatomydps/internal/parser"
)

// EndOffset returns the size of the file at path, the offset a stream should
// start from after the file has been imported.
func EndOffset(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return 0, err
	}
	return info.Size(), nil
}

// LogDateOf returns the modification date of the file at path in the
// YYYY-MM-DD form used for log dates.
func LogDateOf(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return "", err
	}
	return info.ModTime().Format(parser.DateLayout), nil
}
