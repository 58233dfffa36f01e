// Package fsutil provides whole-file writes that never leave partial output.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clementsan/poresize/internal/models"
)

// WriteAtomic writes into a temporary sibling of path and renames it into
// place once fill succeeds. Any failure removes the temporary file and is
// returned as an IOError.
func WriteAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return models.WrapIO("create", path, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return models.WrapIO("write", path, err)
	}

	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.WrapIO("write", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return models.WrapIO("rename", path, fmt.Errorf("%s: %w", tmpName, err))
	}
	return nil
}
