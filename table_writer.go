package prefixtable

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	tableerrors "github.com/tamirms/prefixtable/errors"
)

// WriteTo writes the encoded table image to w.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	if t.closed.Load() {
		return 0, tableerrors.ErrTableClosed
	}
	n, err := w.Write(t.data)
	return int64(n), err
}

// WriteFile replaces the file at path with the encoded table.
//
// The image is written to a sibling temporary file through a read-write
// memory map and renamed over path once flushed, so readers never observe a
// partially written table.
func (t *Table) WriteFile(path string) error {
	if t.closed.Load() {
		return tableerrors.ErrTableClosed
	}

	tw, err := newTableWriter(path, len(t.data))
	if err != nil {
		return err
	}
	copy(tw.data, t.data)
	return tw.finalize()
}

// tableWriter stages one table file in a mapped temporary file.
type tableWriter struct {
	file *os.File
	mmap mmap.MMap
	data []byte

	path    string
	tmpPath string
}

func newTableWriter(path string, size int) (*tableWriter, error) {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create table file: %w", err)
	}

	if err := reserveFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("allocate table file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(tmpPath))
	}

	mm, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("mmap table file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(tmpPath))
	}

	return &tableWriter{
		file:    file,
		mmap:    mm,
		data:    []byte(mm),
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// finalize flushes the mapped image and moves the temporary file into place.
// On error the temporary file is removed and path is left untouched.
func (tw *tableWriter) finalize() error {
	if err := tw.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, tw.abort())
	}

	// Nil mmap regardless of outcome so abort does not unmap twice.
	unmapErr := tw.mmap.Unmap()
	tw.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, tw.abort())
	}

	closeErr := tw.file.Close()
	tw.file = nil
	if closeErr != nil {
		return errors.Join(closeErr, tw.abort())
	}

	if err := os.Rename(tw.tmpPath, tw.path); err != nil {
		primaryErr := fmt.Errorf("install table file: %w", err)
		return errors.Join(primaryErr, tw.abort())
	}
	return nil
}

// abort releases whatever is still open and removes the temporary file.
func (tw *tableWriter) abort() error {
	var unmapErr, closeErr error
	if tw.mmap != nil {
		unmapErr = tw.mmap.Unmap()
		tw.mmap = nil
	}
	if tw.file != nil {
		closeErr = tw.file.Close()
		tw.file = nil
	}
	removeErr := os.Remove(tw.tmpPath)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(unmapErr, closeErr, removeErr)
}
