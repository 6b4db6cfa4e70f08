package las

import (
	"fmt"
	"io"
)

// Reader owns the file cursor for one open LAS file. Seek is the only
// method that moves the cursor explicitly; ReadFull advances it by the
// number of bytes consumed.
type Reader struct {
	rs   io.ReadSeeker
	pos  int64
	size int64
}

// NewReader wraps rs and records its total length. The cursor is left at
// the start of the file.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to determine file size: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind file: %w", err)
	}
	return &Reader{rs: rs, size: size}, nil
}

// Size returns the length of the underlying file in bytes.
func (r *Reader) Size() int64 { return r.size }

// Pos returns the current cursor position.
func (r *Reader) Pos() int64 { return r.pos }

// Remaining returns the number of bytes between the cursor and end of file.
func (r *Reader) Remaining() int64 { return r.size - r.pos }

// Seek moves the cursor to an absolute position.
func (r *Reader) Seek(off int64) error {
	if off < 0 || off > r.size {
		return fmt.Errorf("seek to %d outside file of %d bytes", off, r.size)
	}
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", off, err)
	}
	r.pos = off
	return nil
}

// ReadFull fills buf from the cursor. A read that ends early returns an
// error matching ErrShortRecord.
func (r *Reader) ReadFull(buf []byte) error {
	n, err := io.ReadFull(r.rs, buf)
	r.pos += int64(n)
	if err != nil {
		if isShortRead(err) {
			return &shortReadError{err: fmt.Errorf("wanted %d bytes at %d, got %d: %w", len(buf), r.pos-int64(n), n, err)}
		}
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), r.pos-int64(n), err)
	}
	return nil
}

// ReadAt reads n bytes starting at off and restores the cursor afterwards,
// so a caller walking one region can fetch data from another.
func (r *Reader) ReadAt(off int64, n int) ([]byte, error) {
	saved := r.pos
	if err := r.Seek(off); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	readErr := r.ReadFull(buf)
	if err := r.Seek(saved); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return buf, nil
}

// Skip advances the cursor by n bytes without decoding them.
func (r *Reader) Skip(n int64) error {
	return r.Seek(r.pos + n)
}
