// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package codec reads and writes the fixed-width big-endian integers and
// length-prefixed strings that make up the on-disk layout of a softie
// multifile: entry headers, the index pointer, and the serialized index
// itself.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var enc = binary.BigEndian

// OpError is a structured I/O failure produced by a codec operation: the
// absolute file offset it happened at, and for short reads/writes, how
// many bytes were wanted versus actually transferred. Op is "seek",
// "read", or "write". Callers that need the offending offset
// programmatically (spec.md §4.1, §7) should use errors.As against
// *OpError rather than parsing Error()'s text.
type OpError struct {
	Op     string
	Offset int64
	Want   int
	Got    int
	Err    error
}

func (e *OpError) Error() string {
	switch e.Op {
	case "read", "write":
		return fmt.Sprintf("softie/codec: short %s at offset %d: wanted %d got %d: %s", e.Op, e.Offset, e.Want, e.Got, e.Err)
	default:
		return fmt.Sprintf("softie/codec: %s to %d: %s", e.Op, e.Offset, e.Err)
	}
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Codec wraps a single backing file with the primitive reads and writes
// the rest of softie is built out of. It owns no buffering beyond what
// *os.File already provides; callers decide when to Sync.
type Codec struct {
	f *os.File
}

// New wraps f. f must already be open for reading and writing.
func New(f *os.File) *Codec {
	return &Codec{f: f}
}

// File returns the underlying file handle, for callers that need to Sync
// or Stat it directly.
func (c *Codec) File() *os.File {
	return c.f
}

// Seek moves the file position to an absolute offset.
func (c *Codec) Seek(offset int64) error {
	_, err := c.f.Seek(offset, io.SeekStart)
	if err != nil {
		return &OpError{Op: "seek", Offset: offset, Err: err}
	}
	return nil
}

// Tell returns the current file position without moving it.
func (c *Codec) Tell() (int64, error) {
	off, err := c.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, &OpError{Op: "seek", Offset: off, Err: err}
	}
	return off, nil
}

// SeekEnd moves the file position to the current end of file and returns
// the resulting offset.
func (c *Codec) SeekEnd() (int64, error) {
	off, err := c.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, &OpError{Op: "seek", Offset: off, Err: err}
	}
	return off, nil
}

// ReadExact reads exactly n bytes from the current position. A short read
// (including io.EOF before n bytes are read) is reported with the offset
// at which the read started.
func (c *Codec) ReadExact(n int) ([]byte, error) {
	start, err := c.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, &OpError{Op: "seek", Offset: start, Err: err}
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(c.f, buf)
	if err != nil {
		return nil, &OpError{Op: "read", Offset: start, Want: n, Got: got, Err: err}
	}
	return buf, nil
}

// WriteAll writes all of b at the current position.
func (c *Codec) WriteAll(b []byte) error {
	start, err := c.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return &OpError{Op: "seek", Offset: start, Err: err}
	}

	n, err := c.f.Write(b)
	if err != nil {
		return &OpError{Op: "write", Offset: start, Want: len(b), Got: n, Err: err}
	}
	if n != len(b) {
		return &OpError{Op: "write", Offset: start, Want: len(b), Got: n, Err: io.ErrShortWrite}
	}
	return nil
}

// ReadUint64 reads a big-endian 8-byte unsigned integer.
func (c *Codec) ReadUint64() (uint64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return enc.Uint64(b), nil
}

// WriteUint64 writes v as a big-endian 8-byte unsigned integer.
func (c *Codec) WriteUint64(v uint64) error {
	var b [8]byte
	enc.PutUint64(b[:], v)
	return c.WriteAll(b[:])
}

// ReadLenPrefixedString reads a u64 length followed by that many UTF-8
// bytes.
func (c *Codec) ReadLenPrefixedString() (string, error) {
	n, err := c.ReadUint64()
	if err != nil {
		return "", err
	}

	b, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteLenPrefixedString writes s as a u64 length followed by its UTF-8
// bytes.
func (c *Codec) WriteLenPrefixedString(s string) error {
	if err := c.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	return c.WriteAll([]byte(s))
}
