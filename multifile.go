// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package softie implements the Multifile: a single-file container that
// hosts a bounded number of independently addressable, variable-length,
// growable byte chunks ("subfiles"), each identified by a string name.
// It is the storage engine underneath a small embedded full-text search
// index; tokenization, stop words, the document table and the posting
// lists are external clients that only ever call Read/Write/Manipulate
// against named subfiles here.
package softie

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/natefinch/atomic"

	"github.com/dhasenan/softie/codec"
	"github.com/dhasenan/softie/index"
)

// magic is the 4-byte file signature "Sof+".
var magic = [4]byte{0x53, 0x6F, 0x66, 0x2B}

const headerLen = int(index.DataStart) // magic(4) + index pointer(8)

// Multifile is the top-level container: it owns the backing file and the
// in-memory Index, and exposes the subfile CRUD + mmap surface described
// in spec.md §6. A Multifile instance is the sole owner of its file
// descriptor and Index; it must not be used from multiple goroutines and
// two Multifile instances must never be opened over the same path.
type Multifile struct {
	path   string
	f      *os.File
	c      *codec.Codec
	ix     *index.Index
	closed bool
}

// Open opens the multifile at path, or creates it first if it does not
// exist and create is true. A freshly created file is bootstrapped with
// just the magic header, the index pointer, and a zero entry count; the
// Index itself materializes lazily on the first mutating call.
func Open(path string, create bool) (*Multifile, error) {
	_, statErr := os.Stat(path)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return nil, wrapErr(KindIoSeek, statErr)
		}
		if !create {
			return nil, wrapErr(KindNotFound, statErr)
		}
		if err := bootstrap(path); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		return nil, wrapErr(KindNotFound, err)
	}

	c := codec.New(f)

	if err := c.Seek(0); err != nil {
		logClose(f)
		return nil, toIoErr(err)
	}

	got, err := c.ReadExact(4)
	if err != nil {
		logClose(f)
		return nil, toIoErr(err)
	}
	if !bytes.Equal(got, magic[:]) {
		logClose(f)
		return nil, &Error{Kind: KindBadMagic}
	}

	if err := c.Seek(index.IndexPointerPos); err != nil {
		logClose(f)
		return nil, toIoErr(err)
	}
	pointer, err := c.ReadUint64()
	if err != nil {
		logClose(f)
		return nil, toIoErr(err)
	}

	if err := c.Seek(int64(pointer)); err != nil {
		logClose(f)
		return nil, toIoErr(err)
	}
	ix, err := index.Load(c)
	if err != nil {
		Logger.Errorw("corrupted index detected while opening multifile", "path", path, "error", err)
		logClose(f)
		return nil, wrapErr(KindCorrupted, err)
	}

	return &Multifile{path: path, f: f, c: c, ix: ix}, nil
}

// bootstrap writes the 20-byte skeleton of a brand-new multifile: magic,
// the index pointer pointing at DataStart, and a zero entry count sitting
// right there — which Index.Load later reads back as a legitimate, if
// empty, Index with no self-entry yet. The write is atomic (temp file +
// rename) so a process crash mid-creation can never leave a file with a
// readable magic but a torn pointer or count.
func bootstrap(path string) error {
	buf := make([]byte, headerLen+8)
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint64(buf[4:12], index.DataStart)
	binary.BigEndian.PutUint64(buf[12:20], 0)

	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return wrapErr(KindIoShort, err)
	}
	return nil
}

// getOrGrow returns the live entry for name, creating it, growing it in
// place, or relocating it so that it can hold at least minLength bytes.
// Every branch that mutates the Index serializes it to disk before
// returning, per the ordering guarantee in spec.md §5.
func (m *Multifile) getOrGrow(name string, minLength uint64) (index.Entry, error) {
	entry, ok := m.ix.Lookup(name)
	if !ok {
		entry = m.ix.Create(name, minLength)
		if err := m.persistIndex(); err != nil {
			return index.Entry{}, err
		}
		return entry, nil
	}

	if entry.Length >= minLength {
		return entry, nil
	}

	if m.ix.ResizeInPlace(&entry, minLength) {
		if err := m.persistIndex(); err != nil {
			return index.Entry{}, err
		}
		return entry, nil
	}

	relocated, err := m.relocate(entry, minLength)
	if err != nil {
		return index.Entry{}, err
	}
	return relocated, nil
}

// relocate moves an entry's bytes to a freshly allocated range under the
// reserved temp name, zero-fills the newly grown tail, removes the old
// entry, and renames the temp entry over the original name. It flushes
// (not just serializes) before returning, since this is the one
// get_or_grow path spec.md §5 requires to be durable even when called
// from Manipulate, which otherwise never flushes on its own.
func (m *Multifile) relocate(old index.Entry, minLength uint64) (index.Entry, error) {
	Logger.Infow("relocating entry", "name", old.Name, "oldLength", old.Length, "newLength", minLength)

	tmp := m.ix.Create(index.ReservedTmpResizeName, minLength)

	if err := m.copyRange(old, tmp); err != nil {
		return index.Entry{}, err
	}

	m.ix.Remove(old)
	m.ix.Rename(&tmp, old.Name)

	if err := m.Flush(); err != nil {
		return index.Entry{}, err
	}

	return tmp, nil
}

// copyRange copies src's bytes into the start of dst's range and
// zero-fills the rest of dst.
func (m *Multifile) copyRange(src, dst index.Entry) error {
	if err := m.c.Seek(int64(dst.Start)); err != nil {
		return toIoErr(err)
	}

	if src.Length > 0 {
		r := io.NewSectionReader(m.f, int64(src.Start), int64(src.Length))
		if _, err := io.CopyN(m.f, r, int64(src.Length)); err != nil {
			return wrapErr(KindIoShort, err)
		}
	}

	zeroLen := dst.Length - src.Length
	if zeroLen > 0 {
		if err := m.c.WriteAll(make([]byte, zeroLen)); err != nil {
			return toIoErr(err)
		}
	}

	return nil
}

// persistIndex serializes the Index to disk without forcing an fsync.
func (m *Multifile) persistIndex() error {
	if err := m.ix.WriteToDisk(m.c); err != nil {
		return toIoErr(err)
	}
	return nil
}

// Read returns the full contents of the named subfile, or ok=false if no
// such subfile exists.
func (m *Multifile) Read(name string) (data []byte, ok bool, err error) {
	if m.closed {
		return nil, false, &Error{Kind: KindClosed}
	}

	entry, found := m.ix.Lookup(name)
	if !found {
		return nil, false, nil
	}

	if err := m.c.Seek(int64(entry.Start)); err != nil {
		return nil, false, toIoErr(err)
	}
	b, err := m.c.ReadExact(int(entry.Length))
	if err != nil {
		return nil, false, toIoErr(err)
	}
	return b, true, nil
}

// ReadAt reads up to count bytes of the named subfile starting at
// offset. If offset is at or beyond the subfile's length, it returns an
// empty slice. It reads min(count, length-offset) bytes, never more than
// is actually stored.
func (m *Multifile) ReadAt(name string, offset, count uint64) ([]byte, error) {
	if m.closed {
		return nil, &Error{Kind: KindClosed}
	}

	entry, found := m.ix.Lookup(name)
	if !found {
		return nil, wrapErr(KindNotFound, nil)
	}

	if offset >= entry.Length {
		return []byte{}, nil
	}

	n := count
	if remaining := entry.Length - offset; n > remaining {
		n = remaining
	}

	if err := m.c.Seek(int64(entry.Start + offset)); err != nil {
		return nil, toIoErr(err)
	}
	b, err := m.c.ReadExact(int(n))
	if err != nil {
		return nil, toIoErr(err)
	}
	return b, nil
}

// Write writes data at offset within the named subfile, creating or
// growing it as needed, then flushes. Any gap between the subfile's
// previous length and offset is left with undefined contents.
func (m *Multifile) Write(name string, offset uint64, data []byte) error {
	if m.closed {
		return &Error{Kind: KindClosed}
	}

	entry, err := m.getOrGrow(name, offset+uint64(len(data)))
	if err != nil {
		return err
	}

	if err := m.c.Seek(int64(entry.Start + offset)); err != nil {
		return toIoErr(err)
	}
	if err := m.c.WriteAll(data); err != nil {
		return toIoErr(err)
	}

	return m.Flush()
}

// Manipulate ensures the named subfile holds at least minLength bytes,
// memory-maps its range for shared read/write, and invokes fn with the
// mapped slice. The mapping is unmapped on every exit path, including an
// error returned from fn. Manipulate does not flush after fn returns;
// syncing mmap-dirtied pages to the backing file is left to the OS
// unless the caller calls Flush explicitly.
func (m *Multifile) Manipulate(name string, minLength uint64, fn func([]byte) error) error {
	if m.closed {
		return &Error{Kind: KindClosed}
	}

	entry, err := m.getOrGrow(name, minLength)
	if err != nil {
		return err
	}

	// MapRegion takes a page-aligned offset, so map from the page boundary
	// at or below entry.Start and hand fn only the entry's own bytes.
	pageSize := int64(os.Getpagesize())
	mapStart := int64(entry.Start) - int64(entry.Start)%pageSize
	skip := int(int64(entry.Start) - mapStart)

	region, err := mmap.MapRegion(m.f, skip+int(entry.Length), mmap.RDWR, 0, mapStart)
	if err != nil {
		return wrapErr(KindOutOfSpace, err)
	}
	defer func() {
		_ = region.Unmap()
	}()

	return fn(region[skip:])
}

// Flush serializes the Index and fsyncs the underlying file.
func (m *Multifile) Flush() error {
	if m.closed {
		return &Error{Kind: KindClosed}
	}

	if err := m.persistIndex(); err != nil {
		return err
	}
	if err := m.f.Sync(); err != nil {
		return wrapErr(KindIoShort, err)
	}
	return nil
}

// Close flushes and releases the underlying file handle. Any operation
// attempted afterward fails with KindClosed; there is no reopen, a new
// Multifile must be constructed with Open.
func (m *Multifile) Close() error {
	if m.closed {
		return &Error{Kind: KindClosed}
	}

	flushErr := m.Flush()
	closeErr := m.f.Close()
	m.closed = true

	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return wrapErr(KindIoShort, closeErr)
	}
	return nil
}

// Stats summarizes a Multifile's current footprint, mirroring the kind
// of bookkeeping the teacher's segment/BigLog Info() calls expose.
type Stats struct {
	Path        string
	EntryCount  int
	IndexSize   uint64
	DataEnd     uint64
	OnDiskBytes int64
}

// Stats reports summary information about the multifile.
func (m *Multifile) Stats() (Stats, error) {
	if m.closed {
		return Stats{}, &Error{Kind: KindClosed}
	}

	fi, err := m.f.Stat()
	if err != nil {
		return Stats{}, wrapErr(KindIoShort, err)
	}

	dataEnd := index.DataStart
	m.ix.Ascend(func(e index.Entry) bool {
		if e.End() > dataEnd {
			dataEnd = e.End()
		}
		return true
	})

	return Stats{
		Path:        m.path,
		EntryCount:  m.ix.Len(),
		IndexSize:   m.ix.Size(),
		DataEnd:     dataEnd,
		OnDiskBytes: fi.Size(),
	}, nil
}

// toIoErr wraps a lower-level I/O failure into a *softie.Error, picking
// KindIoSeek vs KindIoShort and populating Offset/Want/Got when err (or
// something it wraps) is a *codec.OpError, per spec.md §4.1's
// requirement that I/O errors surface with the offending offset.
func toIoErr(err error) error {
	if err == nil {
		return nil
	}

	var opErr *codec.OpError
	if errors.As(err, &opErr) {
		kind := KindIoShort
		if opErr.Op == "seek" {
			kind = KindIoSeek
		}
		return &Error{Kind: kind, Offset: opErr.Offset, Want: opErr.Want, Got: opErr.Got, Cause: err}
	}

	return wrapErr(KindIoShort, err)
}
