// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package index is the in-memory catalog of a softie multifile: the
// dual-ordered Entry set, its serialized on-disk form, and the gap-fit
// allocator that hands out new ranges.
package index

// headerFixedWidth is the serialized size of an entry record excluding
// its name: start (8) + length (8) + name_len (8).
const headerFixedWidth = 3 * 8

// Entry describes one named, contiguous byte range owned by a subfile.
type Entry struct {
	Name   string
	Start  uint64
	Length uint64
}

// End returns the first byte offset past the entry's range.
func (e Entry) End() uint64 {
	return e.Start + e.Length
}

// HeaderSize is the serialized on-disk size of this entry's record:
// start + length + name_len + the name bytes themselves.
func (e Entry) HeaderSize() uint64 {
	return headerFixedWidth + uint64(len(e.Name))
}

// Exists reports whether this is a real, stored entry as opposed to a
// zero-length lookup-miss sentinel.
func (e Entry) Exists() bool {
	return e.Length > 0
}
