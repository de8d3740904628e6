// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package index

import (
	"fmt"

	"github.com/google/btree"

	"github.com/dhasenan/softie/codec"
)

const (
	// DataStart is the first byte offset available for subfile ranges:
	// right after the 4-byte magic and the 8-byte index pointer.
	DataStart uint64 = 12

	// IndexPointerPos is the file offset of the u64 pointing at the
	// live serialized Index chunk.
	IndexPointerPos int64 = 4

	// ReservedIndexName is the self-entry's name: the subfile whose
	// range holds the serialized Index itself.
	ReservedIndexName = "$$softie-index$$"

	// ReservedTmpResizeName is the transient name used while an entry
	// is being relocated: the new range is created under this name,
	// filled in, and only renamed over the original once copying
	// finishes.
	ReservedTmpResizeName = "$$softie-tmp-resize$$"

	// btreeDegree is an arbitrary node fanout; softie's target
	// cardinality (~1e5 entries) does not make this performance
	// sensitive.
	btreeDegree = 32
)

// ErrCorrupted is returned when a deserialized Index is internally
// inconsistent: a duplicate name, a record out of by-name order, or two
// overlapping ranges.
type ErrCorrupted struct {
	Reason string
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("softie/index: corrupted index: %s", e.Reason)
}

func byNameLess(a, b Entry) bool { return a.Name < b.Name }
func byStartLess(a, b Entry) bool { return a.Start < b.Start }

// Index is the in-memory catalog of every live Entry in a multifile,
// dual-ordered by name (for lookup) and by start offset (for the
// allocator and neighbour queries). It also knows how to serialize and
// deserialize itself, and owns the first-fit gap allocator.
type Index struct {
	byName  *btree.BTreeG[Entry]
	byStart *btree.BTreeG[Entry]
	size    uint64 // serialized byte length: 8 (count) + sum(entry.HeaderSize())
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		byName:  btree.NewG(btreeDegree, byNameLess),
		byStart: btree.NewG(btreeDegree, byStartLess),
		size:    8,
	}
}

// Size is the serialized byte length of the Index in its current state.
func (ix *Index) Size() uint64 {
	return ix.size
}

// Len returns the number of live entries.
func (ix *Index) Len() int {
	return ix.byName.Len()
}

// Lookup returns the live Entry with the given name, if any.
func (ix *Index) Lookup(name string) (Entry, bool) {
	return ix.byName.Get(Entry{Name: name})
}

// UpperBoundByStart returns the live Entry with the smallest Start
// strictly greater than e.Start, if one exists.
func (ix *Index) UpperBoundByStart(e Entry) (Entry, bool) {
	var found Entry
	ok := false

	ix.byStart.AscendGreaterOrEqual(Entry{Start: e.Start}, func(item Entry) bool {
		if item.Start <= e.Start {
			return true
		}
		found = item
		ok = true
		return false
	})

	return found, ok
}

// Ascend calls fn for every live entry in by-start order, stopping early
// if fn returns false.
func (ix *Index) Ascend(fn func(Entry) bool) {
	ix.byStart.Ascend(func(item Entry) bool {
		return fn(item)
	})
}

// AscendByName calls fn for every live entry in by-name (lexicographic)
// order, stopping early if fn returns false.
func (ix *Index) AscendByName(fn func(Entry) bool) {
	ix.byName.Ascend(func(item Entry) bool {
		return fn(item)
	})
}

// Insert adds e to both orderings. e's name must not already be present;
// e must not overlap any existing range.
func (ix *Index) Insert(e Entry) {
	ix.byName.ReplaceOrInsert(e)
	ix.byStart.ReplaceOrInsert(e)
	ix.size += e.HeaderSize()
}

// Remove deletes the live entry matching e's name from both orderings.
func (ix *Index) Remove(e Entry) {
	old, ok := ix.byName.Delete(e)
	if !ok {
		return
	}
	ix.byStart.Delete(old)
	ix.size -= old.HeaderSize()
}

// ResizeInPlace attempts to grow e to newLength without relocating it.
// It fails (returning false, *e unchanged) if the entry's neighbour by
// start offset is closer than newLength bytes away. On success *e is
// updated to the new length and the Index reflects the change.
func (ix *Index) ResizeInPlace(e *Entry, newLength uint64) bool {
	next, hasNext := ix.UpperBoundByStart(*e)
	if hasNext && next.Start < e.Start+newLength {
		return false
	}

	ix.Remove(*e)
	e.Length = newLength
	ix.Insert(*e)
	return true
}

// Rename removes e, changes its name, and re-inserts it. Used only while
// relocating an entry through the reserved temp name.
func (ix *Index) Rename(e *Entry, newName string) {
	ix.Remove(*e)
	e.Name = newName
	ix.Insert(*e)
}

// Create allocates a gap of the given length via FindGap, builds a new
// Entry for name there, inserts it, and returns it.
func (ix *Index) Create(name string, length uint64) Entry {
	e := Entry{Name: name, Start: ix.FindGap(length), Length: length}
	ix.Insert(e)
	return e
}

// FindGap runs the first-fit linear allocator described in the on-disk
// format spec: walk live entries in by-start order, and return the first
// gap of at least length bytes, or the offset just past the last entry
// if no earlier gap fits.
func (ix *Index) FindGap(length uint64) uint64 {
	last := DataStart

	ix.Ascend(func(e Entry) bool {
		if last+length <= e.Start {
			return false
		}
		last = e.End()
		return true
	})

	return last
}

// WriteToDisk is the central self-hosting routine: it serializes the
// Index to its current self-entry range if the range still fits, or
// relocates the self-entry to a fresh gap first. c must be positioned
// anywhere; WriteToDisk always seeks explicitly.
func (ix *Index) WriteToDisk(c *codec.Codec) error {
	self, ok := ix.Lookup(ReservedIndexName)
	if !ok {
		return ix.writeToNewSection(c)
	}

	next, hasNext := ix.UpperBoundByStart(self)
	if hasNext && next.Start < self.Start+ix.size {
		ix.Remove(self)
		return ix.writeToNewSection(c)
	}

	if err := c.Seek(int64(self.Start)); err != nil {
		return err
	}
	return ix.writeHere(c)
}

// writeToNewSection allocates a fresh, generously-sized range for the
// self-entry and serializes into it. The 50% growth margin amortizes the
// cost of Index relocation across many subsequent inserts.
func (ix *Index) writeToNewSection(c *codec.Codec) error {
	provisional := Entry{Name: ReservedIndexName, Length: 0}

	reserved := ix.size + provisional.HeaderSize()
	reserved += reserved >> 1

	provisional.Length = reserved
	provisional.Start = ix.FindGap(reserved)
	ix.Insert(provisional)

	if err := c.Seek(int64(provisional.Start)); err != nil {
		return err
	}
	return ix.writeHere(c)
}

// writeHere serializes the Index at the codec's current position, then
// updates the index pointer at IndexPointerPos to that position.
func (ix *Index) writeHere(c *codec.Codec) error {
	start, err := c.Tell()
	if err != nil {
		return err
	}

	if err := c.WriteUint64(uint64(ix.byName.Len())); err != nil {
		return err
	}

	var writeErr error
	ix.AscendByName(func(e Entry) bool {
		if err := c.WriteUint64(e.Start); err != nil {
			writeErr = err
			return false
		}
		if err := c.WriteUint64(e.Length); err != nil {
			writeErr = err
			return false
		}
		if err := c.WriteLenPrefixedString(e.Name); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}

	if err := c.Seek(IndexPointerPos); err != nil {
		return err
	}
	return c.WriteUint64(uint64(start))
}

// Load deserializes an Index at the codec's current position, inserting
// each entry it reads. Records are expected in strictly ascending
// by-name order, the same order writeHere serializes them in; a
// duplicate or out-of-order name, or a pair of overlapping ranges, is
// reported as ErrCorrupted rather than silently loaded.
func Load(c *codec.Codec) (*Index, error) {
	ix := New()

	count, err := c.ReadUint64()
	if err != nil {
		return nil, err
	}

	prevName := ""
	for i := uint64(0); i < count; i++ {
		start, err := c.ReadUint64()
		if err != nil {
			return nil, err
		}
		length, err := c.ReadUint64()
		if err != nil {
			return nil, err
		}
		name, err := c.ReadLenPrefixedString()
		if err != nil {
			return nil, err
		}

		if i > 0 && name <= prevName {
			return nil, &ErrCorrupted{Reason: fmt.Sprintf("out-of-order record %q after %q", name, prevName)}
		}
		prevName = name

		e := Entry{Name: name, Start: start, Length: length}
		if _, exists := ix.Lookup(name); exists {
			return nil, &ErrCorrupted{Reason: fmt.Sprintf("duplicate name %q", name)}
		}

		ix.Insert(e)
	}

	if err := ix.checkNonOverlap(); err != nil {
		return nil, err
	}

	return ix, nil
}

// checkNonOverlap re-verifies the non-overlap invariant (spec.md §8)
// across every live entry, by-start. A hand-corrupted on-disk Index
// with two overlapping ranges fails here instead of loading silently.
func (ix *Index) checkNonOverlap() error {
	var prev *Entry
	var err error

	ix.Ascend(func(e Entry) bool {
		if prev != nil && prev.End() > e.Start {
			err = &ErrCorrupted{Reason: fmt.Sprintf(
				"overlapping ranges: %q [%d,%d) and %q [%d,%d)",
				prev.Name, prev.Start, prev.End(), e.Name, e.Start, e.End())}
			return false
		}
		cp := e
		prev = &cp
		return true
	})

	return err
}
