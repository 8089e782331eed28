// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package record

import (
	"cmp"
	"unsafe"
)

// Fixed is a random access cursor over a buffer of fixed size records.
//
// Arithmetic and comparison are only meaningful between cursors over the
// same buffer.
type Fixed[T any] struct {
	buf []byte
	off int
}

// Size returns the stride of records of type T.
func Size[T any]() int {
	var t T
	return int(unsafe.Sizeof(t))
}

// Record returns the record at the cursor.
func (c Fixed[T]) Record() *T {
	return at[T](c.buf, c.off)
}

// Next returns a cursor at the following record.
func (c Fixed[T]) Next() Fixed[T] {
	return c.Add(1)
}

// Prev returns a cursor at the preceding record.
func (c Fixed[T]) Prev() Fixed[T] {
	return c.Add(-1)
}

// Add returns a cursor n records from c. n may be negative.
func (c Fixed[T]) Add(n int) Fixed[T] {
	return Fixed[T]{buf: c.buf, off: c.off + n*Size[T]()}
}

// Sub returns the number of records between o and c.
func (c Fixed[T]) Sub(o Fixed[T]) int {
	return (c.off - o.off) / Size[T]()
}

// Compare returns -1, 0 or +1 as c is before, at, or after o.
func (c Fixed[T]) Compare(o Fixed[T]) int {
	return cmp.Compare(c.off, o.off)
}

// Equal returns true if the cursors are at the same position.
func (c Fixed[T]) Equal(o Fixed[T]) bool {
	return c.off == o.off
}

// Less returns true if c is before o.
func (c Fixed[T]) Less(o Fixed[T]) bool {
	return c.off < o.off
}

// Offset returns the byte offset of the cursor into the buffer.
func (c Fixed[T]) Offset() int {
	return c.off
}

// NewFixed returns a cursor at the start of the buffer.
func NewFixed[T any](b []byte) Fixed[T] {
	return Fixed[T]{buf: b}
}

// NewFixedWindow returns the window of whole records of type T in b.
//
// b must be the bytes returned by a single read. Any trailing partial record
// is excluded. Panics if b is not aligned for T.
func NewFixedWindow[T any](b []byte) Window[T, Fixed[T]] {
	checkAlignment[T](b)
	n := len(b) - len(b)%Size[T]()
	return Window[T, Fixed[T]]{
		begin: Fixed[T]{buf: b},
		end:   Fixed[T]{buf: b, off: n},
	}
}

// Len returns the number of records in a fixed record window.
func Len[T any](w Window[T, Fixed[T]]) int {
	return w.End().Sub(w.Begin())
}

// At returns the nth record in a fixed record window.
func At[T any](w Window[T, Fixed[T]], n int) *T {
	return w.Begin().Add(n).Record()
}
