// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package record provides cursors that walk kernel event records in place
// over a byte buffer, and windows bounding the records delivered by a single
// read.
//
// Two cursor kinds are provided. Fixed walks records of a fixed size and
// supports random access. Var walks records whose size depends on a length
// field in the record header, and so only supports forward iteration.
//
// Cursors never check bounds. A cursor positioned at the end of a Window is a
// sentinel and must not be dereferenced. Windows must only be constructed from
// the byte count returned by the read that filled the buffer.
//
// This is the only package that converts between bytes and record types.
package record

import (
	"fmt"
	"iter"
	"unsafe"
)

// Cursor is the capability shared by all cursor kinds.
type Cursor[T any, C any] interface {
	// Record returns a read-only view of the record at the cursor.
	Record() *T

	// Next returns a cursor positioned at the following record.
	Next() C

	// Equal returns true if the cursors are at the same position.
	Equal(C) bool
}

// Window is the range of records available in a buffer following a read.
//
// A window borrows the buffer and must not outlive it.
// Iteration is restartable.
type Window[T any, C Cursor[T, C]] struct {
	begin C
	end   C
}

// Begin returns a cursor at the first record.
func (w Window[T, C]) Begin() C {
	return w.begin
}

// End returns the end sentinel.
func (w Window[T, C]) End() C {
	return w.end
}

// Empty returns true if the window contains no records.
func (w Window[T, C]) Empty() bool {
	return w.begin.Equal(w.end)
}

// Cursors iterates over the cursors of each record in the window, in order.
func (w Window[T, C]) Cursors() iter.Seq[C] {
	return func(yield func(C) bool) {
		for c := w.begin; !c.Equal(w.end); c = c.Next() {
			if !yield(c) {
				return
			}
		}
	}
}

// All iterates over the records in the window, in order.
func (w Window[T, C]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for c := w.begin; !c.Equal(w.end); c = c.Next() {
			if !yield(c.Record()) {
				return
			}
		}
	}
}

// NewBuffer returns a buffer of at least size bytes suitably aligned for any
// record type.
func NewBuffer(size int) []byte {
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), len(words)*8)[:size]
}

func checkAlignment[T any](b []byte) {
	var t T
	a := uintptr(unsafe.Alignof(t))
	if uintptr(unsafe.Pointer(unsafe.SliceData(b)))%a != 0 {
		panic(fmt.Sprintf("record: buffer misaligned for %T", t))
	}
}

func at[T any](b []byte, off int) *T {
	return (*T)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(b)), off))
}
