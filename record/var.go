// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package record

import (
	"bytes"
	"unsafe"
)

// VarHeader is the fixed header of a variable length record.
type VarHeader interface {
	// PayloadLen returns the number of bytes following the header that belong
	// to the record.
	PayloadLen() int
}

// Var is a forward only cursor over a buffer of variable length records.
//
// The stride is only known once the header at the cursor has been read, so
// there is no backward motion, arithmetic or ordering.
type Var[H VarHeader] struct {
	buf []byte
	off int
}

func headerSize[H VarHeader]() int {
	var h H
	return int(unsafe.Sizeof(h))
}

// Record returns the header at the cursor.
func (c Var[H]) Record() *H {
	return at[H](c.buf, c.off)
}

// Payload returns the bytes following the header.
func (c Var[H]) Payload() []byte {
	start := c.off + headerSize[H]()
	return c.buf[start : start+(*c.Record()).PayloadLen()]
}

// Name returns the payload as a string, truncated at the first null.
func (c Var[H]) Name() string {
	p := c.Payload()
	if n := bytes.IndexByte(p, 0); n >= 0 {
		p = p[:n]
	}
	return string(p)
}

// Next returns a cursor at the following record.
func (c Var[H]) Next() Var[H] {
	return Var[H]{buf: c.buf, off: c.off + headerSize[H]() + (*c.Record()).PayloadLen()}
}

// Equal returns true if the cursors are at the same position.
func (c Var[H]) Equal(o Var[H]) bool {
	return c.off == o.off
}

// Offset returns the byte offset of the cursor into the buffer.
func (c Var[H]) Offset() int {
	return c.off
}

// NewVar returns a cursor at the start of the buffer.
func NewVar[H VarHeader](b []byte) Var[H] {
	return Var[H]{buf: b}
}

// NewVarWindow returns the window of records in b.
//
// b must be the bytes returned by a single read, which the kernel guarantees
// contains whole records. Panics if b is not aligned for H.
func NewVarWindow[H VarHeader](b []byte) Window[H, Var[H]] {
	checkAlignment[H](b)
	return Window[H, Var[H]]{
		begin: Var[H]{buf: b},
		end:   Var[H]{buf: b, off: len(b)},
	}
}
