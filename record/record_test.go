// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package record_test

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpioplex/record"
)

type sample struct {
	Seq   uint32
	Value int16
	Kind  uint8
	Num   uint8
}

type header struct {
	ID  int32
	Len uint32
}

func (h header) PayloadLen() int {
	return int(h.Len)
}

func fixedBuffer(k int) []byte {
	b := record.NewBuffer(k * record.Size[sample]())
	for i := 0; i < k; i++ {
		o := i * 8
		binary.NativeEndian.PutUint32(b[o:], uint32(i+1))
		binary.NativeEndian.PutUint16(b[o+4:], uint16(int16(-i)))
		b[o+6] = 0x02
		b[o+7] = uint8(i)
	}
	return b
}

func varBuffer(names ...string) ([]byte, []int) {
	var raw []byte
	ends := []int{}
	for i, n := range names {
		// pad to the header alignment as the kernel does
		l := (len(n) + 4) &^ 3
		hdr := make([]byte, 8+l)
		binary.NativeEndian.PutUint32(hdr, uint32(i))
		binary.NativeEndian.PutUint32(hdr[4:], uint32(l))
		copy(hdr[8:], n)
		raw = append(raw, hdr...)
		ends = append(ends, len(raw))
	}
	b := record.NewBuffer(len(raw))
	copy(b, raw)
	return b, ends
}

func TestNewBuffer(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 48, 4096} {
		b := record.NewBuffer(n)
		assert.Equal(t, n, len(b))
		assert.GreaterOrEqual(t, cap(b), n)
	}
}

func TestFixedStride(t *testing.T) {
	for _, k := range []int{0, 1, 2, 7, 64} {
		f := func(t *testing.T) {
			b := fixedBuffer(k)
			w := record.NewFixedWindow[sample](b)
			assert.Equal(t, k, record.Len(w))
			assert.Equal(t, k, w.End().Sub(w.Begin()))
			assert.Equal(t, k == 0, w.Empty())
			i := 0
			for r := range w.All() {
				assert.Equal(t, uint32(i+1), r.Seq)
				assert.Equal(t, int16(-i), r.Value)
				assert.Equal(t, uint8(i), r.Num)
				i++
			}
			assert.Equal(t, k, i)
		}
		t.Run(fmt.Sprintf("k=%d", k), f)
	}
}

func TestFixedPartialTrailer(t *testing.T) {
	b := fixedBuffer(3)
	w := record.NewFixedWindow[sample](b[:len(b)-3])
	assert.Equal(t, 2, record.Len(w))
}

func TestFixedArithmetic(t *testing.T) {
	w := record.NewFixedWindow[sample](fixedBuffer(5))
	begin := w.Begin()
	end := w.End()

	c := begin.Add(3)
	assert.Equal(t, uint32(4), c.Record().Seq)
	assert.Equal(t, 3, c.Sub(begin))
	assert.Equal(t, -3, begin.Sub(c))
	assert.Equal(t, 24, c.Offset())
	assert.Equal(t, uint32(3), c.Prev().Record().Seq)
	assert.Equal(t, uint32(5), c.Next().Record().Seq)
	assert.True(t, c.Add(-3).Equal(begin))
	assert.True(t, end.Prev().Prev().Equal(c))
	assert.Equal(t, uint32(2), record.At(w, 1).Seq)

	patterns := []struct {
		name string
		l, r record.Fixed[sample]
		cmp  int
	}{
		{"lt", begin, c, -1},
		{"eq", c, begin.Add(3), 0},
		{"gt", end, c, 1},
		{"begin end", begin, end, -1},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			assert.Equal(t, p.cmp, p.l.Compare(p.r))
			assert.Equal(t, p.cmp < 0, p.l.Less(p.r))
			assert.Equal(t, p.cmp == 0, p.l.Equal(p.r))
			assert.Equal(t, p.cmp > 0, p.r.Less(p.l))
		}
		t.Run(p.name, tf)
	}
}

func TestFixedRecordInPlace(t *testing.T) {
	b := fixedBuffer(2)
	c := record.NewFixed[sample](b)
	r := c.Next().Record()
	assert.Equal(t, uint32(2), r.Seq)
	// views alias the buffer rather than copying it
	binary.NativeEndian.PutUint32(b[8:], 42)
	assert.Equal(t, uint32(42), r.Seq)
}

func TestVarStride(t *testing.T) {
	patterns := []struct {
		name  string
		names []string
	}{
		{"empty", nil},
		{"one", []string{"js0"}},
		{"mixed", []string{"js0", "event12", "", "by-id", "js17"}},
		{"long", []string{"a-rather-long-device-node-name-for-testing"}},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			b, ends := varBuffer(p.names...)
			w := record.NewVarWindow[header](b)
			assert.Equal(t, len(p.names) == 0, w.Empty())
			i := 0
			for c := range w.Cursors() {
				require.Less(t, i, len(p.names))
				assert.Equal(t, int32(i), c.Record().ID)
				assert.Equal(t, p.names[i], c.Name())
				assert.Equal(t, int(c.Record().Len), len(c.Payload()))
				assert.Equal(t, ends[i], c.Next().Offset())
				i++
			}
			assert.Equal(t, len(p.names), i)
		}
		t.Run(p.name, tf)
	}
}

func TestWindowRestartable(t *testing.T) {
	b, _ := varBuffer("js0", "js1")
	w := record.NewVarWindow[header](b)
	for pass := 0; pass < 2; pass++ {
		var ids []int32
		for h := range w.All() {
			ids = append(ids, h.ID)
		}
		assert.Equal(t, []int32{0, 1}, ids)
	}
	assert.True(t, w.Begin().Next().Next().Equal(w.End()))
}

func TestWindowEarlyExit(t *testing.T) {
	w := record.NewFixedWindow[sample](fixedBuffer(4))
	n := 0
	for range w.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestMisaligned(t *testing.T) {
	b := record.NewBuffer(32)
	assert.Panics(t, func() {
		record.NewFixedWindow[sample](b[1:25])
	})
	assert.Panics(t, func() {
		record.NewVarWindow[header](b[2:])
	})
	assert.NotPanics(t, func() {
		record.NewFixedWindow[sample](b[4:28])
	})
}
