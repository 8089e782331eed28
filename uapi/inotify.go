// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package uapi

// InotifyEvent is the fixed header of an inotify record.
//
// The header is followed by Len bytes of name, null padded, so records are
// of variable length.
type InotifyEvent struct {
	Wd     int32
	Mask   uint32
	Cookie uint32
	Len    uint32
}

// SizeofInotifyEvent is the size of the fixed header.
const SizeofInotifyEvent = 16

// PayloadLen returns the number of name bytes following the header.
func (e InotifyEvent) PayloadLen() int {
	return int(e.Len)
}
