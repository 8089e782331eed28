// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// Package uapi provides the Linux kernel ABI definitions used by gpioplex.
//
// This covers the GPIO character device (uAPI v2), the joystick device
// interface and the inotify event header. The structures mirror the kernel
// layouts exactly so they may be read in place from buffers filled by read(2).
package uapi

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GetChipInfo returns the ChipInfo for the GPIO character device.
//
// The fd is an open GPIO character device.
func GetChipInfo(fd uintptr) (ChipInfo, error) {
	var ci ChipInfo
	err := ioctlPtr(fd, getChipInfoIoctl, unsafe.Pointer(&ci))
	return ci, err
}

// ChipInfo contains the details of a GPIO chip.
type ChipInfo struct {
	// The system name of the device.
	Name [nameSize]byte

	// An identifying label added by the device driver.
	Label [nameSize]byte

	// The number of lines supported by this chip.
	Lines uint32
}

// BytesToString is a helper function that converts strings stored in byte
// arrays, as returned by GetChipInfo and the joystick name query, into
// strings.
func BytesToString(a []byte) string {
	n := bytes.IndexByte(a, 0)
	if n == -1 {
		return string(a)
	}
	return string(a[:n])
}

// ioctlPtr issues an ioctl whose argument is a pointer to a kernel structure.
func ioctlPtr(fd uintptr, op ioctl, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(op), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

const nameSize = 32

var getChipInfoIoctl ioctl

func init() {
	var ci ChipInfo
	getChipInfoIoctl = ior(0xB4, 0x01, unsafe.Sizeof(ci))
}
