// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package uapi

import (
	"unsafe"
)

// JSEventType identifies the kind of a joystick event.
type JSEventType uint8

const (
	// JSEventButton indicates a button pressed or released.
	JSEventButton JSEventType = 0x01

	// JSEventAxis indicates a joystick axis moved.
	JSEventAxis JSEventType = 0x02

	// JSEventInit is or'ed into the type of the synthetic events the driver
	// emits on open to report initial state.
	JSEventInit JSEventType = 0x80
)

// IsInit returns true if the event reports initial state rather than a change.
func (t JSEventType) IsInit() bool {
	return t&JSEventInit != 0
}

// Kind returns the type with the init bit cleared.
func (t JSEventType) Kind() JSEventType {
	return t &^ JSEventInit
}

// JSEvent is a single event read from a joystick device.
type JSEvent struct {
	// Time is the event timestamp in milliseconds.
	Time uint32

	// Value is the axis position or button state.
	Value int16

	Type JSEventType

	// Number is the axis or button number.
	Number uint8
}

// SizeofJSEvent is the size of a JSEvent as read from a joystick device.
const SizeofJSEvent = 8

// JSNameMax is the length of buffer used to read the joystick name.
const JSNameMax = 128

// GetJoystickVersion returns the driver version of a joystick device.
func GetJoystickVersion(fd uintptr) (uint32, error) {
	var v uint32
	err := ioctlPtr(fd, jsGetVersionIoctl, unsafe.Pointer(&v))
	return v, err
}

// GetJoystickAxes returns the number of axes of a joystick device.
func GetJoystickAxes(fd uintptr) (uint8, error) {
	var n uint8
	err := ioctlPtr(fd, jsGetAxesIoctl, unsafe.Pointer(&n))
	return n, err
}

// GetJoystickButtons returns the number of buttons of a joystick device.
func GetJoystickButtons(fd uintptr) (uint8, error) {
	var n uint8
	err := ioctlPtr(fd, jsGetButtonsIoctl, unsafe.Pointer(&n))
	return n, err
}

// GetJoystickName returns the identifier string of a joystick device.
func GetJoystickName(fd uintptr) (string, error) {
	var name [JSNameMax]byte
	if err := ioctlPtr(fd, jsGetNameIoctl, unsafe.Pointer(&name[0])); err != nil {
		return "", err
	}
	return BytesToString(name[:]), nil
}

var (
	jsGetVersionIoctl ioctl
	jsGetAxesIoctl    ioctl
	jsGetButtonsIoctl ioctl
	jsGetNameIoctl    ioctl
)

func init() {
	jsGetVersionIoctl = ior('j', 0x01, 4)
	jsGetAxesIoctl = ior('j', 0x11, 1)
	jsGetButtonsIoctl = ior('j', 0x12, 1)
	jsGetNameIoctl = ior('j', 0x13, JSNameMax)
}
