// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package gpioplex

import (
	"fmt"
	"log/slog"

	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/registry"
	"github.com/warthog618/gpioplex/uapi"
	"golang.org/x/sys/unix"
)

// JoystickEvents is the window of events returned by one read of a joystick.
type JoystickEvents = record.Window[uapi.JSEvent, record.Fixed[uapi.JSEvent]]

// Joystick is an open joystick device node.
type Joystick struct {
	baseFd

	// Path is the path the device was opened from.
	Path string

	// Name is the identifier string reported by the driver.
	Name string

	// Version is the driver version.
	Version uint32

	// Axes is the number of axes.
	Axes uint8

	// Buttons is the number of buttons.
	Buttons uint8

	key registry.Key
}

// OpenJoystick opens the joystick at path, read-only and non-blocking, and
// queries its identity and capabilities.
func OpenJoystick(path string) (*Joystick, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	j := Joystick{baseFd: baseFd{fd: fd}, Path: path}
	if err = j.query(); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &j, nil
}

func (j *Joystick) query() (err error) {
	fd := uintptr(j.fd)
	if j.key, err = registry.KeyOfFd(j.fd); err != nil {
		return
	}
	if j.Name, err = uapi.GetJoystickName(fd); err != nil {
		return
	}
	if j.Version, err = uapi.GetJoystickVersion(fd); err != nil {
		return
	}
	if j.Axes, err = uapi.GetJoystickAxes(fd); err != nil {
		return
	}
	j.Buttons, err = uapi.GetJoystickButtons(fd)
	return
}

// Key returns the identity of the device node.
func (j *Joystick) Key() registry.Key {
	return j.key
}

// LogValue reports the joystick identity and capabilities.
func (j *Joystick) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", j.Path),
		slog.String("name", j.Name),
		slog.String("version", fmt.Sprintf("%#x", j.Version)),
		slog.Int("axes", int(j.Axes)),
		slog.Int("buttons", int(j.Buttons)),
	)
}

// AsyncReadEvents reads the next batch of joystick events into buf.
//
// h is called once with the window of events read, or an error. buf must
// not be reused until h is called.
func (j *Joystick) AsyncReadEvents(r AsyncReader, buf []byte, h func(JoystickEvents, error)) error {
	return j.asyncRead(r, buf, func(n int, err error) {
		if err != nil {
			h(JoystickEvents{}, err)
			return
		}
		h(record.NewFixedWindow[uapi.JSEvent](buf[:n]), nil)
	})
}
