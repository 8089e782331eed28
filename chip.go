// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// Package gpioplex drives a Charlieplexed LED matrix from joystick and GPIO
// input on Linux.
//
// This package provides thin wrappers around the kernel devices involved:
// the GPIO character device, joystick devices and inotify. Each wrapper
// exposes synchronous control operations and asynchronous event reads that
// deliver windows of kernel event records parsed in place.
//
// The engine itself lives in the sub-packages: record (event parsing),
// reactor (event loop), registry, hotplug, charlie (LED scheduling) and app
// (orchestration).
package gpioplex

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/uapi"
	"golang.org/x/sys/unix"
)

// InfoChanges is the window of line info changes returned by one read of a
// chip.
type InfoChanges = record.Window[uapi.LineInfoChanged, record.Fixed[uapi.LineInfoChanged]]

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	baseFd

	// The system name for this chip.
	Name string

	// A more detailed description of this chip.
	Label string

	// The number of GPIO lines on this chip.
	lines int

	options ChipOptions
}

// LineInfo contains a summary of publicly available information about the
// line.
type LineInfo struct {
	// The line offset within the chip.
	Offset int

	// The system name for the line.
	Name string

	// A string identifying the requester of the line, if requested.
	Consumer string

	// The configuration flags of the line.
	Flags uapi.LineFlag
}

// NewLineInfo converts the kernel representation of line info.
func NewLineInfo(li *uapi.LineInfo) LineInfo {
	return LineInfo{
		Offset:   int(li.Offset),
		Name:     uapi.BytesToString(li.Name[:]),
		Consumer: uapi.BytesToString(li.Consumer[:]),
		Flags:    li.Flags,
	}
}

// OpenChip opens a GPIO character device.
//
// The name may be a path such as "/dev/gpiochip0" or a bare name such as
// "gpiochip0".
func OpenChip(name string, options ...ChipOption) (*Chip, error) {
	path := nameToPath(name)
	err := IsChip(path)
	if err != nil {
		return nil, err
	}
	co := ChipOptions{
		consumer: fmt.Sprintf("gpioplex-%d", os.Getpid()),
	}
	for _, option := range options {
		option.applyChipOption(&co)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		// only happens if device removed/locked since IsChip call.
		return nil, err
	}
	ci, err := uapi.GetChipInfo(uintptr(fd))
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	c := Chip{
		baseFd:  baseFd{fd: fd},
		Name:    uapi.BytesToString(ci.Name[:]),
		Label:   uapi.BytesToString(ci.Label[:]),
		lines:   int(ci.Lines),
		options: co,
	}
	if len(c.Label) == 0 {
		c.Label = "unknown"
	}
	return &c, nil
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be closed
// independently.
func (c *Chip) Close() error {
	return c.baseFd.Close()
}

// Lines returns the number of lines that exist on the GPIO chip.
func (c *Chip) Lines() int {
	return c.lines
}

// LineInfo returns the publicly available information on the line.
//
// This is always available and does not require requesting the line.
func (c *Chip) LineInfo(offset int) (LineInfo, error) {
	if err := c.checkOffset(offset); err != nil {
		return LineInfo{}, err
	}
	li, err := uapi.GetLineInfo(uintptr(c.fd), offset)
	if err != nil {
		return LineInfo{}, err
	}
	return NewLineInfo(&li), nil
}

// WatchLineInfo enables reporting of changes to the info of the line,
// returning the current info.
//
// Changes are read from the chip using AsyncReadInfoChanges.
func (c *Chip) WatchLineInfo(offset int) (LineInfo, error) {
	if err := c.checkOffset(offset); err != nil {
		return LineInfo{}, err
	}
	li := uapi.LineInfo{Offset: uint32(offset)}
	if err := uapi.WatchLineInfo(uintptr(c.fd), &li); err != nil {
		return LineInfo{}, err
	}
	return NewLineInfo(&li), nil
}

// UnwatchLineInfo disables reporting of changes to the info of the line.
func (c *Chip) UnwatchLineInfo(offset int) error {
	if err := c.checkOffset(offset); err != nil {
		return err
	}
	return uapi.UnwatchLineInfo(uintptr(c.fd), uint32(offset))
}

// AsyncReadInfoChanges reads the next batch of changes to watched lines into
// buf.
//
// h is called once with the window of changes read, or an error. buf must
// be aligned for uapi.LineInfoChanged, as returned by record.NewBuffer, and
// must not be reused until h is called.
func (c *Chip) AsyncReadInfoChanges(r AsyncReader, buf []byte, h func(InfoChanges, error)) error {
	return c.asyncRead(r, buf, func(n int, err error) {
		if err != nil {
			h(InfoChanges{}, err)
			return
		}
		h(record.NewFixedWindow[uapi.LineInfoChanged](buf[:n]), nil)
	})
}

// RequestLines requests control of a collection of lines on the chip.
//
// The lines are requested as a batch and share the one kernel request. The
// returned Lines are non-blocking so events may be read asynchronously.
func (c *Chip) RequestLines(offsets []int, options ...LineOption) (*Lines, error) {
	if len(offsets) == 0 || len(offsets) > uapi.LinesMax {
		return nil, ErrInvalidOffset
	}
	for _, o := range offsets {
		if o < 0 || o >= c.lines {
			return nil, ErrInvalidOffset
		}
	}
	lo := LineOptions{consumer: c.options.consumer}
	for _, option := range options {
		option.applyLineOption(&lo)
	}
	lr := uapi.LineRequest{
		Lines:           uint32(len(offsets)),
		EventBufferSize: uint32(lo.eventBufferSize),
	}
	for i, o := range offsets {
		lr.Offsets[i] = uint32(o)
	}
	lr.SetConsumer(lo.consumer)
	lr.Config.Flags = lo.flags
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := uapi.GetLine(uintptr(c.fd), &lr); err != nil {
		return nil, fmt.Errorf("request lines %v on %s: %w", offsets, c.Name, err)
	}
	fd := int(lr.Fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Lines{
		baseFd:  baseFd{fd: fd},
		offsets: append([]int(nil), offsets...),
		chip:    c.Name,
	}, nil
}

func (c *Chip) checkOffset(offset int) error {
	if offset < 0 || offset >= c.lines {
		return ErrInvalidOffset
	}
	return c.checkOpen()
}

// IsChip checks if the named device is an accessible GPIO character device.
//
// Returns an error if not.
func IsChip(name string) error {
	path := nameToPath(name)
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		return ErrNotCharacterDevice
	}
	var stat unix.Stat_t
	if err = unix.Lstat(path, &stat); err != nil {
		return err
	}
	sysfspath := fmt.Sprintf("/sys/bus/gpio/devices/%s/dev", fi.Name())
	sysfsdev, err := os.ReadFile(sysfspath)
	if err != nil || len(sysfsdev) == 0 {
		return ErrNotCharacterDevice
	}
	devstr := fmt.Sprintf("%d:%d", unix.Major(uint64(stat.Rdev)), unix.Minor(uint64(stat.Rdev)))
	if devstr != strings.TrimSpace(string(sysfsdev)) {
		return ErrNotCharacterDevice
	}
	return nil
}

func nameToPath(name string) string {
	if strings.HasPrefix(name, "/dev/") {
		return name
	}
	return "/dev/" + name
}

var (
	// ErrClosed indicates the device has already been closed.
	ErrClosed = errors.New("already closed")

	// ErrInvalidOffset indicates a line offset is invalid.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrNotCharacterDevice indicates the device is not a character device.
	ErrNotCharacterDevice = errors.New("not a character device")
)
