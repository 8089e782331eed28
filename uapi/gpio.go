// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package uapi

import (
	"unsafe"
)

// GetLine requests a set of lines from the GPIO character device.
//
// The fd is an open GPIO character device.
// The lines must not already be requested.
// If successful, the fd for the lines is returned in request.Fd.
func GetLine(fd uintptr, request *LineRequest) error {
	return ioctlPtr(fd, getLineIoctl, unsafe.Pointer(request))
}

// GetLineValues returns the values of a set of requested lines.
//
// Only the lines identified by values.Mask are read.
// The fd is a requested line, as returned by GetLine.
func GetLineValues(fd uintptr, values *LineValues) error {
	return ioctlPtr(fd, getLineValuesIoctl, unsafe.Pointer(values))
}

// SetLineValues sets the values of the set of requested lines identified by
// values.Mask.
//
// The fd is a requested line, as returned by GetLine.
func SetLineValues(fd uintptr, values LineValues) error {
	return ioctlPtr(fd, setLineValuesIoctl, unsafe.Pointer(&values))
}

// SetLineConfig replaces the config of an existing line request.
func SetLineConfig(fd uintptr, config *LineConfig) error {
	return ioctlPtr(fd, setLineConfigIoctl, unsafe.Pointer(config))
}

// GetLineInfo returns the LineInfo for one line from the GPIO character
// device.
//
// The fd is an open GPIO character device.
func GetLineInfo(fd uintptr, offset int) (LineInfo, error) {
	li := LineInfo{Offset: uint32(offset)}
	err := ioctlPtr(fd, getLineInfoIoctl, unsafe.Pointer(&li))
	return li, err
}

// WatchLineInfo sets a watch on the info of a line, returning the current
// info in info.
//
// Changes are reported as LineInfoChanged records read from the chip fd.
// info.Offset identifies the line to watch.
func WatchLineInfo(fd uintptr, info *LineInfo) error {
	return ioctlPtr(fd, watchLineInfoIoctl, unsafe.Pointer(info))
}

// UnwatchLineInfo clears a watch on the info of a line.
func UnwatchLineInfo(fd uintptr, offset uint32) error {
	return ioctlPtr(fd, unwatchLineInfoIoctl, unsafe.Pointer(&offset))
}

var (
	getLineInfoIoctl     ioctl
	watchLineInfoIoctl   ioctl
	unwatchLineInfoIoctl ioctl
	getLineIoctl         ioctl
	getLineValuesIoctl   ioctl
	setLineValuesIoctl   ioctl
	setLineConfigIoctl   ioctl
)

func init() {
	// ioctls require struct sizes which are only available at runtime.
	var li LineInfo
	getLineInfoIoctl = iorw(0xB4, 0x05, unsafe.Sizeof(li))
	watchLineInfoIoctl = iorw(0xB4, 0x06, unsafe.Sizeof(li))
	unwatchLineInfoIoctl = iorw(0xB4, 0x0C, unsafe.Sizeof(li.Offset))
	var lr LineRequest
	getLineIoctl = iorw(0xB4, 0x07, unsafe.Sizeof(lr))
	var lc LineConfig
	setLineConfigIoctl = iorw(0xB4, 0x0D, unsafe.Sizeof(lc))
	var lv LineValues
	getLineValuesIoctl = iorw(0xB4, 0x0E, unsafe.Sizeof(lv))
	setLineValuesIoctl = iorw(0xB4, 0x0F, unsafe.Sizeof(lv))
}

// LineFlag are the flags for a line.
type LineFlag uint64

const (
	// LineFlagUsed indicates that the line is already in use.
	LineFlagUsed LineFlag = 1 << iota

	// LineFlagActiveLow indicates that the line is active low.
	LineFlagActiveLow

	// LineFlagInput indicates that the line direction is an input.
	LineFlagInput

	// LineFlagOutput indicates that the line direction is an output.
	LineFlagOutput

	// LineFlagEdgeRising enables edge detection on rising edges.
	LineFlagEdgeRising

	// LineFlagEdgeFalling enables edge detection on falling edges.
	LineFlagEdgeFalling

	// LineFlagOpenDrain indicates that the line drive is open drain.
	LineFlagOpenDrain

	// LineFlagOpenSource indicates that the line drive is open source.
	LineFlagOpenSource

	// LineFlagBiasPullUp indicates that the line bias is pull-up.
	LineFlagBiasPullUp

	// LineFlagBiasPullDown indicates that the line bias is pull-down.
	LineFlagBiasPullDown

	// LineFlagBiasDisabled indicates that the line bias is disabled.
	LineFlagBiasDisabled

	// LineFlagEventClockRealtime selects CLOCK_REALTIME for event timestamps.
	LineFlagEventClockRealtime

	// LineFlagEdgeBoth selects edge detection on both edges.
	LineFlagEdgeBoth = LineFlagEdgeRising | LineFlagEdgeFalling
)

// IsInput returns true if the line is an input.
func (f LineFlag) IsInput() bool {
	return f&LineFlagInput != 0
}

// IsOutput returns true if the line is an output.
func (f LineFlag) IsOutput() bool {
	return f&LineFlagOutput != 0
}

// IsUsed returns true if the line is requested, or otherwise claimed by the
// kernel.
func (f LineFlag) IsUsed() bool {
	return f&LineFlagUsed != 0
}

// IsActiveLow returns true if the line is active low.
func (f LineFlag) IsActiveLow() bool {
	return f&LineFlagActiveLow != 0
}

// Encode creates a LineAttribute with the value from the LineFlag.
func (f LineFlag) Encode() (la LineAttribute) {
	la.ID = LineAttributeIDFlags
	nativeEndian.PutUint64(la.Value[:], uint64(f))
	return
}

const (
	// LinesMax is the maximum number of lines that can be requested in a single
	// request.
	LinesMax int = 64

	// SizeofLineEvent is the size of a LineEvent as read from a line request.
	SizeofLineEvent = 48

	// SizeofLineInfoChanged is the size of a LineInfoChanged as read from a
	// chip.
	SizeofLineInfoChanged = 288

	// the pad sizes of each struct
	lineConfigPadSize      int = 5
	lineRequestPadSize     int = 5
	lineEventPadSize       int = 6
	lineInfoPadSize        int = 4
	lineInfoChangedPadSize int = 5

	lineConfigAttrsMax = 10
)

// LineAttributeID identifies the type of a configuration attribute.
type LineAttributeID uint32

const (
	// LineAttributeIDFlags indicates the attribute contains LineFlag flags.
	LineAttributeIDFlags LineAttributeID = iota + 1

	// LineAttributeIDOutputValues indicates the attribute contains output values.
	LineAttributeIDOutputValues

	// LineAttributeIDDebounce indicates the attribute contains a debounce period.
	LineAttributeIDDebounce
)

// LineAttribute defines a configuration attribute for a line.
type LineAttribute struct {
	ID LineAttributeID

	Padding [1]uint32

	Value [8]byte
}

// Value64 returns the 64-bit value from the LineAttribute.
func (la LineAttribute) Value64() uint64 {
	return nativeEndian.Uint64(la.Value[:])
}

// LineConfigAttribute associates a configuration attribute with one or more
// requested lines.
type LineConfigAttribute struct {
	// Attr contains the configuration attribute.
	Attr LineAttribute

	// Mask identifies the lines to which this attribute applies.
	//
	// This is a bitmap of lines in LineRequest.Offsets.
	Mask LineBitmap
}

// LineConfig contains the configuration of a set of lines.
//
// Flags apply to all lines not covered by an attribute.
type LineConfig struct {
	Flags LineFlag

	NumAttrs uint32

	// reserved for future use.
	Padding [lineConfigPadSize]uint32

	Attrs [lineConfigAttrsMax]LineConfigAttribute
}

// AddAttribute adds an attribute to the configuration.
//
// Attributes beyond the kernel limit are silently dropped.
func (lc *LineConfig) AddAttribute(lca LineConfigAttribute) {
	if lc.NumAttrs < lineConfigAttrsMax {
		lc.Attrs[lc.NumAttrs] = lca
		lc.NumAttrs++
	}
}

// LineRequest is a request for control of a set of lines.
// The lines must all be on the same GPIO chip.
type LineRequest struct {
	// The lines to be requested.
	Offsets [LinesMax]uint32

	// The string identifying the requester to be applied to the lines.
	Consumer [nameSize]byte

	// The configuration for the requested lines
	Config LineConfig

	// The number of lines being requested.
	Lines uint32

	// Minimum size of the event buffer.
	EventBufferSize uint32

	// reserved for future use.
	Padding [lineRequestPadSize]uint32

	// The file handle for the requested lines.
	// Set if the request is successful.
	Fd int32
}

// SetConsumer copies the consumer label into the request, truncating it to
// leave room for the terminating null.
func (lr *LineRequest) SetConsumer(consumer string) {
	lr.Consumer = [nameSize]byte{}
	copy(lr.Consumer[:nameSize-1], consumer)
}

// LineBitmap is a bitmap containing a bit for each line.
type LineBitmap uint64

// NewLineBits creates a new LineBitmap with the numbered bits set.
func NewLineBits(vv ...int) LineBitmap {
	var lb LineBitmap
	for _, bit := range vv {
		lb = lb.Set(bit, 1)
	}
	return lb
}

// NewLineBitMask returns a mask of the lower n bits.
func NewLineBitMask(n int) LineBitmap {
	if n >= LinesMax {
		return ^LineBitmap(0)
	}
	return (LineBitmap(1) << uint(n)) - 1
}

// Get returns the value of the nth bit.
func (lb LineBitmap) Get(n int) int {
	if lb&(LineBitmap(1)<<uint(n)) != 0 {
		return 1
	}
	return 0
}

// Set sets the value of the nth bit.
func (lb LineBitmap) Set(n, v int) LineBitmap {
	mask := LineBitmap(1) << uint(n)
	if v == 0 {
		return lb &^ mask
	}
	return lb | mask
}

// LineValues contains the values for a set of lines.
type LineValues struct {
	// Bits contains the logical value of the the lines.
	//
	// This is a bitmap of lines in LineRequest.Offsets.
	Bits LineBitmap

	// Mask identifies the lines to which Bits applies.
	Mask LineBitmap
}

// Get returns the value of the nth line.
func (lv LineValues) Get(n int) int {
	return lv.Bits.Get(n)
}

// LineEventID indicates the type of event detected.
type LineEventID uint32

const (
	// LineEventRisingEdge indicates the event is a rising edge.
	LineEventRisingEdge LineEventID = iota + 1

	// LineEventFallingEdge indicates the event is a falling edge.
	LineEventFallingEdge
)

// LineEvent contains the details of a particular line event.
//
// This is returned via the line request fd in response to edges.
type LineEvent struct {
	// The time the event was detected, in nanoseconds.
	Timestamp uint64

	// The type of event detected.
	ID LineEventID

	// The line that triggered the event.
	Offset uint32

	// The seqno for this event in all events on all lines in this line request.
	Seqno uint32

	// The seqno for this event in all events in this line.
	LineSeqno uint32

	// reserved for future use
	Padding [lineEventPadSize]uint32
}

// LineInfo contains the details of a single line of a GPIO chip.
type LineInfo struct {
	// The system name for this line.
	Name [nameSize]byte

	// If requested, a string added by the requester to identify the
	// owner of the request.
	Consumer [nameSize]byte

	// The offset of the line within the chip.
	Offset uint32

	NumAttrs uint32

	Flags LineFlag

	Attrs [lineConfigAttrsMax]LineAttribute

	// reserved for future use.
	Padding [lineInfoPadSize]uint32
}

// ChangeType indicates the type of change that has occurred to a line.
type ChangeType uint32

const (
	_ ChangeType = iota

	// LineChangedRequested indicates the line has been requested.
	LineChangedRequested

	// LineChangedReleased indicates the line has been released.
	LineChangedReleased

	// LineChangedConfig indicates the line configuration has changed.
	LineChangedConfig
)

// String returns the change in the form reported by gpioplex watch.
func (c ChangeType) String() string {
	switch c {
	case LineChangedRequested:
		return "requested"
	case LineChangedReleased:
		return "released"
	case LineChangedConfig:
		return "reconfigured"
	}
	return "unknown"
}

// LineInfoChanged contains the details of a change to line info.
//
// This is read from the chip fd in response to changes to watched lines.
type LineInfoChanged struct {
	// The updated info.
	Info LineInfo

	// The time the change occurred, in nanoseconds.
	Timestamp uint64

	// The type of change.
	Type ChangeType

	// reserved for future use.
	Padding [lineInfoChangedPadSize]uint32
}
