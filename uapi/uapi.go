// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package uapi provides the GPIO character device definitions served by
// gpiolib/cdev.
//
// The records match the layout of the Linux GPIO uAPI v1, so clients of the
// kernel character device map directly onto them.
package uapi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidRecord indicates the value passed to Encode is not a fixed size
// record.
var ErrInvalidRecord = errors.New("invalid record")

// NameSize is the size of name and consumer strings, including the
// terminating null.
const NameSize = 32

// BytesToString is a helper function that converts strings stored in byte
// arrays, as returned by GetChipInfo and GetLineInfo, into strings.
func BytesToString(a []byte) string {
	n := bytes.IndexByte(a, 0)
	if n == -1 {
		return string(a)
	}
	return string(a[:n])
}

// PutString copies s into a, truncating if necessary so the string is always
// null terminated.
func PutString(a []byte, s string) {
	if len(a) == 0 {
		return
	}
	n := copy(a[:len(a)-1], s)
	for i := n; i < len(a); i++ {
		a[i] = 0
	}
}

// ReadEvent reads a single event from r.
func ReadEvent(r io.Reader) (EventData, error) {
	var ed EventData
	err := binary.Read(r, nativeEndian, &ed)
	return ed, err
}

// ReadLineInfoChanged reads a line info changed event from r.
func ReadLineInfoChanged(r io.Reader) (LineInfoChanged, error) {
	var lic LineInfoChanged
	err := binary.Read(r, nativeEndian, &lic)
	return lic, err
}

// Encode writes the record to b in native byte order.
//
// Returns the number of bytes written, or io.ErrShortBuffer if b is too
// small to contain the record.
func Encode(b []byte, record interface{}) (int, error) {
	n := binary.Size(record)
	if n < 0 {
		return 0, ErrInvalidRecord
	}
	if len(b) < n {
		return 0, io.ErrShortBuffer
	}
	var buf bytes.Buffer
	buf.Grow(n)
	if err := binary.Write(&buf, nativeEndian, record); err != nil {
		return 0, err
	}
	return copy(b, buf.Bytes()), nil
}

// ChipInfo contains the details of a GPIO chip.
type ChipInfo struct {
	// The system name of the device.
	Name [NameSize]byte

	// An identifying label added by the device driver.
	Label [NameSize]byte

	// The number of lines supported by this chip.
	Lines uint32
}

// LineInfo contains the details of a single line of a GPIO chip.
type LineInfo struct {
	// The offset of the line within the chip.
	Offset uint32

	// The line flags applied to this line.
	Flags LineFlag

	// The system name for this line.
	Name [NameSize]byte

	// If requested, a string added by the requester to identify the
	// owner of the request.
	Consumer [NameSize]byte
}

// LineInfoChanged contains the details of a change to line info.
//
// This is returned via the chip session in response to changes to watched
// lines.
type LineInfoChanged struct {
	// The updated info.
	Info LineInfo

	// The time the change occured.
	Timestamp uint64

	// The type of change.
	Type ChangeType

	// reserved for future use.
	_ [5]uint32
}

// LineInfoChangedSize is the encoded size of a LineInfoChanged.
var LineInfoChangedSize = binary.Size(LineInfoChanged{})

// ChangeType indicates the type of change that has occured to a line.
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

// LineFlag are the flags for a line.
type LineFlag uint32

const (
	// LineFlagRequested indicates that the line has been requested.
	// It may have been requested by this process or another process.
	// The line cannot be requested again until this flag is clear.
	LineFlagRequested LineFlag = 1 << iota

	// LineFlagIsOut indicates that the line is an output.
	LineFlagIsOut

	// LineFlagActiveLow indicates that the line is active low.
	LineFlagActiveLow

	// LineFlagOpenDrain indicates that the line will pull low when set low but
	// float when set high. This flag only applies to output lines.
	// An output cannot be both open drain and open source.
	LineFlagOpenDrain

	// LineFlagOpenSource indicates that the line will pull high when set high
	// but float when set low. This flag only applies to output lines.
	// An output cannot be both open drain and open source.
	LineFlagOpenSource
)

// IsRequested returns true if the line is requested.
func (f LineFlag) IsRequested() bool {
	return f&LineFlagRequested != 0
}

// IsOut returns true if the line is an output.
func (f LineFlag) IsOut() bool {
	return f&LineFlagIsOut != 0
}

// IsActiveLow returns true if the line is active low.
func (f LineFlag) IsActiveLow() bool {
	return f&LineFlagActiveLow != 0
}

// IsOpenDrain returns true if the line is open-drain.
func (f LineFlag) IsOpenDrain() bool {
	return f&LineFlagOpenDrain != 0
}

// IsOpenSource returns true if the line is open-source.
func (f LineFlag) IsOpenSource() bool {
	return f&LineFlagOpenSource != 0
}

// HandleConfig is a request to change the config of an existing handle
// request.
type HandleConfig struct {
	// The flags to be applied to the lines.
	Flags HandleFlag

	// The default values to be applied to output lines (when
	// HandleRequestOutput is set in the Flags).
	DefaultValues [HandlesMax]uint8

	// reserved for future use.
	_ [4]uint32
}

// HandleRequest is a request for control of a set of lines.
// The lines must all be on the same GPIO chip.
type HandleRequest struct {
	// The lines to be requested.
	Offsets [HandlesMax]uint32

	// The flags to be applied to the lines.
	Flags HandleFlag

	// The default values to be applied to output lines.
	DefaultValues [HandlesMax]uint8

	// The string identifying the requester to be applied to the lines.
	Consumer [NameSize]byte

	// The number of lines being requested.
	Lines uint32

	// The file handle for the requested lines.
	// Set if the request is successful.
	Fd int32
}

// HandleFlag contains the flags applied to lines in a handle request.
type HandleFlag uint32

const (
	// HandleRequestInput requests the line as an input.
	//
	// This cannot be set at the same time as Output.
	HandleRequestInput HandleFlag = 1 << iota

	// HandleRequestOutput requests the line as an output.
	//
	// This cannot be set at the same time as Input.
	HandleRequestOutput

	// HandleRequestActiveLow requests the line be made active low.
	HandleRequestActiveLow

	// HandleRequestOpenDrain requests the line be made open drain.
	//
	// This option requires the line to be requested as an Output.
	// This cannot be set at the same time as OpenSource.
	HandleRequestOpenDrain

	// HandleRequestOpenSource requests the line be made open source.
	//
	// This option requires the line to be requested as an Output.
	// This cannot be set at the same time as OpenDrain.
	HandleRequestOpenSource

	// HandleFlagMask covers all the valid handle flags.
	HandleFlagMask = HandleRequestInput |
		HandleRequestOutput |
		HandleRequestActiveLow |
		HandleRequestOpenDrain |
		HandleRequestOpenSource

	// HandlesMax is the maximum number of lines that can be requested in a
	// single request.
	HandlesMax = 64
)

// IsInput returns true if the line is requested as an input.
func (f HandleFlag) IsInput() bool {
	return f&HandleRequestInput != 0
}

// IsOutput returns true if the line is requested as an output.
func (f HandleFlag) IsOutput() bool {
	return f&HandleRequestOutput != 0
}

// IsActiveLow returns true if the line is requested as a active low.
func (f HandleFlag) IsActiveLow() bool {
	return f&HandleRequestActiveLow != 0
}

// IsOpenDrain returns true if the line is requested as an open drain.
func (f HandleFlag) IsOpenDrain() bool {
	return f&HandleRequestOpenDrain != 0
}

// IsOpenSource returns true if the line is requested as an open source.
func (f HandleFlag) IsOpenSource() bool {
	return f&HandleRequestOpenSource != 0
}

// HasUnknown returns true if any bits outside HandleFlagMask are set.
func (f HandleFlag) HasUnknown() bool {
	return f&^HandleFlagMask != 0
}

// HandleData contains the logical value for each line.
// Zero is a logical low and any other value is a logical high.
type HandleData [HandlesMax]uint8

// EventRequest is a request for control of a line with event reporting enabled.
type EventRequest struct {
	// The line to be requested.
	Offset uint32

	// The line flags applied to this line.
	HandleFlags HandleFlag

	// The type of events to report.
	EventFlags EventFlag

	// The string identifying the requester to be applied to the line.
	Consumer [NameSize]byte

	// The file handle for the requested line.
	// Set if the request is successful.
	Fd int32
}

// EventFlag indicates the types of events that will be reported.
type EventFlag uint32

const (
	// EventRequestRisingEdge requests rising edge events.
	// This means a transition from a low logical state to a high logical state.
	// For active high lines (the default) this means a transition from a
	// physical low to a physical high.
	// Note that for active low lines this means a transition from a physical
	// high to a physical low.
	EventRequestRisingEdge EventFlag = 1 << iota

	// EventRequestFallingEdge requests falling edge events.
	// This means a transition from a high logical state to a low logical state.
	// For active high lines (the default) this means a transition from a
	// physical high to a physical low.
	// Note that for active low lines this means a transition from a physical
	// low to a physical high.
	EventRequestFallingEdge

	// EventRequestBothEdges requests both rising and falling edge events.
	// This is equivalent to requesting both EventRequestRisingEdge and
	// EventRequestFallingEdge.
	EventRequestBothEdges = EventRequestRisingEdge | EventRequestFallingEdge
)

// IsRisingEdge returns true if rising edge events have been requested.
func (f EventFlag) IsRisingEdge() bool {
	return f&EventRequestRisingEdge != 0
}

// IsFallingEdge returns true if falling edge events have been requested.
func (f EventFlag) IsFallingEdge() bool {
	return f&EventRequestFallingEdge != 0
}

// IsBothEdges returns true if both rising and falling edge events have been
// requested.
func (f EventFlag) IsBothEdges() bool {
	return f&EventRequestBothEdges == EventRequestBothEdges
}

// HasUnknown returns true if any bits other than the edge flags are set.
func (f EventFlag) HasUnknown() bool {
	return f&^EventRequestBothEdges != 0
}

// Event types reported in EventData.ID.
const (
	// EventRisingEdge indicates an inactive to active event.
	EventRisingEdge uint32 = 0x01

	// EventFallingEdge indicates an active to inactive event.
	EventFallingEdge uint32 = 0x02
)

// EventData contains the details of a particular line event.
//
// This is returned via the event request in response to events.
type EventData struct {
	// The time the event was detected.
	Timestamp uint64

	// The type of event detected.
	ID uint32

	// pad to workaround 64-bit padding
	_ uint32
}

// EventDataSize is the encoded size of an EventData.
var EventDataSize = binary.Size(EventData{})
