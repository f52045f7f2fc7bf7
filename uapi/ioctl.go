// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package uapi

import (
	"fmt"
	"unsafe"
)

// Ioctl is a control-plane request code.
//
// Codes are encoded as per the generic Linux _IOC layout, so they match the
// codes of the GPIO character device on arm, arm64, 386 and amd64.
type Ioctl uintptr

// ioctl layout
const (
	iocNRBits    = 8
	iocTypeBits  = 8
	iocSizeBits  = 14
	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
	iocWrite     = 1
	iocRead      = 2

	gpioIoctlType = 0xB4
)

func ior(t, nr, size uintptr) Ioctl {
	return Ioctl((iocRead << iocDirShift) |
		(size << iocSizeShift) |
		(t << iocTypeShift) |
		(nr << iocNRShift))
}

func iorw(t, nr, size uintptr) Ioctl {
	return Ioctl(((iocRead | iocWrite) << iocDirShift) |
		(size << iocSizeShift) |
		(t << iocTypeShift) |
		(nr << iocNRShift))
}

// Request codes.
var (
	GetChipInfoIoctl     = ior(gpioIoctlType, 0x01, unsafe.Sizeof(ChipInfo{}))
	GetLineInfoIoctl     = iorw(gpioIoctlType, 0x02, unsafe.Sizeof(LineInfo{}))
	GetLineHandleIoctl   = iorw(gpioIoctlType, 0x03, unsafe.Sizeof(HandleRequest{}))
	GetLineEventIoctl    = iorw(gpioIoctlType, 0x04, unsafe.Sizeof(EventRequest{}))
	GetLineValuesIoctl   = iorw(gpioIoctlType, 0x08, unsafe.Sizeof(HandleData{}))
	SetLineValuesIoctl   = iorw(gpioIoctlType, 0x09, unsafe.Sizeof(HandleData{}))
	SetLineConfigIoctl   = iorw(gpioIoctlType, 0x0a, unsafe.Sizeof(HandleConfig{}))
	WatchLineInfoIoctl   = iorw(gpioIoctlType, 0x0b, unsafe.Sizeof(LineInfo{}))
	UnwatchLineInfoIoctl = iorw(gpioIoctlType, 0x0c, unsafe.Sizeof(uint32(0)))
)

// NR returns the request number within the GPIO request codes.
func (i Ioctl) NR() int {
	return int(i>>iocNRShift) & (1<<iocNRBits - 1)
}

// Size returns the size of the argument to the request.
func (i Ioctl) Size() int {
	return int(i>>iocSizeShift) & (1<<iocSizeBits - 1)
}

func (i Ioctl) String() string {
	switch i {
	case GetChipInfoIoctl:
		return "GET_CHIPINFO"
	case GetLineInfoIoctl:
		return "GET_LINEINFO"
	case GetLineHandleIoctl:
		return "GET_LINEHANDLE"
	case GetLineEventIoctl:
		return "GET_LINEEVENT"
	case GetLineValuesIoctl:
		return "GET_LINE_VALUES"
	case SetLineValuesIoctl:
		return "SET_LINE_VALUES"
	case SetLineConfigIoctl:
		return "SET_CONFIG"
	case WatchLineInfoIoctl:
		return "GET_LINEINFO_WATCH"
	case UnwatchLineInfoIoctl:
		return "GET_LINEINFO_UNWATCH"
	}
	return fmt.Sprintf("ioctl(0x%x)", uintptr(i))
}
