//go:build linux

// Package scsigeneric implements device.Drive against a real optical
// drive on Linux, using the SCSI generic (SG_IO) ioctl. Where a cgo
// wrapper around libcdio would open a CdIo_t and call
// cdio_read_audio_sectors/cdio_get_hwinfo through the C API, this
// package issues the same class of MMC commands (READ CD, MODE
// SENSE/SELECT, INQUIRY, READ TOC/PMA/ATIP) directly over SG_IO, so the
// core can be built and tested without cgo or a libcdio dependency.
package scsigeneric

import (
	"os"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/rabidaudio/cdimage/device"
)

// sgIO is the Linux `sg_io_hdr_t` structure (linux/include/scsi/sg.h),
// reproduced field-for-field so it can be passed directly to ioctl(2).
type sgIO struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         byte
	mxSbLen        byte
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         byte
	maskedStatus   byte
	msgStatus      byte
	sbLenWr        byte
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

const (
	sgInterfaceID = 'S'
	sgIOCtl       = 0x2285 // SG_IO

	sgDxferNone     = -1
	sgDxferToDev    = -2
	sgDxferFromDev  = -3

	defaultTimeoutMs = 20000
)

// Drive talks to a single block device node (e.g. /dev/sr0) via SG_IO.
type Drive struct {
	f *os.File
}

// Open opens the device node for SCSI generic I/O.
func Open(path string) (*Drive, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "scsigeneric: open %s", path)
	}
	return &Drive{f: f}, nil
}

// Close releases the device node.
func (d *Drive) Close() error { return d.f.Close() }

var _ device.Drive = (*Drive)(nil)

// execute issues one SCSI command via SG_IO and returns the transferred
// data, sense buffer and command duration.
func (d *Drive) execute(cdb []byte, data []byte, direction int32, timeout time.Duration) ([]byte, device.Sense, time.Duration, error) {
	sense := make([]byte, 32)
	ms := uint32(timeout.Milliseconds())
	if ms == 0 {
		ms = defaultTimeoutMs
	}

	hdr := sgIO{
		interfaceID:    sgInterfaceID,
		dxferDirection: direction,
		cmdLen:         byte(len(cdb)),
		mxSbLen:        byte(len(sense)),
		dxferLen:       uint32(len(data)),
		timeout:        ms,
	}
	if len(data) > 0 {
		hdr.dxferp = uintptr(unsafe.Pointer(&data[0]))
	}
	hdr.cmdp = uintptr(unsafe.Pointer(&cdb[0]))
	hdr.sbp = uintptr(unsafe.Pointer(&sense[0]))

	start := time.Now()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uintptr(sgIOCtl), uintptr(unsafe.Pointer(&hdr)))
	duration := time.Since(start)
	if errno != 0 {
		return nil, device.Sense{}, duration, errors.Wrap(errno, "scsigeneric: SG_IO ioctl failed")
	}

	s := device.Sense{}
	if hdr.sbLenWr > 2 {
		s.Valid = true
		s.SenseKey = sense[2] & 0x0F
		if int(hdr.sbLenWr) > 12 {
			s.ASC = sense[12]
		}
		if int(hdr.sbLenWr) > 13 {
			s.ASCQ = sense[13]
		}
	}

	if hdr.status != 0 || hdr.hostStatus != 0 || hdr.driverStatus != 0 {
		return data, s, duration, errors.Errorf("scsigeneric: command failed status=%d host=%d driver=%d sense=%+v",
			hdr.status, hdr.hostStatus, hdr.driverStatus, s)
	}
	return data, s, duration, nil
}
