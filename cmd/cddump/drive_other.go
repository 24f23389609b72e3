//go:build !linux

package main

import (
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/device/sim"
)

// openDrive falls back to the in-memory simulated drive on platforms
// without an SG_IO generic SCSI driver; it returns zero-filled sectors
// unless the caller configures it further.
func openDrive(path string) (device.Drive, error) {
	return sim.New(), nil
}
