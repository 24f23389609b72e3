//go:build linux

package main

import (
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/device/scsigeneric"
)

func openDrive(path string) (device.Drive, error) {
	return scsigeneric.Open(path)
}
