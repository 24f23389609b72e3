package sim

import (
	"time"

	"github.com/pkg/errors"

	"github.com/rabidaudio/cdimage/device"
)

// blockSize returns the per-sector size this simulated drive uses for a
// given subchannel request, independent of the sector package so this fake
// has no dependency on the rest of the core.
func blockSize(req device.SubchannelRequest) int {
	switch req {
	case device.SubchannelRawPW96:
		return 2352 + 96
	case device.SubchannelPackedQ16:
		return 2352 + 16
	default:
		return 2352
	}
}

// ReadCd simulates a READ CD command: it validates the requested
// subchannel framing and block count against the configured drive
// capabilities, applies any injected per-LBA failures, and otherwise
// returns the configured (or zero-filled) sector data.
func (d *Drive) ReadCd(req device.ReadCdRequest) (device.ReadCdResult, error) {
	d.Reads = append(d.Reads, req)

	if !d.SupportedSubchannel[req.Subchannel] {
		return device.ReadCdResult{}, errors.New("sim: drive does not support requested subchannel framing")
	}
	if d.MaxBlocksAccepted > 0 && req.Count > d.MaxBlocksAccepted {
		return device.ReadCdResult{}, errors.Errorf("sim: drive rejects reads of more than %d blocks", d.MaxBlocksAccepted)
	}
	want := blockSize(req.Subchannel)
	if req.BlockSize != want {
		return device.ReadCdResult{}, errors.Errorf("sim: block size %d does not match framing %d", req.BlockSize, want)
	}

	for lba := req.LBA; lba < req.LBA+req.Count; lba++ {
		if rule, ok := d.Failures[lba]; ok {
			if rule.Attempts < 0 || rule.seen < rule.Attempts {
				rule.seen++
				return device.ReadCdResult{Sense: rule.Sense, Duration: time.Millisecond}, errors.New("sim: injected read failure")
			}
		}
	}

	buf := make([]byte, req.Count*req.BlockSize)
	for i := 0; i < req.Count; i++ {
		lba := req.LBA + i
		frame := buf[i*req.BlockSize : (i+1)*req.BlockSize]
		if data, ok := d.SectorData[lba]; ok {
			copy(frame, data)
		}
	}

	return device.ReadCdResult{Data: buf, Duration: time.Millisecond}, nil
}
