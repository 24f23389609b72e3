// Package capability implements the Capability Prober: it
// determines the highest-fidelity sector framing the drive supports and
// whether the output sink can consume it, then derives the largest safe
// read burst size.
package capability

import (
	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

// Capabilities is the immutable result of probing, carried for the rest of
// the session.
type Capabilities struct {
	Framing             sector.Framing
	MaxBlocksPerCommand int
}

// startBlocksPerCommand and minBlocksPerCommand bound the halving search
// for the largest safe read burst.
const (
	startBlocksPerCommand = 64
	minBlocksPerCommand   = 1
)

// candidateOrder is the ordered list of (format, device request kind,
// sink tag) this prober tries, most fidelity first.
var candidateOrder = []struct {
	format     sector.SubchannelFormat
	subchannel device.SubchannelRequest
	tag        sink.SectorTagKind
	hasTag     bool
}{
	{sector.RawPW96, device.SubchannelRawPW96, sink.TagSubchannelRawPW96, true},
	{sector.PackedQ16, device.SubchannelPackedQ16, sink.TagSubchannelPackedQ16, true},
	{sector.None, device.SubchannelNone, 0, false},
}

// Probe runs the full framing/burst-size discovery sequence against drv.
// dumpRaw selects whether subchannel framing is attempted at all: when
// false (the CLI default), the prober goes straight to None and never
// issues a subchannel-bearing READ CD, since capturing P-W/Q subchannel
// is the more expensive, opt-in "--dump-raw" behavior.
func Probe(drv device.Drive, supportedTags []sink.SectorTagKind, force bool, dumpRaw bool) (Capabilities, error) {
	format, _, err := probeFraming(drv, dumpRaw)
	if err != nil {
		return Capabilities{}, err
	}

	format, err = clampToSink(format, supportedTags, force)
	if err != nil {
		return Capabilities{}, err
	}
	framing := sector.NewFraming(format)

	subReq := device.SubchannelNone
	for _, c := range candidateOrder {
		if c.format == format {
			subReq = c.subchannel
		}
	}

	maxBlocks, err := probeMaxBlocks(drv, framing, subReq)
	if err != nil {
		return Capabilities{}, err
	}

	return Capabilities{
		Framing:             framing,
		MaxBlocksPerCommand: maxBlocks,
	}, nil
}

// probeFraming tries each candidate subchannel framing in order, accepting
// the first that successfully reads LBA 0. When dumpRaw is false, only the
// no-subchannel candidate is tried.
func probeFraming(drv device.Drive, dumpRaw bool) (sector.SubchannelFormat, device.SubchannelRequest, error) {
	for _, c := range candidateOrder {
		if !dumpRaw && c.format != sector.None {
			continue
		}
		framing := sector.NewFraming(c.format)
		_, err := drv.ReadCd(device.ReadCdRequest{
			LBA:         0,
			BlockSize:   framing.BlockSize,
			Count:       1,
			SectorTypes: device.AllTypes,
			Header:      device.AllHeaders,
			EDC:         true,
			C2:          true,
			Subchannel:  c.subchannel,
		})
		if err == nil {
			return c.format, c.subchannel, nil
		}
	}
	return sector.None, device.SubchannelNone, cderr.New(cderr.DriveUnreadable, "capability: drive rejected every subchannel framing at LBA 0")
}

// clampToSink keeps the probed format when the sink can store its sector
// tag, otherwise steps down to the next lower-fidelity subchannel format
// the sink can store. When the sink stores none of them, it downgrades to
// None if force is set and fails otherwise. Capability downgrade is
// monotonic: this function only ever returns a format with equal or lower
// fidelity than the one it was given.
func clampToSink(format sector.SubchannelFormat, supportedTags []sink.SectorTagKind, force bool) (sector.SubchannelFormat, error) {
	if format == sector.None {
		return format, nil
	}

	reached := false
	for _, c := range candidateOrder {
		if c.format == format {
			reached = true
		}
		if !reached || !c.hasTag {
			continue
		}
		for _, t := range supportedTags {
			if t == c.tag {
				return c.format, nil
			}
		}
	}

	if !force {
		return format, cderr.New(cderr.SinkIncapable, "capability: sink does not support the drive's subchannel framing")
	}
	return sector.None, nil
}

// probeMaxBlocks determines maxBlocksPerCommand by attempting reads
// starting at 64 blocks and halving on failure down to a minimum of 1.
func probeMaxBlocks(drv device.Drive, framing sector.Framing, subReq device.SubchannelRequest) (int, error) {
	for n := startBlocksPerCommand; n >= minBlocksPerCommand; n /= 2 {
		_, err := drv.ReadCd(device.ReadCdRequest{
			LBA:         0,
			BlockSize:   framing.BlockSize,
			Count:       n,
			SectorTypes: device.AllTypes,
			Header:      device.AllHeaders,
			EDC:         true,
			C2:          true,
			Subchannel:  subReq,
		})
		if err == nil {
			return n, nil
		}
		if n == minBlocksPerCommand {
			return 0, cderr.New(cderr.DriveUnreadable, "capability: drive rejected even a single-block read")
		}
	}
	return 0, cderr.New(cderr.DriveUnreadable, "capability: drive rejected even a single-block read")
}
