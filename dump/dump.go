// Package dump implements the Dump Loop: it sequentially reads
// every track from a starting LBA through the last readable LBA, feeding
// the Extents Tracker on success and a BadBlockSet on failure, while
// writing user data (and subchannel, if framed) to the output sink and to
// the two rate-log side files.
package dump

import (
	"context"
	"time"

	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/extents"
	"github.com/rabidaudio/cdimage/ibglog"
	"github.com/rabidaudio/cdimage/mhddlog"
	"github.com/rabidaudio/cdimage/progress"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
	"github.com/rabidaudio/cdimage/toc"
)

// Config carries the knobs the Dump Loop needs beyond what planning and
// probing already fixed.
type Config struct {
	MaxBlocksPerCommand int
	StopOnError         bool
	// SkipBlocks is the minimum placeholder length written on failure,
	// clamped up to MaxBlocksPerCommand.
	SkipBlocks int
	Timeout    time.Duration
}

func (c Config) skip() int {
	if c.SkipBlocks > c.MaxBlocksPerCommand {
		return c.SkipBlocks
	}
	return c.MaxBlocksPerCommand
}

// Callbacks lets the orchestrator observe the loop without the dump
// package depending on the resume package.
type Callbacks struct {
	// OnBlockWritten is called with the next unwritten LBA every time a
	// successful write is acknowledged; used to advance
	// ResumeRecord.nextBlock atomically with the write.
	OnBlockWritten func(nextBlock int)
}

// Stats accumulates the throughput and bad-block figures for the final
// summary.
type Stats struct {
	CommandTime  time.Duration
	WriteTime    time.Duration
	MinSpeedMiBs float64
	MaxSpeedMiBs float64
	speedSet     bool // avoids a float equality sentinel; tracks whether a sample has landed yet
	BadBlocks    int
}

func (s *Stats) observeSpeed(mibs float64) {
	if !s.speedSet {
		s.MinSpeedMiBs, s.MaxSpeedMiBs = mibs, mibs
		s.speedSet = true
		return
	}
	if mibs < s.MinSpeedMiBs {
		s.MinSpeedMiBs = mibs
	}
	if mibs > s.MaxSpeedMiBs {
		s.MaxSpeedMiBs = mibs
	}
}

// Result is the outcome of one Run.
type Result struct {
	Extents   *extents.Extents
	BadBlocks *extents.BadBlockSet
	NewTrim   bool
	Aborted   bool
	Stats     Stats
}

// Run drives the primary sequential dump across every track in plan,
// starting at startLBA, until the last readable LBA or cancellation.
func Run(
	ctx context.Context,
	drv device.Drive,
	framing sector.Framing,
	plan toc.Plan,
	startLBA int,
	img sink.Image,
	cfg Config,
	reporter *progress.Reporter,
	cb Callbacks,
	mhdd *mhddlog.Writer,
	ibg *ibglog.Writer,
) (*Result, error) {
	res := &Result{Extents: extents.New(), BadBlocks: extents.NewBadBlockSet()}

	for _, tr := range plan.Tracks {
		if tr.EndLBA < startLBA {
			continue // whole track already covered by a prior run
		}
		cur := tr.StartLBA
		if cur < startLBA {
			cur = startLBA
		}

		for cur <= tr.EndLBA {
			select {
			case <-ctx.Done():
				res.Aborted = true
				return res, nil
			default:
			}

			n := cfg.MaxBlocksPerCommand
			if remaining := tr.EndLBA - cur + 1; n > remaining {
				n = remaining
			}

			readResult, err := drv.ReadCd(device.ReadCdRequest{
				LBA:         cur,
				BlockSize:   framing.BlockSize,
				Count:       n,
				SectorTypes: device.AllTypes,
				Header:      device.AllHeaders,
				EDC:         true,
				C2:          true,
				Subchannel:  subchannelRequest(framing.Format),
				Timeout:     cfg.Timeout,
			})
			res.Stats.CommandTime += readResult.Duration
			if mhdd != nil {
				_ = mhdd.Append(cur, readResult.Duration)
			}

			if err != nil {
				n = handleFailure(cur, tr.EndLBA, cfg, img, res, reporter)
				if cfg.StopOnError {
					return res, cderr.Wrap(cderr.SectorReadFailed, err, "dump: stopping on error as configured")
				}
				cur += n
				continue
			}

			writeStart := time.Now()
			if writeErr := writeGoodRead(framing, img, readResult.Data, cur, n); writeErr != nil {
				return res, writeErr
			}
			res.Stats.WriteTime += time.Since(writeStart)

			res.Extents.InsertRun(cur, n)

			if cb.OnBlockWritten != nil {
				cb.OnBlockWritten(cur + n)
			}

			if readResult.Duration > 0 {
				mibs := speedMiBs(framing.BlockSize, n, readResult.Duration)
				res.Stats.observeSpeed(mibs)
				if ibg != nil {
					_ = ibg.Append(mibs)
				}
				reporter.Post(progress.Event{Kind: progress.EventSpeed, Speed: mibs})
			}

			cur += n
		}
	}

	return res, nil
}

func subchannelRequest(format sector.SubchannelFormat) device.SubchannelRequest {
	switch format {
	case sector.RawPW96:
		return device.SubchannelRawPW96
	case sector.PackedQ16:
		return device.SubchannelPackedQ16
	default:
		return device.SubchannelNone
	}
}

func writeGoodRead(framing sector.Framing, img sink.Image, data []byte, startLBA, count int) error {
	userData, subchannel, err := framing.Split(data, count)
	if err != nil {
		return cderr.Wrap(cderr.SectorReadFailed, err, "dump: failed to split read buffer")
	}
	if err := img.WriteSectorsLong(userData, startLBA, count); err != nil {
		return cderr.Wrap(cderr.SinkCreateFailed, err, "dump: sink rejected user data write")
	}
	if framing.Format != sector.None && len(subchannel) > 0 {
		tag := sink.TagSubchannelRawPW96
		if framing.Format == sector.PackedQ16 {
			tag = sink.TagSubchannelPackedQ16
		}
		if err := img.WriteSectorsTag(subchannel, startLBA, count, tag); err != nil {
			return cderr.Wrap(cderr.SinkCreateFailed, err, "dump: sink rejected subchannel write")
		}
	}
	return nil
}

// handleFailure writes a zero-filled placeholder of at least cfg.skip()
// sectors, bounded by the remaining space in the track, adds those LBAs to
// BadBlockSet, and marks NewTrim.
func handleFailure(cur, trackEnd int, cfg Config, img sink.Image, res *Result, reporter *progress.Reporter) int {
	skip := cfg.skip()
	if remaining := trackEnd - cur + 1; skip > remaining {
		skip = remaining
	}

	placeholder := make([]byte, skip*sector.UserDataSize)
	_ = img.WriteSectorsLong(placeholder, cur, skip)

	res.BadBlocks.AddRun(cur, skip)
	res.NewTrim = true
	res.Stats.BadBlocks += skip

	reporter.Post(progress.Event{Kind: progress.EventBadBlock, LBA: cur, Total: res.Stats.BadBlocks})
	return skip
}

// speedMiBs computes instantaneous throughput: blockSize*blocksPerCommand
// / 2^20 / (duration in seconds).
func speedMiBs(blockSize, count int, d time.Duration) float64 {
	bytes := float64(blockSize) * float64(count)
	seconds := d.Seconds()
	if seconds <= 0 {
		return 0
	}
	return bytes / (1024 * 1024) / seconds
}
