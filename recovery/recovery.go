// Package recovery implements the Error-Recovery State Machine. It runs
// after the primary Dump Loop, only when new bad blocks were produced,
// revisiting them through a Trim pass, alternating-direction Retry
// passes, and — if still unread and persistent mode is enabled — a
// drive-reconfiguring persistent-error-recovery branch.
package recovery

import (
	"context"
	"time"

	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/extents"
	"github.com/rabidaudio/cdimage/progress"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

// persistentModePage is the standard Read-Write Error Recovery mode page
// (MMC-5 §7.3): this is the page the Error-Recovery State Machine
// reconfigures for persistent/partial reads.
const persistentModePage = 0x01

// Mode-page Error Recovery Parameter bit values (MMC-5 §7.3).
const (
	parameterReturnDamagedData byte = 0x20
	parameterIgnoreECC         byte = 0x01
)

const retryCountMax byte = 255

// Config carries the knobs the state machine needs: retry-pass count
// and whether persistent mode is allowed.
type Config struct {
	RetryPasses int
	Persistent  bool
}

// State names the machine's states, reported through
// progress events as the machine transitions.
type State string

const (
	StateTrim            State = "trim"
	StateRetry           State = "retry"
	StatePersistentSetup State = "persistent-setup"
	StatePersistentRetry State = "persistent-retry"
	StatePartialSetup    State = "partial-setup"
	StatePartialRead     State = "partial-read"
	StateRestore         State = "restore"
	StateFinalize        State = "finalize"
)

// Run executes the full state machine, mutating ext and bad in place. It
// returns early, leaving bad blocks unresolved, if ctx is cancelled at the
// start of any phase.
func Run(
	ctx context.Context,
	drv device.Drive,
	framing sector.Framing,
	cfg Config,
	ext *extents.Extents,
	bad *extents.BadBlockSet,
	img sink.Image,
	reporter *progress.Reporter,
) error {
	state := StateTrim
	var savedPage device.ModePage
	var haveSavedPage bool
	partial := extents.NewBadBlockSet()

	for {
		if cancelled(ctx) {
			return nil
		}
		reportState(reporter, state)

		switch state {
		case StateTrim:
			rereadOnce(drv, framing, img, ext, bad)
			if bad.IsEmpty() {
				if haveSavedPage {
					state = StateRestore
				} else {
					state = StateFinalize
				}
				continue
			}
			if cfg.RetryPasses > 0 {
				state = StateRetry
			} else if cfg.Persistent {
				state = StatePersistentSetup
			} else {
				state = StateFinalize
			}

		case StateRetry:
			for pass := 0; pass < cfg.RetryPasses && !bad.IsEmpty(); pass++ {
				if cancelled(ctx) {
					return nil
				}
				bad.ReverseScan()
				rereadOnce(drv, framing, img, ext, bad)
			}
			if bad.IsEmpty() {
				state = StateFinalize
				continue
			}
			if cfg.Persistent {
				state = StatePersistentSetup
			} else {
				state = StateFinalize
			}

		case StatePersistentSetup:
			page, err := readCurrentPage(drv)
			if err == nil {
				savedPage = page
				haveSavedPage = true
			} else {
				savedPage = defaultErrorRecoveryPage()
				haveSavedPage = true
			}

			accepted := setModePage(drv, device.ModePage{
				PageCode: persistentModePage,
				Data:     buildErrorRecoveryData(savedPage, retryCountMax, parameterReturnDamagedData),
			})
			if !accepted {
				// Policy: if MODE SELECT is not accepted, skip the
				// persistent branch entirely and Finalize.
				state = StateFinalize
				continue
			}
			state = StatePersistentRetry

		case StatePersistentRetry:
			for _, lba := range append([]int{}, bad.LBAs()...) {
				if cancelled(ctx) {
					return nil
				}
				res, err := drv.ReadCd(readOneRequest(framing, lba))
				if err == nil {
					commitGood(img, framing, ext, bad, lba, res.Data)
					continue
				}
				if res.Sense.Valid && res.Sense.ASC == device.ASCNoReferencePositionFound {
					partial.Add(lba)
				}
			}
			if !partial.IsEmpty() {
				state = StatePartialSetup
			} else {
				state = StateRestore
			}

		case StatePartialSetup:
			setModePage(drv, device.ModePage{
				PageCode: persistentModePage,
				Data:     buildErrorRecoveryData(savedPage, retryCountMax, parameterIgnoreECC),
			})
			state = StatePartialRead

		case StatePartialRead:
			for _, lba := range append([]int{}, partial.LBAs()...) {
				if cancelled(ctx) {
					return nil
				}
				res, _ := drv.ReadCd(readOneRequest(framing, lba))
				// accept whatever comes back even if damaged, this is the last pass
				commitGood(img, framing, ext, bad, lba, res.Data)
				partial.Remove(lba)
			}
			state = StateRestore

		case StateRestore:
			if haveSavedPage {
				setModePage(drv, savedPage)
			}
			state = StateFinalize

		case StateFinalize:
			return nil
		}
	}
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func reportState(reporter *progress.Reporter, s State) {
	reporter.Post(progress.Event{Kind: progress.EventState, Text: string(s)})
}

// rereadOnce attempts a single-block re-read of every currently pending
// bad LBA, in the bad-block set's current scan order, removing each
// success from bad and adding it to ext.
func rereadOnce(drv device.Drive, framing sector.Framing, img sink.Image, ext *extents.Extents, bad *extents.BadBlockSet) {
	for _, lba := range append([]int{}, bad.LBAs()...) {
		res, err := drv.ReadCd(readOneRequest(framing, lba))
		if err != nil {
			continue
		}
		commitGood(img, framing, ext, bad, lba, res.Data)
	}
}

func readOneRequest(framing sector.Framing, lba int) device.ReadCdRequest {
	sub := device.SubchannelNone
	switch framing.Format {
	case sector.RawPW96:
		sub = device.SubchannelRawPW96
	case sector.PackedQ16:
		sub = device.SubchannelPackedQ16
	}
	return device.ReadCdRequest{
		LBA:         lba,
		BlockSize:   framing.BlockSize,
		Count:       1,
		SectorTypes: device.AllTypes,
		Header:      device.AllHeaders,
		EDC:         true,
		C2:          true,
		Subchannel:  sub,
		Timeout:     10 * time.Second,
	}
}

// commitGood writes the recovered sector to the image, moves lba from bad
// to ext, and is a no-op on a short/empty buffer (the PartialRead state can
// hand back less than a full sector).
func commitGood(img sink.Image, framing sector.Framing, ext *extents.Extents, bad *extents.BadBlockSet, lba int, data []byte) {
	if len(data) < framing.BlockSize {
		return
	}
	userData, subchannel, err := framing.Split(data, 1)
	if err == nil {
		_ = img.WriteSectorsLong(userData, lba, 1)
		if framing.Format != sector.None && len(subchannel) > 0 {
			tag := sink.TagSubchannelRawPW96
			if framing.Format == sector.PackedQ16 {
				tag = sink.TagSubchannelPackedQ16
			}
			_ = img.WriteSectorTag(subchannel, lba, tag)
		}
	}
	ext.Insert(lba)
	bad.Remove(lba)
}

func readCurrentPage(drv device.Drive) (device.ModePage, error) {
	if page, err := drv.ModeSense6(persistentModePage); err == nil {
		return page, nil
	}
	return drv.ModeSense10(persistentModePage)
}

func setModePage(drv device.Drive, page device.ModePage) bool {
	if err := drv.ModeSelect6(page); err == nil {
		return true
	}
	return drv.ModeSelect10(page) == nil
}

// defaultErrorRecoveryPage synthesizes a default page 0x01 body when both
// MODE SENSE(6) and MODE SENSE(10) fail.
func defaultErrorRecoveryPage() device.ModePage {
	return device.ModePage{PageCode: persistentModePage, Data: []byte{0, 3, 0, 0, 0, 0, 0, 0}}
}

// buildErrorRecoveryData clones the saved page body and overwrites the
// Error Recovery Parameter and Read Retry Count fields.
func buildErrorRecoveryData(saved device.ModePage, retryCount byte, parameter byte) []byte {
	data := append([]byte{}, saved.Data...)
	for len(data) < 8 {
		data = append(data, 0)
	}
	data[0] = parameter
	data[1] = retryCount
	return data
}
