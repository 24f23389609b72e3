// Package sim is an in-memory fake of device.Drive, used by tests and by
// any consumer that wants to exercise the core without real hardware,
// including non-Linux platforms where no real SG_IO driver is available.
// It is a fully scriptable fake: sectors, TOC, mode pages and per-LBA
// failures are all configured by the caller.
package sim

import (
	"github.com/rabidaudio/cdimage/device"
)

// FailureRule describes how a given LBA should fail when read.
type FailureRule struct {
	// Attempts is how many times the read must fail before succeeding.
	// -1 means always fail.
	Attempts int
	Sense    device.Sense
	seen     int
}

// Drive is a fully in-memory device.Drive.
type Drive struct {
	Ident device.Inquiry

	// SectorData maps LBA to its 2352-byte user-data payload. Missing
	// LBAs within [0, LeadOutLBA) read back as zero-filled sectors.
	SectorData map[int][]byte

	LeadOutLBA int

	RawToc       []device.RawTocDescriptor
	ProcessedToc []device.ProcessedTocEntry

	// DiscInfo and SessionInfo are the raw payloads ReadDiscInformation and
	// ReadSessionInfo hand back verbatim; leaving either nil simulates a
	// drive that doesn't support the corresponding command.
	DiscInfo    []byte
	SessionInfo []byte

	// SupportedSubchannel lists the subchannel request kinds this
	// simulated drive accepts, mirroring how a real drive might lack
	// raw P-W support.
	SupportedSubchannel map[device.SubchannelRequest]bool

	MaxBlocksAccepted int // 0 means unlimited

	ModeSelectAccepted bool
	currentModePage    device.ModePage

	// Failures maps LBA to a FailureRule applied on every ReadCd that
	// targets it (a multi-block read fails if it touches any failing
	// LBA).
	Failures map[int]*FailureRule

	MCN   string
	Isrcs map[byte]string

	Reads []device.ReadCdRequest // every ReadCd request, for assertions
}

// New returns an empty, fully-permissive simulated drive: supports every
// subchannel format, accepts any block count, and has no injected
// failures.
func New() *Drive {
	return &Drive{
		SectorData: map[int][]byte{},
		SupportedSubchannel: map[device.SubchannelRequest]bool{
			device.SubchannelRawPW96:   true,
			device.SubchannelPackedQ16: true,
			device.SubchannelNone:      true,
		},
		ModeSelectAccepted: true,
		Failures:           map[int]*FailureRule{},
		Isrcs:              map[byte]string{},
		currentModePage:    device.ModePage{PageCode: 0x01, Data: []byte{0x01, 0x06, 0, 0, 0, 0, 0, 0}},
	}
}

// Inquiry returns the drive's identification tuple.
func (d *Drive) Inquiry() (device.Inquiry, error) { return d.Ident, nil }

// PutSector installs data as the payload of the single sector at lba;
// ReadCd copies it into the start of that LBA's frame.
func (d *Drive) PutSector(lba int, data []byte) {
	if d.SectorData == nil {
		d.SectorData = map[int][]byte{}
	}
	d.SectorData[lba] = data
}

// Fail injects a failure rule for a single LBA.
func (d *Drive) Fail(lba int, rule FailureRule) {
	r := rule
	d.Failures[lba] = &r
}
