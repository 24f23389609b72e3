// Package toc implements the TOC & Track Planner: it converts
// a disc's table of contents into an immutable, sorted track list plus a
// lead-out boundary and a media-type classification.
package toc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/sector"
	"github.com/rabidaudio/cdimage/sink"
)

// Track is the planner's immutable view of a single track.
type Track struct {
	Sequence     int
	Session      int
	Kind         sink.TrackKind
	StartLBA     int
	EndLBA       int
	UserDataSize int
	Control      byte
	ADR          byte
	ISRC         string
}

// Plan is the complete, immutable result of planning a disc.
type Plan struct {
	Tracks     []Track
	LeadOutLBA int
	MediaType  sink.MediaType
}

// controlDataTrack is the bit in the CONTROL nibble marking a track as
// data rather than audio (Red Book).
const controlDataTrack = 0x04

// pointFirstTrackOfSession and pointLeadOut are the
// special point numbers in a full raw TOC (Red Book / MMC-5 table 333).
const (
	pointFirstTrackOfSession = 0xA0
	pointLeadOut             = 0xA2
)

// pointFormatCDI and pointFormatCDROMXA are PSEC values of point 0xA0 that
// encode the disc format.
const (
	pointFormatCDI     = 0x10
	pointFormatCDROMXA = 0x20
)

// pointLeadOutTrackNumber is the conventional processed-TOC track number
// (170, "AA") that marks the lead-out descriptor rather than a real track.
const pointLeadOutTrackNumber = 0xAA

// Build plans the disc's track list by probing the drive's TOC, falling
// back to the processed TOC, and finally synthesizing a single track if
// force is set and neither TOC is available.
func Build(drv device.Drive, framing sector.Framing, force bool) (Plan, error) {
	raw, err := drv.ReadRawToc()
	if err == nil && len(raw) > 0 {
		return buildFromRaw(drv, framing, raw)
	}

	processed, perr := drv.ReadToc()
	if perr == nil && len(processed) > 0 {
		return buildFromProcessed(drv, framing, processed)
	}

	if !force {
		return Plan{}, cderr.Wrap(cderr.DriveUnreadable, err, "toc: no usable TOC and force not set")
	}

	return synthesizeSingleTrack(drv, framing)
}

func buildFromRaw(drv device.Drive, framing sector.Framing, raw []device.RawTocDescriptor) (Plan, error) {
	sort.Slice(raw, func(i, j int) bool { return raw[i].Point < raw[j].Point })

	var tracks []Track
	leadOut := -1
	firstTrackFormat := byte(0)

	for _, d := range raw {
		switch {
		case d.Point >= 0x01 && d.Point <= 0x63:
			start := sector.LBAFromHMSF(d.PHour, d.PMin, d.PSec, d.PFrame)
			tracks = append(tracks, Track{
				Sequence:     int(d.Point),
				Session:      int(d.Session),
				StartLBA:     start,
				UserDataSize: sector.UserDataSize,
				Control:      d.Control,
				ADR:          d.ADR,
				Kind:         kindFromControl(d.Control),
			})
		case d.Point == pointLeadOut:
			h, m, s, f := sector.DecrementFrame(d.PHour, d.PMin, d.PSec, d.PFrame)
			leadOut = sector.LBAFromHMSF(h, m, s, f) + 1
		case d.Point == pointFirstTrackOfSession:
			firstTrackFormat = d.PSec
		}
	}

	if len(tracks) == 0 {
		return Plan{}, errors.New("toc: raw TOC carried no track descriptors")
	}
	if leadOut < 0 {
		return Plan{}, errors.New("toc: raw TOC carried no lead-out descriptor")
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].StartLBA < tracks[j].StartLBA })
	finalizeEnds(tracks, leadOut)
	refineTrackKinds(drv, framing, tracks)

	mediaType := classify(tracks, firstTrackFormat, leadOut)

	return Plan{Tracks: tracks, LeadOutLBA: leadOut, MediaType: mediaType}, nil
}

func buildFromProcessed(drv device.Drive, framing sector.Framing, entries []device.ProcessedTocEntry) (Plan, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].LBA < entries[j].LBA })

	leadOut := -1
	tracks := make([]Track, 0, len(entries))
	for _, e := range entries {
		if e.TrackNumber == pointLeadOutTrackNumber {
			leadOut = e.LBA
			continue
		}
		tracks = append(tracks, Track{
			Sequence:     int(e.TrackNumber),
			Session:      1,
			StartLBA:     e.LBA,
			UserDataSize: sector.UserDataSize,
			Control:      e.Control,
			ADR:          e.ADR,
			Kind:         kindFromControl(e.Control),
		})
	}
	if len(tracks) == 0 {
		return Plan{}, errors.New("toc: processed TOC carried no track entries")
	}
	if leadOut < 0 {
		// Some drives omit the 0xAA descriptor from the processed TOC
		// entirely; approximate using the maximum legal disc length so
		// finalizeEnds still produces a correctly ordered, non-overlapping
		// track list.
		leadOut = sector.MaxLBA + 1
	}

	assignSessions(drv, tracks)

	finalizeEnds(tracks, leadOut)
	refineTrackKinds(drv, framing, tracks)

	mediaType := classify(tracks, 0, leadOut)
	return Plan{Tracks: tracks, LeadOutLBA: leadOut, MediaType: mediaType}, nil
}

// assignSessions recovers real session numbers for a processed-TOC track
// list, which carries no session field of its own. It consults
// ReadDiscInformation's session count first (skipping the lookup entirely
// for a single-session disc) and, for anything reporting more than one
// session, ReadSessionInfo's last-session descriptor to find the first
// track number of the last session; every track at or after that number is
// reassigned to session 2 (CD-Plus/enhanced discs are always exactly two
// sessions; the processed-TOC path never needs to represent more).
func assignSessions(drv device.Drive, tracks []Track) {
	info, err := drv.ReadDiscInformation()
	if err != nil || numberOfSessions(info) < 2 {
		return
	}

	sessionInfo, err := drv.ReadSessionInfo()
	if err != nil {
		return
	}
	firstTrackOfLastSession, ok := lastSessionFirstTrack(sessionInfo)
	if !ok {
		return
	}

	for i := range tracks {
		if tracks[i].Sequence >= int(firstTrackOfLastSession) {
			tracks[i].Session = 2
		}
	}
}

// numberOfSessions decodes the Number of Sessions field (LSB at byte 4, MSB
// at byte 9) from a READ DISC INFORMATION response (MMC-5 table 239). Any
// response too short to carry the field is treated as single-session.
func numberOfSessions(info []byte) int {
	if len(info) < 5 {
		return 1
	}
	n := int(info[4])
	if len(info) > 9 {
		n |= int(info[9]) << 8
	}
	if n < 1 {
		return 1
	}
	return n
}

// lastSessionFirstTrack decodes a READ TOC/PMA/ATIP Multi-session
// Information response (format 0001b): a 4-byte header followed by one
// TOC-descriptor-shaped body for the first track of the last session, in
// the same offset layout parseRawToc uses in device/scsigeneric/commands.go.
func lastSessionFirstTrack(data []byte) (byte, bool) {
	if len(data) < 4+11 {
		return 0, false
	}
	point := data[4+3]
	return point, true
}

func synthesizeSingleTrack(drv device.Drive, framing sector.Framing) (Plan, error) {
	kind := sink.KindUnknown
	if inq, err := drv.Inquiry(); err == nil && inq.DeviceType != 0 {
		kind = sink.KindData
	}

	track := Track{
		Sequence:     1,
		Session:      1,
		StartLBA:     0,
		EndLBA:       sector.MaxLBA,
		UserDataSize: sector.UserDataSize,
		Kind:         kind,
	}
	tracks := []Track{track}
	refineTrackKinds(drv, framing, tracks)
	return Plan{
		Tracks:     tracks,
		LeadOutLBA: sector.MaxLBA + 1,
		MediaType:  sink.MediaUnknown,
	}, nil
}

// finalizeEnds sets every track's End to the next track's Start minus one,
// and the last track's End to leadOut-1.
func finalizeEnds(tracks []Track, leadOut int) {
	for i := range tracks {
		if i+1 < len(tracks) {
			tracks[i].EndLBA = tracks[i+1].StartLBA - 1
		} else {
			tracks[i].EndLBA = leadOut - 1
		}
	}
}

func kindFromControl(control byte) sink.TrackKind {
	if control&controlDataTrack != 0 {
		return sink.KindData
	}
	return sink.KindAudio
}

// refineTrackKinds issues a single read at the start of every non-audio
// track and inspects byte 15 (the sector's mode byte) to distinguish
// CD-ROM Mode 1 from Mode 2 Formless.
func refineTrackKinds(drv device.Drive, framing sector.Framing, tracks []Track) {
	for i := range tracks {
		if tracks[i].Kind != sink.KindData {
			continue
		}
		res, err := drv.ReadCd(device.ReadCdRequest{
			LBA:         tracks[i].StartLBA,
			BlockSize:   framing.BlockSize,
			Count:       1,
			SectorTypes: device.AllTypes,
			Header:      device.AllHeaders,
			EDC:         true,
			C2:          true,
		})
		if err != nil || len(res.Data) <= 15 {
			continue
		}
		switch res.Data[15] {
		case 1:
			tracks[i].Kind = sink.KindCdMode1
		case 2:
			tracks[i].Kind = sink.KindCdMode2Formless
		}
	}
}

// classify maps first-track disc format and track contents onto a
// MediaType.
func classify(tracks []Track, firstTrackFormat byte, leadOut int) sink.MediaType {
	switch firstTrackFormat {
	case pointFormatCDI:
		return sink.MediaCDI
	case pointFormatCDROMXA:
		return sink.MediaCDROMXA
	}

	for _, t := range tracks {
		if t.ADR == 4 {
			return sink.MediaCDV
		}
	}

	sessions := map[int]bool{}
	hasAudio, hasData := false, false
	session1AllAudio := true
	for _, t := range tracks {
		sessions[t.Session] = true
		if t.Kind == sink.KindAudio {
			hasAudio = true
		} else {
			hasData = true
			if t.Session == 1 {
				session1AllAudio = false
			}
		}
	}

	switch {
	case hasAudio && !hasData && len(sessions) == 1:
		return sink.MediaCDDA
	case hasData && !hasAudio && len(sessions) == 1:
		return sink.MediaCDROM
	case hasData && hasAudio && len(sessions) == 2 && session1AllAudio:
		return sink.MediaCDPLUS
	default:
		return sink.MediaUnknown
	}
}
