package sector

// MSF is a Minute/Second/Frame CD address, as read from a TOC descriptor.
// A frame is 1/75th of a second.
type MSF struct {
	Min, Sec, Frame byte
}

// FramesPerSecond is the number of addressable frames (sectors) per second
// of CD audio time.
const FramesPerSecond = 75

// SecondsPerMinute is the conventional MSF minute length.
const SecondsPerMinute = 60

// LeadInLBA is the lowest legal LBA; negative LBAs belong to the lead-in.
const LeadInLBA = -150

// MaxLBA is the highest legal LBA for a single CD session (80:01:74 - 150).
const MaxLBA = 359999

// LBA converts an MSF address to a signed Logical Block Address, applying
// the standard -150 frame offset.
func (m MSF) LBA() int {
	return int(m.Min)*SecondsPerMinute*FramesPerSecond + int(m.Sec)*FramesPerSecond + int(m.Frame) - 150
}

// LBAFromHMSF converts an hour/minute/second/frame quadruple, as used by
// full-TOC point descriptors, to an LBA.
func LBAFromHMSF(hour, min, sec, frame byte) int {
	return int(hour)*270000 + int(min)*4500 + int(sec)*75 + int(frame) - 150
}

// DecrementFrame subtracts one frame from an MSF address, borrowing across
// seconds and minutes as needed. It is used to turn a lead-out MSF into the
// last readable LBA of the preceding session.
func DecrementFrame(hour, min, sec, frame byte) (h, m, s, f byte) {
	if frame > 0 {
		return hour, min, sec, frame - 1
	}
	frame = FramesPerSecond - 1
	if sec > 0 {
		sec--
	} else {
		sec = SecondsPerMinute - 1
		if min > 0 {
			min--
		} else {
			min = SecondsPerMinute - 1
			if hour > 0 {
				hour--
			}
		}
	}
	return hour, min, sec, frame
}
