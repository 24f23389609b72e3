// Package sector defines the per-sector layout used for the whole of a CD
// dump session: how many bytes of user data and subchannel accompany each
// LBA, and how a raw multi-block read buffer is split into separate user
// data and subchannel streams.
//
// This is the "Framing" component: it has no dependency on any other part
// of the pipeline and is selected once, by the capability prober, at the
// start of a session.
package sector

import "github.com/pkg/errors"

// UserDataSize is the number of bytes of user data in every CD sector,
// regardless of track mode. CD sectors are always 2352 bytes of user data.
const UserDataSize = 2352

// SubchannelFormat selects how much (if any) subchannel data accompanies
// each sector in a read. It is chosen once per session by the capability
// prober and never upgraded afterwards.
type SubchannelFormat int

const (
	// None means no subchannel is read; only user data is returned.
	None SubchannelFormat = iota
	// RawPW96 is the full 96-byte raw P-W subchannel.
	RawPW96
	// PackedQ16 is the packed 16-byte Q-only subchannel.
	PackedQ16
)

// String returns a short label for the format, used in log output.
func (f SubchannelFormat) String() string {
	switch f {
	case None:
		return "none"
	case RawPW96:
		return "raw-pw96"
	case PackedQ16:
		return "packed-q16"
	default:
		return "unknown"
	}
}

// Size returns the number of subchannel bytes per sector for this format:
// 0, 16 or 96.
func (f SubchannelFormat) Size() int {
	switch f {
	case RawPW96:
		return 96
	case PackedQ16:
		return 16
	default:
		return 0
	}
}

// BlockSize returns the total bytes transferred per sector for a read using
// this subchannel format: UserDataSize plus the format's subchannel size.
func (f SubchannelFormat) BlockSize() int {
	return UserDataSize + f.Size()
}

// Framing bundles a SubchannelFormat with the derived per-command block
// size. It is computed once by the capability prober and passed down,
// immutable, to every other component that needs to size buffers.
type Framing struct {
	Format    SubchannelFormat
	BlockSize int
}

// NewFraming derives the Framing for a given subchannel format.
func NewFraming(format SubchannelFormat) Framing {
	return Framing{Format: format, BlockSize: format.BlockSize()}
}

// Split separates a raw read buffer of count contiguous frames into a flat
// user-data stream (count*UserDataSize bytes) and, if the framing carries
// subchannel, a flat subchannel stream (count*Format.Size() bytes).
//
// buf must be exactly count*f.BlockSize bytes long.
func (f Framing) Split(buf []byte, count int) (userData, subchannel []byte, err error) {
	want := count * f.BlockSize
	if len(buf) != want {
		return nil, nil, errors.Errorf("sector: split expects %d bytes for %d blocks, got %d", want, count, len(buf))
	}

	subSize := f.Format.Size()
	userData = make([]byte, count*UserDataSize)
	if subSize > 0 {
		subchannel = make([]byte, count*subSize)
	}

	for i := 0; i < count; i++ {
		frame := buf[i*f.BlockSize : (i+1)*f.BlockSize]
		copy(userData[i*UserDataSize:(i+1)*UserDataSize], frame[:UserDataSize])
		if subSize > 0 {
			copy(subchannel[i*subSize:(i+1)*subSize], frame[UserDataSize:])
		}
	}
	return userData, subchannel, nil
}

// Merge is the inverse of Split: it interleaves a user-data stream and a
// (possibly empty) subchannel stream back into count contiguous frames.
func (f Framing) Merge(userData, subchannel []byte, count int) ([]byte, error) {
	if len(userData) != count*UserDataSize {
		return nil, errors.Errorf("sector: merge expects %d bytes of user data for %d blocks, got %d", count*UserDataSize, count, len(userData))
	}
	subSize := f.Format.Size()
	if subSize > 0 && len(subchannel) != count*subSize {
		return nil, errors.Errorf("sector: merge expects %d bytes of subchannel for %d blocks, got %d", count*subSize, count, len(subchannel))
	}

	buf := make([]byte, count*f.BlockSize)
	for i := 0; i < count; i++ {
		frame := buf[i*f.BlockSize : (i+1)*f.BlockSize]
		copy(frame[:UserDataSize], userData[i*UserDataSize:(i+1)*UserDataSize])
		if subSize > 0 {
			copy(frame[UserDataSize:], subchannel[i*subSize:(i+1)*subSize])
		}
	}
	return buf, nil
}
