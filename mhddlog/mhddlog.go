// Package mhddlog writes an MHDD-style rate log: a fixed binary header
// followed by one fixed-size record per (lba, durationMs) pair, appended
// incrementally as the dump loop progresses.
package mhddlog

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// magic and version identify the header, the same way a fixed RIFF/WAVE
// magic tags a WAV header.
var magic = [4]byte{'M', 'H', 'D', 'D'}

const version = 1

// Writer appends MHDD records to an underlying file as the dump proceeds.
type Writer struct {
	w io.Writer
}

// New writes the header and returns a Writer ready to Append records.
func New(w io.Writer) (*Writer, error) {
	hdr := make([]byte, 8)
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], version)
	if _, err := w.Write(hdr); err != nil {
		return nil, errors.Wrap(err, "mhddlog: failed to write header")
	}
	return &Writer{w: w}, nil
}

// Append writes one (lba, durationMs) record.
func (m *Writer) Append(lba int, d time.Duration) error {
	rec := make([]byte, 12)
	binary.LittleEndian.PutUint32(rec[0:4], uint32(int32(lba)))
	binary.LittleEndian.PutUint64(rec[4:12], uint64(d.Milliseconds()))
	_, err := m.w.Write(rec)
	if err != nil {
		return errors.Wrap(err, "mhddlog: failed to append record")
	}
	return nil
}
