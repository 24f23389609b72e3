// Package ibglog writes an IBG-style instantaneous-throughput log: a
// fixed binary header followed by one speed sample per successful burst
// read.
package ibglog

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

var magic = [4]byte{'I', 'B', 'G', '1'}

const version = 1

// Writer appends IBG speed samples to an underlying file.
type Writer struct {
	w io.Writer
}

// New writes the header and returns a Writer ready to Append samples.
func New(w io.Writer) (*Writer, error) {
	hdr := make([]byte, 8)
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], version)
	if _, err := w.Write(hdr); err != nil {
		return nil, errors.Wrap(err, "ibglog: failed to write header")
	}
	return &Writer{w: w}, nil
}

// Append writes one instantaneous-throughput sample, in MiB/s.
func (i *Writer) Append(mibs float64) error {
	rec := make([]byte, 8)
	binary.LittleEndian.PutUint64(rec, math.Float64bits(mibs))
	_, err := i.w.Write(rec)
	if err != nil {
		return errors.Wrap(err, "ibglog: failed to append sample")
	}
	return nil
}
