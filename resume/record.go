// Package resume implements the Resume & Output Binding component:
// persisting the ResumeRecord across runs, and finalizing media tags,
// track flags, ISRCs/MCN and sidecar metadata once a dump ends or is
// cancelled.
//
// The resume document is an XML envelope, in the same per-field-tag style
// sargunv-screenscraper-go's datfile package uses for its XML sidecar
// format — plain, explicit struct tags over a hand-rolled binary or JSON
// scheme.
package resume

import (
	"encoding/xml"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/extents"
)

// Record is the persisted ResumeRecord: the next block to read,
// the pending bad-block list, and one HardwareEntry per (manufacturer,
// model, serial, platform) run that has touched this resume file.
type Record struct {
	XMLName   xml.Name        `xml:"resume"`
	NextBlock int             `xml:"nextBlock"`
	BadBlocks []int           `xml:"badBlocks>lba"`
	Tries     []HardwareEntry `xml:"tries>entry"`
}

// HardwareEntry is one run's DumpHardware record.
type HardwareEntry struct {
	Manufacturer string      `xml:"manufacturer"`
	Model        string      `xml:"model"`
	Serial       string      `xml:"serial"`
	Platform     string      `xml:"platform"`
	Extents      []XMLRange  `xml:"extents>range"`
}

// XMLRange is the XML-serializable form of extents.Range.
type XMLRange struct {
	Start int `xml:"start,attr"`
	End   int `xml:"end,attr"`
}

// matches reports whether this entry identifies the same (manufacturer,
// model, serial, platform) tuple as the given run.
func (h HardwareEntry) matches(manufacturer, model, serial, platform string) bool {
	return h.Manufacturer == manufacturer && h.Model == model && h.Serial == serial && h.Platform == platform
}

// New returns an empty Record starting at LBA 0 — used when no resume
// file exists yet.
func New() *Record {
	return &Record{}
}

// Load parses a resume document from r. A corrupt document is reported
// as cderr.ResumeInvalid — an explicit result rather than a panic.
func Load(r io.Reader) (*Record, error) {
	var rec Record
	if err := xml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, cderr.Wrap(cderr.ResumeInvalid, err, "resume: failed to decode resume document")
	}
	return &rec, nil
}

// LoadFile opens and parses path, returning a fresh Record if the file
// does not exist.
func LoadFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, cderr.Wrap(cderr.ResumeInvalid, err, "resume: failed to open resume file")
	}
	defer f.Close()
	return Load(f)
}

// Save writes rec to w as an XML document.
func Save(w io.Writer, rec *Record) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return errors.Wrap(err, "resume: failed to encode resume document")
	}
	return nil
}

// SaveFile writes rec to path, replacing the file's previous contents.
// Earlier runs' entries survive only because rec itself carries them:
// LoadFile read them in and ReconcileEntry updated or appended this run's
// entry in place.
func SaveFile(path string, rec *Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "resume: failed to create resume file")
	}
	defer f.Close()
	return Save(f, rec)
}

// ReconcileEntry finds the HardwareEntry matching (manufacturer, model,
// serial, platform), or appends a fresh one, and returns a pointer to it
// for the caller to update in place.
func (r *Record) ReconcileEntry(manufacturer, model, serial, platform string) *HardwareEntry {
	for i := range r.Tries {
		if r.Tries[i].matches(manufacturer, model, serial, platform) {
			return &r.Tries[i]
		}
	}
	r.Tries = append(r.Tries, HardwareEntry{
		Manufacturer: manufacturer,
		Model:        model,
		Serial:       serial,
		Platform:     platform,
	})
	return &r.Tries[len(r.Tries)-1]
}

// SetExtents replaces the entry's serialized extents snapshot.
func (h *HardwareEntry) SetExtents(ext *extents.Extents) {
	ranges := ext.Ranges()
	h.Extents = make([]XMLRange, len(ranges))
	for i, r := range ranges {
		h.Extents[i] = XMLRange{Start: r.Start, End: r.End}
	}
}

// SetBadBlocks replaces the record's bad-block list.
func (r *Record) SetBadBlocks(bad *extents.BadBlockSet) {
	// Persisted in ascending order regardless of current scan direction.
	sorted := append([]int{}, bad.LBAs()...)
	sort.Ints(sorted)
	r.BadBlocks = sorted
}

// AdvanceNextBlock advances NextBlock to lba, never rewinding it; it is
// only ever called from the dump loop's forward phase.
func (r *Record) AdvanceNextBlock(lba int) {
	if lba > r.NextBlock {
		r.NextBlock = lba
	}
}
