package resume

import (
	"time"

	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/extents"
	"github.com/rabidaudio/cdimage/sink"
	"github.com/rabidaudio/cdimage/toc"
)

// MediaTags is the collected set of whole-disc metadata blobs gathered
// during mount.
type MediaTags map[sink.MediaTagKind][]byte

// Isrcs maps track sequence number to its decoded ISRC.
type Isrcs map[int]string

// SidecarBuilder is the out-of-scope collaborator invoked once at the end
// of a dump: given the just-closed image path, it
// computes per-track and per-filesystem metadata. The core only knows the
// contract.
type SidecarBuilder interface {
	Build(imagePath string) (sink.CicmMetadata, error)
}

// Summary is the final report of a completed run: total time, command
// time, write time, close time, fastest/slowest bursts, and bad-block
// count.
type Summary struct {
	TotalTime    time.Duration
	CommandTime  time.Duration
	WriteTime    time.Duration
	CloseTime    time.Duration
	MinSpeedMiBs float64
	MaxSpeedMiBs float64
	BadBlockCount int
	SidecarBuilt bool
}

// FinalizeInput bundles everything Finalize needs from the rest of the
// pipeline, keeping the resume package free of a dependency on dump or
// recovery.
type FinalizeInput struct {
	Image         sink.Image
	ImagePath     string
	Tracks        []toc.Track
	MediaTags     MediaTags
	MCN           string
	Isrcs         Isrcs
	Extents       *extents.Extents
	HardwareEntry *HardwareEntry
	AllTries      []HardwareEntry
	Force         bool
	NoMetadata    bool
	SidecarBuilder SidecarBuilder
	CommandTime   time.Duration
	WriteTime     time.Duration
	MinSpeedMiBs  float64
	MaxSpeedMiBs  float64
	BadBlockCount int
	Started       time.Time
}

// Finalize writes media tags, track flags, MCN and ISRCs, attaches the
// DumpHardware list, closes the sink, and — unless NoMetadata is set —
// builds the sidecar.
func Finalize(in FinalizeInput) (Summary, error) {
	if err := writeMediaTags(in.Image, in.MediaTags, in.Force); err != nil {
		return Summary{}, err
	}

	sinkTracks := toSinkTracks(in.Tracks, in.Isrcs)
	if err := in.Image.SetTracks(sinkTracks); err != nil {
		return Summary{}, cderr.Wrap(cderr.SinkSetTracksFailed, err, "resume: sink rejected track list")
	}

	if in.MCN != "" {
		_ = in.Image.WriteMediaTag([]byte(in.MCN), sink.TagMCN)
	}
	for _, t := range in.Tracks {
		if isrc, ok := in.Isrcs[t.Sequence]; ok && isrc != "" {
			_ = in.Image.WriteMediaTag(append([]byte{byte(t.Sequence)}, []byte(isrc)...), sink.TagTrackIsrc)
		}
	}

	if in.HardwareEntry != nil && in.Extents != nil {
		in.HardwareEntry.SetExtents(in.Extents)
	}
	in.Image.SetDumpHardware(toSinkHardware(in.AllTries))

	closeStart := time.Now()
	if err := in.Image.Close(); err != nil {
		return Summary{}, cderr.Wrap(cderr.SinkCreateFailed, err, "resume: failed to close output image")
	}
	closeTime := time.Since(closeStart)

	summary := Summary{
		TotalTime:     time.Since(in.Started),
		CommandTime:   in.CommandTime,
		WriteTime:     in.WriteTime,
		CloseTime:     closeTime,
		MinSpeedMiBs:  in.MinSpeedMiBs,
		MaxSpeedMiBs:  in.MaxSpeedMiBs,
		BadBlockCount: in.BadBlockCount,
	}

	if !in.NoMetadata && in.SidecarBuilder != nil {
		if _, err := in.SidecarBuilder.Build(in.ImagePath); err == nil {
			summary.SidecarBuilt = true
		}
	}

	return summary, nil
}

func writeMediaTags(img sink.Image, tags MediaTags, force bool) error {
	supported := map[sink.MediaTagKind]bool{}
	for _, t := range img.SupportedMediaTags() {
		supported[t] = true
	}
	for kind, payload := range tags {
		if !supported[kind] {
			if force {
				continue
			}
			return cderr.New(cderr.UnsupportedTag, "resume: sink does not support a collected media tag")
		}
		if err := img.WriteMediaTag(payload, kind); err != nil {
			if force {
				continue
			}
			return cderr.Wrap(cderr.UnsupportedTag, err, "resume: sink rejected a media tag")
		}
	}
	return nil
}

func toSinkTracks(tracks []toc.Track, isrcs Isrcs) []sink.Track {
	out := make([]sink.Track, len(tracks))
	for i, t := range tracks {
		out[i] = sink.Track{
			Sequence:     t.Sequence,
			Session:      t.Session,
			Kind:         t.Kind,
			StartLBA:     t.StartLBA,
			EndLBA:       t.EndLBA,
			UserDataSize: t.UserDataSize,
			Control:      t.Control,
			ADR:          t.ADR,
			ISRC:         isrcs[t.Sequence],
		}
	}
	return out
}

func toSinkHardware(entries []HardwareEntry) []sink.DumpHardware {
	out := make([]sink.DumpHardware, len(entries))
	for i, e := range entries {
		ranges := make([][2]int, len(e.Extents))
		for j, r := range e.Extents {
			ranges[j] = [2]int{r.Start, r.End}
		}
		out[i] = sink.DumpHardware{
			Manufacturer: e.Manufacturer,
			Model:        e.Model,
			Serial:       e.Serial,
			Platform:     e.Platform,
			Extents:      ranges,
		}
	}
	return out
}
