package cdcore

import (
	"context"
	"time"

	"github.com/rabidaudio/cdimage/capability"
	"github.com/rabidaudio/cdimage/cderr"
	"github.com/rabidaudio/cdimage/device"
	"github.com/rabidaudio/cdimage/dump"
	"github.com/rabidaudio/cdimage/ibglog"
	"github.com/rabidaudio/cdimage/mhddlog"
	"github.com/rabidaudio/cdimage/progress"
	"github.com/rabidaudio/cdimage/recovery"
	"github.com/rabidaudio/cdimage/resume"
	"github.com/rabidaudio/cdimage/sink"
	"github.com/rabidaudio/cdimage/toc"
)

// Mount bundles everything probed and planned once, before the dump loop
// starts.
type Mount struct {
	Capabilities capability.Capabilities
	Plan         toc.Plan
	Inquiry      device.Inquiry
}

// probeAndPlan performs mount-time work: capability probing then TOC
// planning, in that order, since planning needs the framing capability
// probing settles on (Framing is a pure value computed inside
// capability.Probe).
func probeAndPlan(drv device.Drive, img sink.Image, cfg Config) (Mount, error) {
	caps, err := capability.Probe(drv, img.SupportedSectorTags(), cfg.Force, cfg.DumpRaw)
	if err != nil {
		return Mount{}, err
	}

	plan, err := toc.Build(drv, caps.Framing, cfg.Force)
	if err != nil {
		return Mount{}, err
	}

	inq, err := drv.Inquiry()
	if err != nil {
		inq = device.Inquiry{}
	}

	return Mount{Capabilities: caps, Plan: plan, Inquiry: inq}, nil
}

// Logs bundles the two optional side-log writers a run can produce.
// Either may be nil to disable that log.
type Logs struct {
	MHDD *mhddlog.Writer
	IBG  *ibglog.Writer
}

// Dump runs the full CD dump pipeline end to end: mount, lead-in capture,
// the primary Dump Loop, the Error-Recovery State Machine, and the
// Resume & Output Binding finalize sequence.
func Dump(
	ctx context.Context,
	cfg Config,
	drv device.Drive,
	img sink.Image,
	sidecar resume.SidecarBuilder,
	reporter *progress.Reporter,
	logs Logs,
) (resume.Summary, error) {
	started := time.Now()

	rec, err := resume.LoadFile(cfg.ResumePath)
	if err != nil {
		return resume.Summary{}, err
	}

	mount, err := probeAndPlan(drv, img, cfg)
	if err != nil {
		return resume.Summary{}, err
	}

	hwEntry := rec.ReconcileEntry(mount.Inquiry.Manufacturer, mount.Inquiry.Model, mount.Inquiry.Serial, mount.Inquiry.Platform)

	if err := img.Create(cfg.OutputPath, mount.Plan.MediaType, sink.CreateOptions{Force: cfg.Force}, mount.Plan.LeadOutLBA, mount.Capabilities.Framing.BlockSize); err != nil {
		return resume.Summary{}, cderr.Wrap(cderr.SinkCreateFailed, err, "cdcore: failed to create output image")
	}

	mediaTags := resume.MediaTags{}
	captureMediaTags(drv, mediaTags, cfg.Force)
	if cfg.DumpLeadIn {
		mediaTags[sink.TagLeadIn] = captureLeadIn(drv, mount.Capabilities, reporter)
	}

	dumpCfg := dump.Config{
		MaxBlocksPerCommand: mount.Capabilities.MaxBlocksPerCommand,
		StopOnError:         cfg.StopOnError,
		SkipBlocks:          skipBlocks(cfg),
		Timeout:             cfg.CommandTimeout,
	}

	callbacks := dump.Callbacks{OnBlockWritten: func(next int) { rec.AdvanceNextBlock(next) }}

	result, err := dump.Run(ctx, drv, mount.Capabilities.Framing, mount.Plan, rec.NextBlock, img, dumpCfg, reporter, callbacks, logs.MHDD, logs.IBG)
	if err != nil && result == nil {
		return resume.Summary{}, err
	}

	ext := result.Extents
	bad := result.BadBlocks
	aborted := result.Aborted

	if !aborted && !cfg.NoTrim && result.NewTrim && !bad.IsEmpty() {
		_ = recovery.Run(ctx, drv, mount.Capabilities.Framing, recovery.Config{
			RetryPasses: cfg.RetryPasses,
			Persistent:  cfg.Persistent,
		}, ext, bad, img, reporter)
	}

	mcn, isrcs := decodeIdentifiers(drv, mount.Plan, cfg.Force)

	hwEntry.SetExtents(ext)
	rec.SetBadBlocks(bad)

	noMetadata := cfg.NoMetadata || aborted

	summary, ferr := resume.Finalize(resume.FinalizeInput{
		Image:          img,
		ImagePath:      cfg.OutputPath,
		Tracks:         mount.Plan.Tracks,
		MediaTags:      mediaTags,
		MCN:            mcn,
		Isrcs:          isrcs,
		Extents:        ext,
		HardwareEntry:  hwEntry,
		AllTries:       rec.Tries,
		Force:          cfg.Force,
		NoMetadata:     noMetadata,
		SidecarBuilder: sidecar,
		CommandTime:    result.Stats.CommandTime,
		WriteTime:      result.Stats.WriteTime,
		MinSpeedMiBs:   result.Stats.MinSpeedMiBs,
		MaxSpeedMiBs:   result.Stats.MaxSpeedMiBs,
		BadBlockCount:  bad.Len(),
		Started:        started,
	})

	if saveErr := resume.SaveFile(cfg.ResumePath, rec); saveErr != nil && ferr == nil {
		ferr = saveErr
	}

	reporter.Post(progress.Event{Kind: progress.EventSummary, Text: "dump finished"})
	return summary, ferr
}

func skipBlocks(cfg Config) int {
	if cfg.SkipBlocks > 0 {
		return cfg.SkipBlocks
	}
	return DefaultSkipBlocks
}

// captureMediaTags gathers the disc-level metadata blobs (FullTOC, ATIP,
// PMA, CD-Text). A read that fails or returns nothing is skipped silently;
// force is not consulted.
func captureMediaTags(drv device.Drive, tags resume.MediaTags, force bool) {
	if atip, err := drv.ReadAtip(); err == nil && len(atip) > 0 {
		tags[sink.TagATIP] = atip
	}
	if pma, err := drv.ReadPma(); err == nil && len(pma) > 0 {
		tags[sink.TagPMA] = pma
	}
	if cdtext, err := drv.ReadCdText(); err == nil && len(cdtext) > 0 {
		tags[sink.TagCdText] = cdtext
	}
	if raw, err := drv.ReadRawToc(); err == nil && len(raw) > 0 {
		tags[sink.TagFullTOC] = encodeRawToc(raw)
	}
}

func encodeRawToc(raw []device.RawTocDescriptor) []byte {
	out := make([]byte, 0, len(raw)*11)
	for _, d := range raw {
		out = append(out, d.Session, (d.ADR<<4)|d.Control, 0, d.Point, d.PHour, d.PMin, d.PSec, d.PFrame, 0, 0, 0)
	}
	return out
}

// captureLeadIn reads the 150 lead-in sectors individually, tolerating
// per-sector failures, and returns a LeadIn media tag whose length is
// always 150*blockSize, with unreadable sectors zero-filled. This never
// touches ResumeRecord.nextBlock.
func captureLeadIn(drv device.Drive, caps capability.Capabilities, reporter *progress.Reporter) []byte {
	blockSize := caps.Framing.BlockSize
	out := make([]byte, leadInSectors*blockSize)

	for i := 0; i < leadInSectors; i++ {
		lba := -150 + i
		res, err := drv.ReadCd(device.ReadCdRequest{
			LBA:         lba,
			BlockSize:   blockSize,
			Count:       1,
			SectorTypes: device.AllTypes,
			Header:      device.AllHeaders,
			EDC:         true,
			C2:          true,
		})
		if err != nil || len(res.Data) != blockSize {
			reporter.Post(progress.Event{Kind: progress.EventStatus, Text: "lead-in sector unreadable"})
			continue
		}
		copy(out[i*blockSize:(i+1)*blockSize], res.Data)
	}
	return out
}

// decodeIdentifiers reads the MCN and per-track ISRC. An identifier that
// is absent or unreadable is skipped silently; force is not consulted.
func decodeIdentifiers(drv device.Drive, plan toc.Plan, force bool) (string, resume.Isrcs) {
	mcn, _ := drv.ReadMcn()
	isrcs := resume.Isrcs{}
	for _, t := range plan.Tracks {
		if isrc, err := drv.ReadIsrc(byte(t.Sequence)); err == nil && isrc != "" {
			isrcs[t.Sequence] = isrc
		}
	}
	return mcn, isrcs
}
