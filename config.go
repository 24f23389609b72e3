// Package cdcore orchestrates the CD dump pipeline: it wires the
// Capability Prober, TOC & Track Planner, Framing, Dump Loop, Error-
// Recovery State Machine and Resume & Output Binding together in probe,
// plan, dump, recover, finalize order, and is the one package the CLI
// consumer (cmd/cddump) talks to.
package cdcore

import "time"

// Config is the typed configuration the core receives: every CLI flag
// maps onto one field here.
type Config struct {
	// Device is the path to the drive's block device (e.g. /dev/sr0).
	Device string

	RetryPasses int
	StopOnError bool
	Persistent  bool
	DumpRaw     bool
	DumpLeadIn  bool
	Force       bool
	SkipBlocks  int
	NoMetadata  bool
	NoTrim      bool
	Encoding    string

	OutputPrefix string
	OutputPath   string

	ResumePath string

	CommandTimeout time.Duration
}

// DefaultSkipBlocks is the placeholder length used when SkipBlocks is
// unset. The Dump Loop raises any skip to the probed blocks-per-command
// when that is larger.
const DefaultSkipBlocks = 16

// leadInSectors is the fixed lead-in region length probed when DumpLeadIn
// is set.
const leadInSectors = 150
