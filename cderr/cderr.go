// Package cderr defines the abstract error taxonomy for the CD dump
// core. Kinds are sentinel values compared with errors.Is; call sites
// wrap them with github.com/pkg/errors so a stack trace and context
// message travel with the kind, the same layering aiSzzPL-retroio uses
// over its own domain errors.
package cderr

import "github.com/pkg/errors"

// Kind identifies one of the abstract error categories the core can
// raise. Kind implements error so it can be returned, wrapped, and
// compared directly.
type Kind string

func (k Kind) Error() string { return string(k) }

// Fatal kinds: surfaced to the caller, the dump aborts.
const (
	DriveUnreadable       Kind = "drive unreadable"
	SinkIncapable         Kind = "sink incapable of requested framing"
	SinkCreateFailed      Kind = "sink create failed"
	SinkSetTracksFailed   Kind = "sink rejected track list"
	ResumeInvalid         Kind = "resume record invalid"
)

// Recoverable kind: accounted for per-sector, never propagates past the
// Dump Loop boundary.
const (
	SectorReadFailed Kind = "sector read failed"
)

// Soft kinds: log-only when the "force" directive is set.
const (
	UnsupportedTag      Kind = "unsupported tag"
	LeadInUnreadable    Kind = "lead-in unreadable"
	ModeSelectRejected  Kind = "mode select rejected"
	SubchannelDowngrade Kind = "subchannel downgrade"
	IsrcUnavailable     Kind = "isrc unavailable"
)

// Operational kind: user-requested cancellation, finalized gracefully.
const (
	Aborted Kind = "aborted"
)

// Wrap annotates err with msg and records that it is an instance of kind,
// preserving both pkg/errors' stack trace and errors.Is compatibility with
// kind.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return errors.WithMessage(kind, msg)
	}
	return errors.Wrap(&kindError{kind: kind, cause: err}, msg)
}

// New builds a fresh error of the given kind with a formatted message,
// without an underlying cause.
func New(kind Kind, msg string) error {
	return errors.WithMessage(kind, msg)
}

type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}
