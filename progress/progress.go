// Package progress implements a bounded, coalescing progress-event
// channel: the dump worker posts events fire-and-forget, and the UI (or
// CLI, or a test) is a consumer, never a collaborator the worker waits on.
//
// This is a typed event stream with the same three destinations a log
// mode pair typically offers: silent, stderr, and a caller-supplied
// *log.Logger.
package progress

import (
	"fmt"
	"log"
	"os"
)

// EventKind distinguishes the structured events the core emits.
type EventKind int

const (
	// EventStatus carries free-form progress text.
	EventStatus EventKind = iota
	// EventSpeed carries an instantaneous throughput sample in MiB/s.
	EventSpeed
	// EventBadBlock is emitted whenever a sector joins the bad-block set.
	EventBadBlock
	// EventState is emitted on every Error-Recovery state transition.
	EventState
	// EventSummary carries the final dump summary.
	EventSummary
)

// Event is one structured progress/log message.
type Event struct {
	Kind    EventKind
	Text    string
	Speed   float64 // MiB/s, valid when Kind == EventSpeed
	LBA     int     // valid when Kind == EventBadBlock
	Total   int     // total bad blocks so far, valid when Kind == EventBadBlock
}

// Reporter is a bounded, coalescing sink for Events. Sends never block the
// worker: if the channel is full, a status or speed event displaces the
// oldest queued event, whatever its kind, and a bad-block, state or
// summary event is discarded.
type Reporter struct {
	events chan Event
	done   chan struct{}
	sink   func(Event)
}

// NewReporter creates a Reporter with the given buffer capacity that
// delivers every event to sink on its own goroutine, run until Close.
func NewReporter(capacity int, sink func(Event)) *Reporter {
	if capacity < 1 {
		capacity = 1
	}
	r := &Reporter{
		events: make(chan Event, capacity),
		done:   make(chan struct{}),
		sink:   sink,
	}
	go r.run()
	return r
}

func (r *Reporter) run() {
	defer close(r.done)
	for ev := range r.events {
		r.sink(ev)
	}
}

// Post enqueues an event without blocking the caller. When the channel is
// full, a coalescable event (status, speed) takes the place of the oldest
// queued event, whatever its kind; any other event is dropped.
func (r *Reporter) Post(ev Event) {
	if r == nil {
		return
	}
	select {
	case r.events <- ev:
		return
	default:
	}
	if coalescable(ev.Kind) {
		select {
		case <-r.events:
		default:
		}
		select {
		case r.events <- ev:
		default:
		}
	}
}

func coalescable(k EventKind) bool {
	return k == EventStatus || k == EventSpeed
}

// Close stops accepting new events and waits for the delivery goroutine to
// drain the backlog and exit.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	close(r.events)
	<-r.done
}

// NewLogWriter builds a Reporter sink that formats every event as a
// single log line through logger.
func NewLogWriter(logger *log.Logger) func(Event) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return func(ev Event) {
		switch ev.Kind {
		case EventSpeed:
			logger.Printf("speed: %.2f MiB/s", ev.Speed)
		case EventBadBlock:
			logger.Printf("bad block: lba=%d total=%d", ev.LBA, ev.Total)
		case EventState:
			logger.Printf("recovery: %s", ev.Text)
		case EventSummary:
			logger.Printf("summary: %s", ev.Text)
		default:
			logger.Println(ev.Text)
		}
	}
}

// NewSilent builds a Reporter sink that discards every event.
func NewSilent() func(Event) { return func(Event) {} }

// Format renders an Event as a human string for consumers that want text
// without a logger. For speed and bad-block events it matches the line
// NewLogWriter logs.
func (e Event) Format() string {
	switch e.Kind {
	case EventSpeed:
		return fmt.Sprintf("speed: %.2f MiB/s", e.Speed)
	case EventBadBlock:
		return fmt.Sprintf("bad block: lba=%d total=%d", e.LBA, e.Total)
	default:
		return e.Text
	}
}
