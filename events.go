package linkaudit

import "time"

// EventKind identifies a step of the audit workflow
type EventKind string

const (
	EventToolStarted         EventKind = "tool_started"
	EventToolFinished        EventKind = "tool_finished"
	EventValidated           EventKind = "validated"
	EventAlternativeFound    EventKind = "alternative_found"
	EventAlternativeMissing  EventKind = "alternative_missing"
	EventContentFetched      EventKind = "content_fetched"
	EventContentUnavailable  EventKind = "content_unavailable"
	EventLinksExtracted      EventKind = "links_extracted"
	EventReplacementFound    EventKind = "replacement_found"
	EventReplacementNotFound EventKind = "replacement_not_found"
	EventAnalyzed            EventKind = "analyzed"
)

// Event is one validation or repair decision
type Event struct {
	Kind     EventKind
	Line     int    // 1-indexed batch line, 0 outside batches
	Tool     string
	Field    Field
	HasField bool
	URL      string
	Outcome  *ValidationOutcome
	Verdict  Verdict
	Detail   string
	Err      error
	Duration time.Duration
	Time     time.Time
}

// Observer receives audit events synchronously, in order
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// OnEvent implements Observer
func (f ObserverFunc) OnEvent(e Event) { f(e) }
