// Package events defines the scan lifecycle events emitted by the
// orchestrator and the sinks that consume them.
package events

import "encoding/json"

// Event names, one per phase transition plus one per completed
// detection.
const (
	ScanStarted         = "scan_started"
	MissionComplete     = "mission_complete"
	DeepDiveStarted     = "deep_dive_started"
	CorrelationStarted  = "correlation_started"
	CorrelationComplete = "correlation_complete"
	NarrativeStarted    = "narrative_started"
	NarrativeComplete   = "narrative_complete"
	ScanComplete        = "scan_complete"
)

// Event is one named scan event with a JSON payload.
type Event struct {
	Name    string
	ScanID  string
	Payload json.RawMessage
}

// New builds an event, marshalling the payload. A payload that fails
// to marshal becomes null rather than losing the event.
func New(name, scanID string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Event{Name: name, ScanID: scanID, Payload: data}
}

// Sink consumes scan events. Sinks are best-effort: a failing sink
// must never affect the scan's outcome.
type Sink interface {
	Emit(event Event)
}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Emit(event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(event)
		}
	}
}

// ChannelSink forwards events to a channel, dropping them when the
// receiver lags. It feeds the SSE stream without ever blocking the
// orchestrator.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink buffered for a typical scan.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{C: make(chan Event, 256)}
}

func (s *ChannelSink) Emit(event Event) {
	select {
	case s.C <- event:
	default:
	}
}

// Close signals the receiver that no more events follow.
func (s *ChannelSink) Close() {
	close(s.C)
}
