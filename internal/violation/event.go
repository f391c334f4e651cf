package violation

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventName is the message name every violation is sent under.
const EventName = "suspicious_event"

// TimestampLayout renders UTC instants the way browsers' toISOString does.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Event is one detected violation. Sequence is a local, monotonically
// increasing counter for debugging and is not part of the wire contract.
type Event struct {
	Sequence  uint64
	Type      Type
	Timestamp time.Time
	Identity  Identity
}

// Payload is the flattened wire form of an Event.
type Payload struct {
	CandidateID    string `json:"candidate_id,omitempty"`
	ExamID         string `json:"exam_id,omitempty"`
	QuestionSetID  string `json:"question_set_id,omitempty"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	ViolationType  Type   `json:"violation_type"`
	Timestamp      string `json:"timestamp"`
}

// Envelope frames a payload with its event name on the duplex connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// FormatTimestamp renders t as ISO-8601 in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp and normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Payload flattens the event. Only the identity shape in use is populated.
func (e Event) Payload() Payload {
	p := Payload{
		CandidateName:  e.Identity.CandidateName,
		CandidateEmail: e.Identity.CandidateEmail,
		ViolationType:  e.Type,
		Timestamp:      FormatTimestamp(e.Timestamp),
	}
	if e.Identity.Mode() == ModeQuestionSet {
		p.QuestionSetID = e.Identity.QuestionSetID
	} else {
		p.CandidateID = e.Identity.CandidateID
		p.ExamID = e.Identity.ExamID
	}
	return p
}

// Marshal encodes the event as a suspicious_event envelope.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{Event: EventName, Data: data})
}

// Identity rebuilds the session identity carried by a payload.
func (p Payload) Identity() Identity {
	return Identity{
		CandidateID:    p.CandidateID,
		ExamID:         p.ExamID,
		QuestionSetID:  p.QuestionSetID,
		CandidateName:  p.CandidateName,
		CandidateEmail: p.CandidateEmail,
	}
}

// Validate checks a payload received from the wire: known type, parseable
// timestamp and exactly one complete identity shape.
func (p Payload) Validate() (Event, error) {
	if !p.ViolationType.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, p.ViolationType)
	}
	ts, err := ParseTimestamp(p.Timestamp)
	if err != nil {
		return Event{}, err
	}
	id := p.Identity()
	if err := id.Validate(); err != nil {
		return Event{}, err
	}
	return Event{Type: p.ViolationType, Timestamp: ts, Identity: id}, nil
}
