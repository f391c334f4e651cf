package ws

import (
	"time"
)

type EventType string

const (
	// EventViolationUpdate carries a candidate's totals after every accepted event
	EventViolationUpdate EventType = "violation_update"
	// EventSessionSnapshot is sent once to a watcher when it subscribes
	EventSessionSnapshot EventType = "session_snapshot"
	// EventViolationAlert is sent when a candidate crosses an alert threshold
	EventViolationAlert EventType = "violation_alert"
)

type Event struct {
	SessionKey string      `json:"-"`
	Type       EventType   `json:"type"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}
