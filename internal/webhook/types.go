package webhook

import (
	"time"
)

// EventPayload is the JSON body of every delivery
type EventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Config configures the outbound endpoint
type Config struct {
	URL    string
	Secret string
	// Timeout bounds one HTTP attempt
	Timeout time.Duration
	// MaxElapsed bounds all attempts of one delivery
	MaxElapsed time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxElapsed <= 0 {
		c.MaxElapsed = time.Minute
	}
}
