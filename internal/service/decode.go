package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// inboundEvent is a suspicious_event payload. Older clients send a counts
// map keyed by column name instead of a single violation_type.
type inboundEvent struct {
	violation.Payload
	Counts map[string]int `json:"counts,omitempty"`
}

// DecodeTally validates one suspicious_event envelope and turns it into a
// tally. now stamps batches that carry no timestamp.
func DecodeTally(message []byte, now time.Time) (domain.Tally, error) {
	var envelope violation.Envelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return domain.Tally{}, domain.ErrInvalidEnvelope.WithError(err)
	}
	if envelope.Event != violation.EventName {
		return domain.Tally{}, domain.ErrInvalidEnvelope.WithError(fmt.Errorf("unexpected event %q", envelope.Event))
	}
	if len(envelope.Data) == 0 {
		return domain.Tally{}, domain.ErrInvalidEnvelope.WithError(errors.New("missing data"))
	}

	var in inboundEvent
	if err := json.Unmarshal(envelope.Data, &in); err != nil {
		return domain.Tally{}, domain.ErrInvalidEnvelope.WithError(err)
	}

	identity := in.Identity()
	if err := identity.Validate(); err != nil {
		return domain.Tally{}, domain.ErrInvalidIdentity.WithError(err)
	}

	increments := make(map[violation.Type]int)
	batch := len(in.Counts) > 0
	if batch {
		for name, n := range in.Counts {
			t, err := violation.ParseLegacy(name)
			if err != nil || n <= 0 {
				continue
			}
			increments[t] += n
		}
		if len(increments) == 0 {
			return domain.Tally{}, domain.ErrUnknownViolationType.WithError(errors.New("counts has no known positive entries"))
		}
	} else {
		t, err := violation.ParseLegacy(string(in.ViolationType))
		if err != nil {
			return domain.Tally{}, domain.ErrUnknownViolationType.WithError(err)
		}
		increments[t] = 1
	}

	at := now.UTC()
	switch {
	case in.Timestamp != "":
		ts, err := violation.ParseTimestamp(in.Timestamp)
		if err != nil {
			return domain.Tally{}, domain.ErrInvalidTimestamp.WithError(err)
		}
		at = ts
	case !batch:
		return domain.Tally{}, domain.ErrInvalidTimestamp.WithError(errors.New("timestamp is required"))
	}

	return domain.Tally{Identity: identity, Increments: increments, At: at}, nil
}
