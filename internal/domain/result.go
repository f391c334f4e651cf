package domain

import (
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// Result representa a contagem acumulada de violações de um candidato
// em uma sessão de prova. SessionKey é o question_set_id ou o exam_id.
type Result struct {
	SessionKey     string    `json:"session_key"`
	CandidateEmail string    `json:"candidate_email"`
	CandidateName  string    `json:"candidate_name"`
	CandidateID    string    `json:"candidate_id,omitempty"`
	Mode           string    `json:"mode"`
	TabSwitches    int       `json:"tab_switches"`
	Inactivities   int       `json:"inactivities"`
	TextSelections int       `json:"text_selections"`
	Copies         int       `json:"copies"`
	Pastes         int       `json:"pastes"`
	RightClicks    int       `json:"right_clicks"`
	FaceNotVisible int       `json:"face_not_visible"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// Count returns the tally for one violation type.
func (r *Result) Count(t violation.Type) int {
	switch t {
	case violation.TabSwitch:
		return r.TabSwitches
	case violation.Inactivity:
		return r.Inactivities
	case violation.TextSelection:
		return r.TextSelections
	case violation.Copy:
		return r.Copies
	case violation.Paste:
		return r.Pastes
	case violation.RightClick:
		return r.RightClicks
	case violation.FaceNotVisible:
		return r.FaceNotVisible
	default:
		return 0
	}
}

// Total sums every counter.
func (r *Result) Total() int {
	total := 0
	for _, t := range violation.Types() {
		total += r.Count(t)
	}
	return total
}

// Tally representa um lote de incrementos para um candidato.
type Tally struct {
	Identity   violation.Identity
	Increments map[violation.Type]int
	At         time.Time
}
