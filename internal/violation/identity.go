package violation

import (
	"errors"
	"strings"
)

// ErrInvalidIdentity is returned when an identity is neither a complete
// candidate/exam pair nor a complete question-set identity.
var ErrInvalidIdentity = errors.New("identity must carry either candidate_id+exam_id or question_set_id")

// ErrMissingEmail is returned when an identity has no candidate email. The
// collector tallies per email, so such events could never be recorded.
var ErrMissingEmail = errors.New("candidate_email is required")

// Mode distinguishes the two identity shapes a deployment may use.
type Mode int

const (
	ModeInvalid Mode = iota
	ModeCandidate
	ModeQuestionSet
)

func (m Mode) String() string {
	switch m {
	case ModeCandidate:
		return "candidate"
	case ModeQuestionSet:
		return "question_set"
	default:
		return "invalid"
	}
}

// Identity scopes every violation to one exam attempt. It is bound once when
// a reporter is created and never mutated afterwards.
type Identity struct {
	CandidateID    string
	ExamID         string
	QuestionSetID  string
	CandidateName  string
	CandidateEmail string
}

// Mode reports which shape the identity uses. Partial or mixed shapes are
// ModeInvalid.
func (i Identity) Mode() Mode {
	hasCandidate := i.CandidateID != "" || i.ExamID != ""
	hasSet := i.QuestionSetID != ""

	switch {
	case hasCandidate && hasSet:
		return ModeInvalid
	case hasSet:
		return ModeQuestionSet
	case i.CandidateID != "" && i.ExamID != "":
		return ModeCandidate
	default:
		return ModeInvalid
	}
}

// Validate returns ErrInvalidIdentity unless exactly one shape is fully
// populated, and ErrMissingEmail when the candidate email is blank.
func (i Identity) Validate() error {
	if i.Mode() == ModeInvalid {
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(i.CandidateEmail) == "" {
		return ErrMissingEmail
	}
	return nil
}

// SessionKey is the exam-scoped key the collector tallies under: the
// question set id or the exam id, depending on the mode.
func (i Identity) SessionKey() string {
	if i.QuestionSetID != "" {
		return i.QuestionSetID
	}
	return i.ExamID
}
