package alert

import (
	"time"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// MetricTotal is the sum of every violation counter
const MetricTotal = "total"

// Rule fires once when a candidate's Metric reaches Threshold. Metric is
// MetricTotal or a result column such as "face_not_visible".
type Rule struct {
	Metric    string   `json:"metric"`
	Threshold int      `json:"threshold"`
	Severity  Severity `json:"severity"`
}

// Alert is one rule crossing for one candidate
type Alert struct {
	Rule           Rule      `json:"rule"`
	Value          int       `json:"value"`
	SessionKey     string    `json:"session_key"`
	CandidateEmail string    `json:"candidate_email"`
	CandidateName  string    `json:"candidate_name"`
	TriggeredAt    time.Time `json:"triggered_at"`
}
