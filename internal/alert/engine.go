package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// ParseRules parses "metric:threshold[:severity]" specs, for example
// "total:10" or "face_not_visible:5:critical". Metric names accept the
// same spellings as incoming events.
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("alert rule %q: want metric:threshold[:severity]", spec)
		}

		metric := strings.TrimSpace(parts[0])
		if metric != MetricTotal {
			t, err := violation.ParseLegacy(metric)
			if err != nil {
				return nil, fmt.Errorf("alert rule %q: %w", spec, err)
			}
			metric = t.Column()
		}

		threshold, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || threshold <= 0 {
			return nil, fmt.Errorf("alert rule %q: threshold must be a positive integer", spec)
		}

		severity := SeverityWarning
		if len(parts) == 3 {
			severity = Severity(strings.TrimSpace(parts[2]))
			switch severity {
			case SeverityInfo, SeverityWarning, SeverityCritical:
			default:
				return nil, fmt.Errorf("alert rule %q: unknown severity %q", spec, severity)
			}
		}

		rules = append(rules, Rule{Metric: metric, Threshold: threshold, Severity: severity})
	}
	return rules, nil
}

type Engine struct {
	rules []Rule
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate returns the rules that tally pushed across their threshold.
// result holds the totals after the tally was applied, so the totals
// before it are result minus the increments. Each crossing is reported by
// exactly one tally because increments of a row are serialized.
func (e *Engine) Evaluate(result *domain.Result, tally domain.Tally) []Alert {
	var alerts []Alert

	for _, rule := range e.rules {
		after := metricValue(rule.Metric, result)
		before := after - metricIncrement(rule.Metric, tally)

		if before < rule.Threshold && after >= rule.Threshold {
			alerts = append(alerts, Alert{
				Rule:           rule,
				Value:          after,
				SessionKey:     result.SessionKey,
				CandidateEmail: result.CandidateEmail,
				CandidateName:  result.CandidateName,
				TriggeredAt:    tally.At,
			})
		}
	}

	return alerts
}

func metricValue(metric string, result *domain.Result) int {
	if metric == MetricTotal {
		return result.Total()
	}
	for _, t := range violation.Types() {
		if t.Column() == metric {
			return result.Count(t)
		}
	}
	return 0
}

func metricIncrement(metric string, tally domain.Tally) int {
	sum := 0
	for t, n := range tally.Increments {
		if n <= 0 {
			continue
		}
		if metric == MetricTotal || t.Column() == metric {
			sum += n
		}
	}
	return sum
}
