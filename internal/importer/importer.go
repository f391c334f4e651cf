// Package importer loads legacy violation tallies from a CSV export into the
// collector's result store.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

var (
	// ErrMissingIdentityColumns is returned when the header can carry
	// neither identity shape.
	ErrMissingIdentityColumns = errors.New("csv needs candidate_id and exam_id, or question_set_id")
	ErrNegativeCount          = errors.New("negative violation count")
)

const (
	colCandidateID    = "candidate_id"
	colExamID         = "exam_id"
	colQuestionSetID  = "question_set_id"
	colCandidateName  = "candidate_name"
	colCandidateEmail = "candidate_email"
)

// Row is one parsed CSV record. Line is the 1-based line in the file.
type Row struct {
	Line  int
	Tally domain.Tally
}

// RowError ties a parse or store failure to its CSV line.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Options tunes parsing.
type Options struct {
	// EmailDomain builds candidate_id@EmailDomain for rows without an email.
	// Empty means such rows are rejected.
	EmailDomain string
	Clock       clockwork.Clock
}

// Parse reads a header line followed by one tally per record. Counter columns
// accept both the wire names and the legacy column names; unknown columns are
// ignored. Bad records are returned as RowErrors and do not stop the parse.
func Parse(r io.Reader, opts Options) ([]Row, []error, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrMissingIdentityColumns
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	fields := make(map[string]int)
	counters := make(map[violation.Type]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case colCandidateID, colExamID, colQuestionSetID, colCandidateName, colCandidateEmail:
			fields[name] = i
		default:
			if t, err := violation.ParseLegacy(name); err == nil {
				counters[t] = i
			}
		}
	}

	_, hasCandidate := fields[colCandidateID]
	_, hasExam := fields[colExamID]
	_, hasSet := fields[colQuestionSetID]
	if !(hasCandidate && hasExam) && !hasSet {
		return nil, nil, ErrMissingIdentityColumns
	}

	var (
		rows []Row
		errs []error
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, &RowError{Line: pe.Line, Err: pe.Err})
				continue
			}
			return rows, errs, fmt.Errorf("read csv: %w", err)
		}
		lineNo, _ := reader.FieldPos(0)

		tally, err := parseRecord(record, fields, counters, opts.EmailDomain)
		if err != nil {
			errs = append(errs, &RowError{Line: lineNo, Err: err})
			continue
		}
		tally.At = clock.Now()
		rows = append(rows, Row{Line: lineNo, Tally: tally})
	}

	return rows, errs, nil
}

func parseRecord(record []string, fields map[string]int, counters map[violation.Type]int, emailDomain string) (domain.Tally, error) {
	get := func(name string) string {
		i, ok := fields[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := violation.Identity{
		QuestionSetID: get(colQuestionSetID),
		CandidateName: get(colCandidateName),
	}
	// a question set row drops the candidate shape so the two never mix
	if id.QuestionSetID == "" {
		id.CandidateID = get(colCandidateID)
		id.ExamID = get(colExamID)
	}
	id.CandidateEmail = get(colCandidateEmail)
	if id.CandidateEmail == "" && emailDomain != "" {
		if cid := get(colCandidateID); cid != "" {
			id.CandidateEmail = cid + "@" + strings.TrimPrefix(emailDomain, "@")
		}
	}
	if err := id.Validate(); err != nil {
		return domain.Tally{}, err
	}

	increments := make(map[violation.Type]int, len(counters))
	for t, i := range counters {
		if i >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[i])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Tally{}, fmt.Errorf("%s: %w", t.Column(), err)
		}
		if n < 0 {
			return domain.Tally{}, fmt.Errorf("%s: %w", t.Column(), ErrNegativeCount)
		}
		if n > 0 {
			increments[t] = n
		}
	}

	return domain.Tally{Identity: id, Increments: increments}, nil
}

// Summary counts the outcome of an import run.
type Summary struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Importer writes parsed rows through the result repository.
type Importer struct {
	repo   repository.ResultRepositoryInterface
	logger *slog.Logger
}

func New(repo repository.ResultRepositoryInterface, logger *slog.Logger) *Importer {
	return &Importer{repo: repo, logger: logger}
}

// Import adds every row to the stored tallies. A failing row is logged and
// counted; the run continues with the next one. Rows with nothing to add are
// skipped. It stops early only when ctx is done.
func (im *Importer) Import(ctx context.Context, rows []Row) (Summary, error) {
	var s Summary
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		id := row.Tally.Identity
		attrs := []any{
			slog.Int("line", row.Line),
			slog.String("session_key", id.SessionKey()),
			slog.String("candidate_email", id.CandidateEmail),
		}

		if len(row.Tally.Increments) == 0 {
			s.Skipped++
			im.logger.Debug("row has no violations", attrs...)
			continue
		}

		if _, err := im.repo.Increment(ctx, row.Tally); err != nil {
			s.Failed++
			im.logger.Error("failed to import row", append(attrs, slog.String("error", err.Error()))...)
			continue
		}
		s.Inserted++
		im.logger.Info("imported row", attrs...)
	}
	return s, nil
}
