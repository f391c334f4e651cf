package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

const resultColumns = `session_key, candidate_email, candidate_name, candidate_id, mode,
		tab_switches, inactivities, text_selections, copies, pastes, right_clicks, face_not_visible,
		first_seen_at, last_seen_at`

var ErrEmptyTally = errors.New("tally has no increments")

type ResultRepository struct {
	pool PgxPool
}

func NewResultRepository(pool PgxPool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Increment adds the tally to the candidate's row in a single upsert and
// returns the updated totals.
func (r *ResultRepository) Increment(ctx context.Context, tally domain.Tally) (*domain.Result, error) {
	id := tally.Identity
	at := tally.At
	if at.IsZero() {
		at = time.Now()
	}

	var (
		columns []string
		updates []string
	)
	args := []any{id.SessionKey(), id.CandidateEmail, id.CandidateName, id.CandidateID, id.Mode().String(), at.UTC()}

	// column names come from the closed violation type set, never from input
	for _, t := range violation.Types() {
		n := tally.Increments[t]
		if n <= 0 {
			continue
		}
		col := t.Column()
		args = append(args, n)
		columns = append(columns, col)
		updates = append(updates, fmt.Sprintf("%s = violation_results.%s + EXCLUDED.%s", col, col, col))
	}
	if len(columns) == 0 {
		return nil, ErrEmptyTally
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+7)
	}

	query := fmt.Sprintf(`
		INSERT INTO violation_results (session_key, candidate_email, candidate_name, candidate_id, mode, first_seen_at, last_seen_at, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $6, %s)
		ON CONFLICT (session_key, candidate_email) DO UPDATE SET
			%s,
			candidate_name = EXCLUDED.candidate_name,
			last_seen_at = GREATEST(violation_results.last_seen_at, EXCLUDED.last_seen_at)
		RETURNING %s
	`, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ",\n\t\t\t"), resultColumns)

	result, err := scanResult(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("increment result: %w", err)
	}

	return result, nil
}

func (r *ResultRepository) Get(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM violation_results
		WHERE session_key = $1 AND candidate_email = $2
	`

	result, err := scanResult(r.pool.QueryRow(ctx, query, sessionKey, candidateEmail))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	return result, nil
}

func (r *ResultRepository) ListBySession(ctx context.Context, sessionKey string) ([]domain.Result, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM violation_results
		WHERE session_key = $1
		ORDER BY candidate_email
	`

	rows, err := r.pool.Query(ctx, query, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Result, 0)
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, *result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return results, nil
}

func scanResult(row pgx.Row) (*domain.Result, error) {
	var result domain.Result
	err := row.Scan(
		&result.SessionKey,
		&result.CandidateEmail,
		&result.CandidateName,
		&result.CandidateID,
		&result.Mode,
		&result.TabSwitches,
		&result.Inactivities,
		&result.TextSelections,
		&result.Copies,
		&result.Pastes,
		&result.RightClicks,
		&result.FaceNotVisible,
		&result.FirstSeenAt,
		&result.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

var _ ResultRepositoryInterface = (*ResultRepository)(nil)
