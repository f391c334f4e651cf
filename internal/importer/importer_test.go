package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Increment(ctx context.Context, tally domain.Tally) (*domain.Result, error) {
	args := m.Called(ctx, tally)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

func (m *MockResultRepository) Get(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error) {
	args := m.Called(ctx, sessionKey, candidateEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}

func (m *MockResultRepository) ListBySession(ctx context.Context, sessionKey string) ([]domain.Result, error) {
	args := m.Called(ctx, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Result), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const legacyCSV = `candidate_id,exam_id,candidate_name,candidate_email,tab_switches,inactivities,text_selections,copies,pastes,right_clicks
c-1,exam-9,Ana,ana@example.com,3,0,1,0,2,0
c-2,exam-9,Bruno,bruno@example.com,0,0,0,0,0,0
`

func TestParse(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	t.Run("legacy columns", func(t *testing.T) {
		rows, rowErrs, err := Parse(strings.NewReader(legacyCSV), Options{Clock: clock})
		require.NoError(t, err)
		assert.Empty(t, rowErrs)
		require.Len(t, rows, 2)

		first := rows[0]
		assert.Equal(t, 2, first.Line)
		assert.Equal(t, violation.Identity{
			CandidateID:    "c-1",
			ExamID:         "exam-9",
			CandidateName:  "Ana",
			CandidateEmail: "ana@example.com",
		}, first.Tally.Identity)
		assert.Equal(t, map[violation.Type]int{
			violation.TabSwitch:     3,
			violation.TextSelection: 1,
			violation.Paste:         2,
		}, first.Tally.Increments)
		assert.Equal(t, clock.Now(), first.Tally.At)

		assert.Empty(t, rows[1].Tally.Increments)
	})

	t.Run("wire names and extra columns", func(t *testing.T) {
		in := "question_set_id,candidate_email,face_not_visible,copy,notes\nqs-1,ana@example.com,4,1,late start\n"

		rows, rowErrs, err := Parse(strings.NewReader(in), Options{Clock: clock})
		require.NoError(t, err)
		assert.Empty(t, rowErrs)
		require.Len(t, rows, 1)
		assert.Equal(t, violation.ModeQuestionSet, rows[0].Tally.Identity.Mode())
		assert.Equal(t, map[violation.Type]int{
			violation.FaceNotVisible: 4,
			violation.Copy:           1,
		}, rows[0].Tally.Increments)
	})

	t.Run("question set rows ignore candidate columns", func(t *testing.T) {
		in := "candidate_id,exam_id,question_set_id,candidate_email,copies\nc-1,exam-9,qs-1,ana@example.com,1\n"

		rows, rowErrs, err := Parse(strings.NewReader(in), Options{Clock: clock})
		require.NoError(t, err)
		assert.Empty(t, rowErrs)
		require.Len(t, rows, 1)
		assert.Equal(t, "qs-1", rows[0].Tally.Identity.SessionKey())
		assert.Empty(t, rows[0].Tally.Identity.CandidateID)
	})

	t.Run("missing email is a row error", func(t *testing.T) {
		in := "candidate_id,exam_id,copies\nc-1,exam-9,1\n"

		rows, rowErrs, err := Parse(strings.NewReader(in), Options{Clock: clock})
		require.NoError(t, err)
		assert.Empty(t, rows)
		require.Len(t, rowErrs, 1)
		assert.ErrorIs(t, rowErrs[0], violation.ErrMissingEmail)

		var rowErr *RowError
		require.True(t, errors.As(rowErrs[0], &rowErr))
		assert.Equal(t, 2, rowErr.Line)
	})

	t.Run("email domain fills missing email", func(t *testing.T) {
		in := "candidate_id,exam_id,copies\nc-1,exam-9,1\n"

		rows, rowErrs, err := Parse(strings.NewReader(in), Options{Clock: clock, EmailDomain: "@school.example"})
		require.NoError(t, err)
		assert.Empty(t, rowErrs)
		require.Len(t, rows, 1)
		assert.Equal(t, "c-1@school.example", rows[0].Tally.Identity.CandidateEmail)
	})

	t.Run("bad rows do not stop the parse", func(t *testing.T) {
		in := "candidate_id,exam_id,candidate_email,copies\n" +
			"c-1,exam-9,a@example.com,two\n" +
			"c-2,exam-9,b@example.com,-1\n" +
			",exam-9,c@example.com,1\n" +
			"c-4,exam-9,d@example.com,5\n"

		rows, rowErrs, err := Parse(strings.NewReader(in), Options{Clock: clock})
		require.NoError(t, err)
		require.Len(t, rowErrs, 3)
		assert.ErrorIs(t, rowErrs[1], ErrNegativeCount)
		assert.ErrorIs(t, rowErrs[2], violation.ErrInvalidIdentity)

		require.Len(t, rows, 1)
		assert.Equal(t, 5, rows[0].Line)
		assert.Equal(t, 5, rows[0].Tally.Increments[violation.Copy])
	})

	t.Run("header without identity columns", func(t *testing.T) {
		_, _, err := Parse(strings.NewReader("candidate_id,copies\nc-1,1\n"), Options{})
		assert.ErrorIs(t, err, ErrMissingIdentityColumns)
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := Parse(strings.NewReader(""), Options{})
		assert.ErrorIs(t, err, ErrMissingIdentityColumns)
	})
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	rows, _, err := Parse(strings.NewReader(legacyCSV+"c-3,exam-9,Caio,caio@example.com,1,0,0,0,0,0\n"), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	t.Run("continues after a failed row", func(t *testing.T) {
		repo := new(MockResultRepository)
		repo.On("Increment", ctx, mock.MatchedBy(func(tally domain.Tally) bool {
			return tally.Identity.CandidateEmail == "ana@example.com"
		})).Return(nil, errors.New("db down")).Once()
		repo.On("Increment", ctx, mock.MatchedBy(func(tally domain.Tally) bool {
			return tally.Identity.CandidateEmail == "caio@example.com"
		})).Return(&domain.Result{SessionKey: "exam-9", CandidateEmail: "caio@example.com", TabSwitches: 1}, nil).Once()

		summary, err := New(repo, testLogger()).Import(ctx, rows)
		require.NoError(t, err)
		assert.Equal(t, Summary{Inserted: 1, Skipped: 1, Failed: 1}, summary)
		repo.AssertExpectations(t)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		repo := new(MockResultRepository)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		summary, err := New(repo, testLogger()).Import(cancelled, rows)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, Summary{}, summary)
		repo.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything)
	})
}
