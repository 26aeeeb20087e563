// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package play

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dailymoji/dailymoji/internal/puzzle"
	"github.com/dailymoji/dailymoji/internal/scoring"
	"github.com/dailymoji/dailymoji/pkg/errutil"
)

var tracer = otel.Tracer("dailymoji/play")

// DefaultConflictRetries bounds re-read attempts after a lost conditional write.
const DefaultConflictRetries = 5

const conflictBackoff = 5 * time.Millisecond

// StartResult reports the state of a started or resumed session.
type StartResult struct {
	Session *Session
	Resumed bool // true when a started session already existed
}

// HintResult is the outcome of a successful hint reveal.
type HintResult struct {
	Session *Session
	Ordinal int // 1-based position of the revealed hint
	Hint    string
	Cost    time.Duration
}

// SubmitResult is the outcome of a guess. Session is the stored row after the
// guess: solved when Correct, unchanged otherwise.
type SubmitResult struct {
	Correct bool
	Session *Session
}

// Manager runs session lifecycle operations against the durable store.
// It holds no per-session state and is safe for concurrent use.
type Manager struct {
	sessions        SessionRepository
	puzzles         PuzzleLookup
	clock           clockwork.Clock
	logger          *slog.Logger
	publisher       Publisher
	conflictRetries uint64
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*Manager)

// WithClock sets the clock authority. Defaults to the real clock.
func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithPublisher sets the solved-event publisher. Defaults to a no-op.
func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithConflictRetries overrides DefaultConflictRetries.
func WithConflictRetries(n uint64) ManagerOption {
	return func(m *Manager) {
		m.conflictRetries = n
	}
}

// NewManager creates a session manager. Returns an error if either dependency is nil.
func NewManager(sessions SessionRepository, puzzles PuzzleLookup, opts ...ManagerOption) (*Manager, error) {
	if sessions == nil {
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("session repository is required")
	}
	if puzzles == nil {
		return nil, oops.Code("MANAGER_INVALID_CONFIG").Errorf("puzzle lookup is required")
	}
	m := &Manager{
		sessions:        sessions,
		puzzles:         puzzles,
		clock:           clockwork.NewRealClock(),
		logger:          slog.Default(),
		publisher:       nopPublisher{},
		conflictRetries: DefaultConflictRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// now reads the clock authority at the millisecond precision the store keeps.
func (m *Manager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Millisecond)
}

// Start creates the session for key if none exists and returns the stored row.
// Starting an already started session is idempotent and keeps the original
// start instant.
func (m *Manager) Start(ctx context.Context, key Key) (res StartResult, err error) {
	defer observeOperation("start", time.Now())
	ctx, span := startSpan(ctx, "play.start", key)
	defer func() { endSpan(span, err) }()

	outcome := OutcomeRejected
	defer func() { SessionsStarted.WithLabelValues(outcome).Inc() }()

	if err = key.Validate(); err != nil {
		return StartResult{}, err
	}
	if _, err = m.lookupPuzzle(ctx, key.PuzzleID); err != nil {
		return StartResult{}, err
	}

	fresh, err := NewSession(key, m.now())
	if err != nil {
		return StartResult{}, err
	}
	stored, created, err := m.sessions.CreateIfAbsent(ctx, fresh)
	if err != nil {
		outcome = OutcomeError
		return StartResult{}, oops.Code("PLAY_START_FAILED").
			With("player_id", key.PlayerID.String()).
			With("puzzle_id", key.PuzzleID.String()).
			Wrap(err)
	}

	switch st := StateOf(stored).(type) {
	case Solved:
		err = oops.Code("PLAY_ALREADY_SOLVED").
			With("session_id", st.Session.ID.String()).
			Wrap(ErrAlreadySolved)
		return StartResult{}, err
	case Started:
		if created {
			outcome = OutcomeCreated
			m.logger.InfoContext(ctx, "session started",
				"session_id", st.Session.ID.String(),
				"player_id", key.PlayerID.String(),
				"puzzle_id", key.PuzzleID.String(),
			)
		} else {
			outcome = OutcomeResumed
		}
		span.SetAttributes(attribute.Bool("session.resumed", !created))
		return StartResult{Session: st.Session, Resumed: !created}, nil
	default:
		err = oops.Code("PLAY_START_FAILED").Errorf("store returned no session after create")
		return StartResult{}, err
	}
}

// RevealHint charges the next hint's cost and returns its text.
// Fails with ErrInvalidState when no session exists or every hint is revealed,
// and with ErrAlreadySolved once the session is solved.
func (m *Manager) RevealHint(ctx context.Context, key Key) (res HintResult, err error) {
	defer observeOperation("reveal_hint", time.Now())
	ctx, span := startSpan(ctx, "play.reveal_hint", key)
	defer func() { endSpan(span, err) }()

	if err = key.Validate(); err != nil {
		return HintResult{}, err
	}
	p, err := m.lookupPuzzle(ctx, key.PuzzleID)
	if err != nil {
		return HintResult{}, err
	}
	limit := min(scoring.MaxHints, len(p.Hints))

	err = m.retryConflicts(ctx, func(ctx context.Context) error {
		s, err := m.currentStarted(ctx, key)
		if err != nil {
			return err
		}
		if s.HintsRevealed >= limit {
			return oops.Code("PLAY_HINTS_EXHAUSTED").
				With("hints_revealed", s.HintsRevealed).
				With("hint_limit", limit).
				Wrap(ErrInvalidState)
		}
		cost, _ := scoring.HintCost(s.HintsRevealed)
		text, _ := p.Hint(s.HintsRevealed)

		updated, err := m.sessions.AddPenalty(ctx, key, s.HintsRevealed, cost)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		res = HintResult{
			Session: updated,
			Ordinal: updated.HintsRevealed,
			Hint:    text,
			Cost:    cost,
		}
		return nil
	})
	if err != nil {
		return HintResult{}, wrapOp(err, "PLAY_HINT_FAILED", key)
	}

	recordHint(res.Ordinal)
	span.SetAttributes(
		attribute.Int("hint.ordinal", res.Ordinal),
		attribute.Int64("session.penalty_ms", scoring.Milliseconds(res.Session.Penalty)),
	)
	return res, nil
}

// Submit checks guess against the solution. A correct guess finalizes the
// session and freezes its score. An incorrect guess changes nothing.
// clientPenalty is the client's own penalty total, or nil when not reported.
// It is only compared against the server total and logged when they differ.
func (m *Manager) Submit(ctx context.Context, key Key, guess string, clientPenalty *time.Duration) (res SubmitResult, err error) {
	defer observeOperation("submit", time.Now())
	ctx, span := startSpan(ctx, "play.submit", key)
	defer func() { endSpan(span, err) }()

	result := OutcomeError
	defer func() { Submissions.WithLabelValues(result).Inc() }()

	if err = key.Validate(); err != nil {
		return SubmitResult{}, err
	}
	p, err := m.lookupPuzzle(ctx, key.PuzzleID)
	if err != nil {
		return SubmitResult{}, err
	}

	err = m.retryConflicts(ctx, func(ctx context.Context) error {
		s, err := m.currentStarted(ctx, key)
		if err != nil {
			return err
		}
		if !p.Matches(guess) {
			res = SubmitResult{Correct: false, Session: s}
			return nil
		}

		finishedAt := m.now()
		solved, err := m.sessions.Finalize(ctx, key, Finalization{
			ExpectedHints: s.HintsRevealed,
			Penalty:       s.Penalty,
			Duration:      scoring.ElapsedSince(s.StartedAt, finishedAt),
			Score:         scoring.Score(s.StartedAt, finishedAt, s.Penalty),
			FinishedAt:    finishedAt,
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		res = SubmitResult{Correct: true, Session: solved}
		return nil
	})
	if err != nil {
		return SubmitResult{}, wrapOp(err, "PLAY_SUBMIT_FAILED", key)
	}

	m.checkClientPenalty(ctx, res.Session, clientPenalty)
	span.SetAttributes(attribute.Bool("guess.correct", res.Correct))
	if !res.Correct {
		result = OutcomeIncorrect
		return res, nil
	}

	result = OutcomeCorrect
	s := res.Session
	span.SetAttributes(attribute.Int64("session.score_ms", scoring.Milliseconds(s.Score)))
	m.logger.InfoContext(ctx, "session solved",
		"session_id", s.ID.String(),
		"player_id", s.PlayerID.String(),
		"puzzle_id", s.PuzzleID.String(),
		"score_ms", scoring.Milliseconds(s.Score),
		"penalty_ms", scoring.Milliseconds(s.Penalty),
		"hints_revealed", s.HintsRevealed,
	)
	if pubErr := m.publisher.PublishSolved(ctx, NewSolvedEvent(s, p.DateString())); pubErr != nil {
		errutil.LogErrorContext(ctx, m.logger, "failed to publish solved event", pubErr,
			"session_id", s.ID.String())
	}
	return res, nil
}

// SolvedPuzzles returns the set of puzzles playerID has solved.
func (m *Manager) SolvedPuzzles(ctx context.Context, playerID uuid.UUID) (map[ulid.ULID]bool, error) {
	if playerID == uuid.Nil {
		return nil, oops.Code("PLAY_NOT_AUTHENTICATED").Wrap(ErrNotAuthenticated)
	}
	ids, err := m.sessions.SolvedPuzzleIDs(ctx, playerID)
	if err != nil {
		return nil, oops.Code("PLAY_SOLVED_LIST_FAILED").
			With("player_id", playerID.String()).
			Wrap(err)
	}
	solved := make(map[ulid.ULID]bool, len(ids))
	for _, id := range ids {
		solved[id] = true
	}
	return solved, nil
}

// currentStarted reads the session for key and requires it to be started.
func (m *Manager) currentStarted(ctx context.Context, key Key) (*Session, error) {
	s, err := m.sessions.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	switch st := StateOf(s).(type) {
	case NoSession:
		return nil, oops.Code("PLAY_NO_SESSION").Wrap(ErrInvalidState)
	case Solved:
		return nil, oops.Code("PLAY_ALREADY_SOLVED").
			With("session_id", st.Session.ID.String()).
			Wrap(ErrAlreadySolved)
	case Started:
		return st.Session, nil
	default:
		return nil, oops.Code("PLAY_UNKNOWN_STATE").Errorf("unexpected session state %T", st)
	}
}

func (m *Manager) lookupPuzzle(ctx context.Context, id ulid.ULID) (*puzzle.Puzzle, error) {
	p, err := m.puzzles.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("PLAY_PUZZLE_LOOKUP_FAILED").With("puzzle_id", id.String()).Wrap(err)
	}
	return p, nil
}

// retryConflicts runs fn, re-running it while it returns a retryable conflict.
func (m *Manager) retryConflicts(ctx context.Context, fn retry.RetryFunc) error {
	b := retry.WithMaxRetries(m.conflictRetries, retry.NewConstant(conflictBackoff))
	return retry.Do(ctx, b, fn)
}

func (m *Manager) checkClientPenalty(ctx context.Context, s *Session, reported *time.Duration) {
	if reported == nil || *reported == s.Penalty {
		return
	}
	PenaltyMismatches.Inc()
	m.logger.WarnContext(ctx, "client penalty disagrees with server",
		"session_id", s.ID.String(),
		"player_id", s.PlayerID.String(),
		"client_penalty_ms", scoring.Milliseconds(*reported),
		"server_penalty_ms", scoring.Milliseconds(s.Penalty),
	)
}

func wrapOp(err error, code string, key Key) error {
	return oops.Code(code).
		With("player_id", key.PlayerID.String()).
		With("puzzle_id", key.PuzzleID.String()).
		Wrap(err)
}

func startSpan(ctx context.Context, name string, key Key) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("player.id", key.PlayerID.String()),
			attribute.String("puzzle.id", key.PuzzleID.String()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
