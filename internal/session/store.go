// Package session implements the per-session aggregation store: the
// submission history used for duplicate detection and the cumulative
// list of matched findings. All state lives in the key-value substrate
// under the keys "<session>-input" and "<session>-results"; appends
// for the same session are serialized through a per-session mutex so
// concurrent submissions cannot lose updates.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/thebtf/decody/internal/kv"
	"github.com/thebtf/decody/pkg/models"
)

var (
	// ErrDuplicateSubmission means the canonicalized input was already
	// submitted for this session. It is a normal outcome: the caller
	// may deliver the same request more than once, and the second
	// delivery must be a no-op.
	ErrDuplicateSubmission = errors.New("session: duplicate submission")

	// ErrNotFound means no aggregate exists for the session.
	ErrNotFound = errors.New("session: no data for session")
)

const (
	inputSuffix   = "-input"
	resultsSuffix = "-results"
)

// Store holds session submission histories and aggregates.
type Store struct {
	kv kv.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a session store over the given key-value substrate.
func NewStore(store kv.Store) *Store {
	return &Store{
		kv:    store,
		locks: make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing writes for one session id.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// AppendInput records a submission in the session's input history.
// Returns ErrDuplicateSubmission, without touching any state, when the
// canonical form of the input is already present.
func (s *Store) AppendInput(ctx context.Context, sessionID string, input models.SubmittedInput) error {
	canonical, err := input.Canonical()
	if err != nil {
		return fmt.Errorf("canonicalize input: %w", err)
	}

	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	history, err := s.readHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, previous := range history {
		if bytes.Equal([]byte(previous), canonical) {
			return ErrDuplicateSubmission
		}
	}

	history = append(history, json.RawMessage(canonical))
	encoded, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode input history: %w", err)
	}
	return s.kv.Set(ctx, sessionID+inputSuffix, string(encoded))
}

// AppendMatches appends matched findings to the session's aggregate,
// creating it if this is the first submission. Appending an empty
// match list still creates the aggregate so a later report request
// finds the session rather than reporting "no data".
func (s *Store) AppendMatches(ctx context.Context, sessionID string, matches []models.MatchedFinding) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	aggregate, err := s.readAggregate(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	aggregate = append(aggregate, matches...)
	encoded, err := json.Marshal(aggregate)
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	return s.kv.Set(ctx, sessionID+resultsSuffix, string(encoded))
}

// ReadAggregate returns the session's cumulative matched findings, or
// ErrNotFound when the session has no aggregate.
func (s *Store) ReadAggregate(ctx context.Context, sessionID string) ([]models.MatchedFinding, error) {
	return s.readAggregate(ctx, sessionID)
}

// Delete removes the session's aggregate and input history. Called
// after a report has been generated; a subsequent read returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if err := s.kv.Delete(ctx, sessionID+resultsSuffix); err != nil {
		return err
	}
	return s.kv.Delete(ctx, sessionID+inputSuffix)
}

func (s *Store) readHistory(ctx context.Context, sessionID string) ([]json.RawMessage, error) {
	raw, err := s.kv.Get(ctx, sessionID+inputSuffix)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var history []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode input history: %w", err)
	}
	return history, nil
}

func (s *Store) readAggregate(ctx context.Context, sessionID string) ([]models.MatchedFinding, error) {
	raw, err := s.kv.Get(ctx, sessionID+resultsSuffix)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var aggregate []models.MatchedFinding
	if err := json.Unmarshal([]byte(raw), &aggregate); err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	return aggregate, nil
}
