// Package conversation keeps the ordered chat turns of one visitor session and
// persists them to session-scoped key-value storage.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmiller-dev/folio/internal/domain/typewriter"
	"github.com/mmiller-dev/folio/internal/infra/llm"
)

// Storage keys shared with every Storage implementation.
const (
	KeyMessages      = "chatMessages"
	KeyIntroComplete = "initialTypingComplete"
)

// MaxPersistedTurns bounds what Persist writes; the in-memory history is not capped.
const MaxPersistedTurns = 50

var ErrIndexOutOfRange = errors.New("conversation: turn index out of range")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message. Content never changes after creation and Revealed
// only ever flips from false to true.
type Turn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Revealed bool   `json:"revealed"`

	// RevealSpeed overrides typewriter.DefaultSpeed when non-zero.
	RevealSpeed time.Duration `json:"speed,omitempty"`
}

// Speed returns the per-character delay for this turn.
func (t Turn) Speed() time.Duration {
	if t.RevealSpeed > 0 {
		return t.RevealSpeed
	}
	return typewriter.DefaultSpeed
}

// Storage is the injected session-scoped key-value capability.
// Get reports ok=false for a missing key.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Store holds the turns of one session.
type Store struct {
	mu            sync.Mutex
	storage       Storage
	intro         string
	logger        zerolog.Logger
	turns         []Turn
	introComplete bool
}

// NewStore returns an empty store. intro is the text of the synthetic first
// turn used whenever nothing can be restored.
func NewStore(storage Storage, intro string, logger zerolog.Logger) *Store {
	return &Store{storage: storage, intro: intro, logger: logger}
}

// Restore loads persisted turns, marking every one revealed. On a first visit,
// or when storage fails or holds garbage, it starts over with the intro turn.
func (s *Store) Restore() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, complete, err := s.load()
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("conversation restore failed, starting fresh")
		s.resetLocked()
	case turns == nil:
		s.resetLocked()
	default:
		for i := range turns {
			turns[i].Revealed = true
		}
		s.turns = turns
		// Restored turns are shown in full, including an intro that was
		// interrupted mid-reveal, so input must not stay locked behind it.
		if !complete {
			s.logger.Debug().Msg("restored session was interrupted during the intro")
		}
		s.introComplete = true
	}
	return s.snapshotLocked()
}

func (s *Store) load() ([]Turn, bool, error) {
	raw, ok, err := s.storage.Get(KeyMessages)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", KeyMessages, err)
	}
	if !ok || raw == "" {
		return nil, false, nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", KeyMessages, err)
	}
	if len(turns) == 0 {
		return nil, false, nil
	}
	flag, _, err := s.storage.Get(KeyIntroComplete)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", KeyIntroComplete, err)
	}
	return turns, flag == "true", nil
}

func (s *Store) resetLocked() {
	s.turns = []Turn{{
		Role:        RoleAssistant,
		Content:     s.intro,
		Revealed:    false,
		RevealSpeed: typewriter.IntroSpeed,
	}}
	s.introComplete = false
}

// Append adds a turn at the end and returns its index.
func (s *Store) Append(t Turn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
	return len(s.turns) - 1
}

// MarkRevealed flips a turn to revealed. Revealing turn 0 completes the intro.
func (s *Store) MarkRevealed(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.turns) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.turns[index].Revealed = true
	if index == 0 {
		s.introComplete = true
	}
	return nil
}

// RevealAll marks every turn revealed, as happens when the visitor sends a
// new message while a reply is still animating.
func (s *Store) RevealAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.turns {
		s.turns[i].Revealed = true
	}
}

// All returns a copy of the turns in order.
func (s *Store) All() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// History returns the uncapped turn list in provider message form.
func (s *Store) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.turns))
	for i, t := range s.turns {
		out[i] = llm.Message{Role: string(t.Role), Content: t.Content}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Store) IntroComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.introComplete
}

// SetIntroComplete records that the introductory turn has finished revealing.
func (s *Store) SetIntroComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.introComplete = true
}

// Persist writes the most recent MaxPersistedTurns turns and the intro flag.
func (s *Store) Persist() error {
	s.mu.Lock()
	turns := s.turns
	if len(turns) > MaxPersistedTurns {
		turns = turns[len(turns)-MaxPersistedTurns:]
	}
	raw, err := json.Marshal(turns)
	complete := s.introComplete
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("conversation: encode turns: %w", err)
	}

	if err := s.storage.Set(KeyMessages, string(raw)); err != nil {
		return fmt.Errorf("conversation: persist turns: %w", err)
	}
	flag := "false"
	if complete {
		flag = "true"
	}
	if err := s.storage.Set(KeyIntroComplete, flag); err != nil {
		return fmt.Errorf("conversation: persist intro flag: %w", err)
	}
	return nil
}

// Clear forgets the session in storage and starts over with the intro turn.
func (s *Store) Clear() ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.storage.Remove(KeyMessages), s.storage.Remove(KeyIntroComplete))
	s.resetLocked()
	if err != nil {
		return s.snapshotLocked(), fmt.Errorf("conversation: clear: %w", err)
	}
	return s.snapshotLocked(), nil
}

func (s *Store) snapshotLocked() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
	return nil
}
