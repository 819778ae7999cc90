package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmiller-dev/folio/internal/domain/typewriter"
)

const introText = "# Michael Miller\n## Senior Software Engineer"

func newTestStore(s Storage) *Store {
	return NewStore(s, introText, zerolog.Nop())
}

// failingStorage errors on every call.
type failingStorage struct{}

func (failingStorage) Get(string) (string, bool, error) { return "", false, errors.New("quota exceeded") }
func (failingStorage) Set(string, string) error { return errors.New("quota exceeded") }
func (failingStorage) Remove(string) error { return errors.New("quota exceeded") }

func assertIntroTurn(t *testing.T, turns []Turn) {
	t.Helper()
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)
	assert.Equal(t, introText, turns[0].Content)
	assert.False(t, turns[0].Revealed)
	assert.Equal(t, typewriter.IntroSpeed, turns[0].RevealSpeed)
	assert.Less(t, turns[0].Speed(), typewriter.DefaultSpeed)
}

func TestRestore_FirstVisitReturnsUnrevealedIntro(t *testing.T) {
	t.Parallel()

	st := newTestStore(NewMemoryStorage())
	assertIntroTurn(t, st.Restore())
	assert.False(t, st.IntroComplete())
}

func TestRestore_CorruptDataBehavesLikeFirstVisit(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(KeyMessages, "{not json"))

	st := newTestStore(mem)
	assertIntroTurn(t, st.Restore())
	assert.False(t, st.IntroComplete())
}

func TestRestore_StorageFailureBehavesLikeFirstVisit(t *testing.T) {
	t.Parallel()

	st := newTestStore(failingStorage{})
	assertIntroTurn(t, st.Restore())
}

func TestPersistRestore_RoundTripMarksEverythingRevealed(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	st := newTestStore(mem)
	st.Restore()
	for i := 1; i < MaxPersistedTurns; i++ {
		st.Append(Turn{Role: RoleUser, Content: fmt.Sprintf("t%d", i), Revealed: i%2 == 0})
	}
	require.Equal(t, MaxPersistedTurns, st.Len())
	require.NoError(t, st.Persist())

	restored := newTestStore(mem).Restore()
	require.Len(t, restored, MaxPersistedTurns)
	for i, turn := range restored {
		assert.True(t, turn.Revealed, "turn %d should be revealed", i)
	}
	assert.Equal(t, introText, restored[0].Content)
	assert.Equal(t, "t49", restored[49].Content)
}

func TestPersist_KeepsMostRecentFifty(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	st := newTestStore(mem)
	for i := 1; i <= 60; i++ {
		st.Append(Turn{Role: RoleUser, Content: fmt.Sprintf("t%d", i), Revealed: true})
	}
	require.NoError(t, st.Persist())

	raw, ok, err := mem.Get(KeyMessages)
	require.NoError(t, err)
	require.True(t, ok)

	var stored []Turn
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 50)
	assert.Equal(t, "t11", stored[0].Content)
	assert.Equal(t, "t60", stored[49].Content)

	// The in-memory history stays uncapped.
	assert.Len(t, st.History(), 60)
}

func TestPersist_WritesIntroFlag(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	st := newTestStore(mem)
	st.Restore()
	require.NoError(t, st.Persist())

	flag, _, _ := mem.Get(KeyIntroComplete)
	assert.Equal(t, "false", flag)

	require.NoError(t, st.MarkRevealed(0))
	require.NoError(t, st.Persist())
	flag, _, _ = mem.Get(KeyIntroComplete)
	assert.Equal(t, "true", flag)
}

func TestRestore_InterruptedIntroUnlocksInput(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	st := newTestStore(mem)
	st.Restore()
	require.NoError(t, st.Persist())

	again := newTestStore(mem)
	turns := again.Restore()
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Revealed)
	assert.True(t, again.IntroComplete())
}

func TestMarkRevealed_OutOfRange(t *testing.T) {
	t.Parallel()

	st := newTestStore(NewMemoryStorage())
	st.Restore()
	assert.ErrorIs(t, st.MarkRevealed(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, st.MarkRevealed(-1), ErrIndexOutOfRange)
}

func TestRevealAll(t *testing.T) {
	t.Parallel()

	st := newTestStore(NewMemoryStorage())
	st.Restore()
	st.Append(Turn{Role: RoleAssistant, Content: "reply"})
	st.RevealAll()

	for _, turn := range st.All() {
		assert.True(t, turn.Revealed)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	t.Parallel()

	st := newTestStore(NewMemoryStorage())
	st.Restore()
	turns := st.All()
	turns[0].Content = "mutated"
	assert.Equal(t, introText, st.All()[0].Content)
}

func TestHistory_MapsRoles(t *testing.T) {
	t.Parallel()

	st := newTestStore(NewMemoryStorage())
	st.Restore()
	st.Append(Turn{Role: RoleUser, Content: "hi", Revealed: true})

	h := st.History()
	require.Len(t, h, 2)
	assert.Equal(t, "assistant", h[0].Role)
	assert.Equal(t, "user", h[1].Role)
	assert.Equal(t, "hi", h[1].Content)
}

func TestClear_RemovesKeysAndResets(t *testing.T) {
	t.Parallel()

	mem := NewMemoryStorage()
	st := newTestStore(mem)
	st.Restore()
	st.Append(Turn{Role: RoleUser, Content: "hi", Revealed: true})
	require.NoError(t, st.Persist())

	turns, err := st.Clear()
	require.NoError(t, err)
	assertIntroTurn(t, turns)

	_, ok, _ := mem.Get(KeyMessages)
	assert.False(t, ok)
	_, ok, _ = mem.Get(KeyIntroComplete)
	assert.False(t, ok)
}

func TestTurn_SpeedDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, typewriter.DefaultSpeed, Turn{}.Speed())
}
