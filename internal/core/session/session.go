// Package session holds the transient, UI-adjacent state for viewing and
// editing a single draft: original vs. edited content, unlock-to-edit gating
// on low-confidence words, and orchestration of save/revert through the
// version store. A session is created when a draft is opened and destroyed
// when the user navigates away; it is never the system of record.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/format"
	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/store"
)

type State string

const (
	StateViewing  State = "viewing"
	StateEditing  State = "editing"
	StateSaved    State = "saved"
	StateReverted State = "reverted"
)

var (
	// ErrWordLocked means the word is below high confidence or carries
	// alternatives and has not been unlocked yet.
	ErrWordLocked = errors.New("session: word is locked; unlock it to edit")
	// ErrConfirmationRequired means unsaved in-session changes or
	// previously saved edits exist and the revert was not confirmed.
	ErrConfirmationRequired = errors.New("session: revert requires confirmation")
	// ErrNoSuchWord means the word index is outside the current content.
	ErrNoSuchWord = errors.New("session: no word at that index")
)

// Notifier receives the scoped notification after a successful revert so that
// exactly the affected view refreshes. Broad "refresh everything" fan-out is
// deliberately not expressible here.
type Notifier interface {
	DraftReverted(ref model.SlotRef)
}

type Session struct {
	store    store.VersionStore
	ref      model.SlotRef
	notifier Notifier
	log      *logrus.Entry

	mu         sync.Mutex
	state      State
	original   string // v1, fetched once; never overwritten by saves
	content    string // what the user currently sees
	baseline   string // last persisted content (HEAD at open, then advances on save)
	words      []model.WordScore
	unlocked   map[int]bool
	generation uint64
}

// Open loads the draft and starts the session in the viewing state. The
// displayed content is the HEAD-resolved text, so a previously saved edit is
// what the user sees; the v1 original is kept alongside for display and
// revert comparisons.
func Open(ctx context.Context, st store.VersionStore, ref model.SlotRef, notifier Notifier) (*Session, error) {
	original, err := st.GetVersion(ctx, ref, store.V1)
	if err != nil {
		return nil, err
	}
	head, err := st.MaterializedHeadCopy(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Session{
		store:    st,
		ref:      ref,
		notifier: notifier,
		log:      logrus.WithField("component", "session").WithField("slot", ref.String()),
		state:    StateViewing,
		original: original,
		content:  head,
		baseline: head,
		unlocked: map[int]bool{},
	}, nil
}

func (s *Session) Ref() model.SlotRef { return s.ref }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *Session) Original() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// HasUnsavedChanges compares against the last persisted baseline, not against
// v1: after a save the session is clean even though v2 differs from the
// original.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content != s.baseline
}

// Generation identifies the session's current view of the world. Callers
// capture it before issuing an async fetch and pass it back when applying the
// result; a stale result is discarded instead of overwriting newer state.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// ApplyAlignment installs confidence data for the displayed content. Returns
// false (and changes nothing) when the result belongs to an earlier
// generation.
func (s *Session) ApplyAlignment(generation uint64, result model.AlignmentResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		s.log.Debug("discarding stale alignment result")
		return false
	}
	s.words = result.Words
	return true
}

// Words returns the current per-word confidence data, or nil when alignment
// was unavailable (plain uncolored display).
func (s *Session) Words() []model.WordScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words
}

func (s *Session) wordAt(index int) (model.WordScore, bool) {
	for _, w := range s.words {
		if w.Position == index {
			return w, true
		}
	}
	return model.WordScore{}, false
}

// Editable reports whether the word at index can be typed into right now.
// Words flagged below high confidence or carrying at least one alternative
// stay locked until explicitly unlocked; everything else is directly
// editable. Without alignment data there is nothing to gate on.
func (s *Session) Editable(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editableLocked(index)
}

func (s *Session) editableLocked(index int) bool {
	if s.unlocked[index] {
		return true
	}
	w, ok := s.wordAt(index)
	if !ok {
		return true
	}
	return w.Level == model.ConfidenceHigh && len(w.Alternatives) == 0
}

// Unlock makes the word at index editable. Any word may be unlocked on
// demand.
func (s *Session) Unlock(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked[index] = true
}

func (s *Session) IsUnlocked(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked[index]
}

// SetContent replaces the whole draft text (free-form editing surface).
func (s *Session) SetContent(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setContentLocked(text)
}

func (s *Session) setContentLocked(text string) {
	s.content = text
	if s.content != s.baseline {
		s.state = StateEditing
	}
}

// EditWord replaces a single word; the gate applies here because this is the
// word-level editing surface.
func (s *Session) EditWord(index int, newValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editableLocked(index) {
		return ErrWordLocked
	}
	return s.replaceWordLocked(index, newValue)
}

// EditWordFormatted replaces a word with a clean replacement value while
// preserving the token's surface decoration: editing the degrees of 45°30'
// to 50 yields 50°30', editing NORTH to south yields SOUTH. Tokens without a
// recognized pattern take the replacement verbatim.
func (s *Session) EditWordFormatted(index int, newValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editableLocked(index) {
		return ErrWordLocked
	}
	tokens := strings.Fields(s.content)
	if index < 0 || index >= len(tokens) {
		return ErrNoSuchWord
	}
	token := tokens[index]
	if mapping := format.ExtractMapping(token, format.CleanTokens(token)); len(mapping) == 1 {
		newValue = format.Reapply(mapping[0], newValue)
	}
	return s.replaceWordLocked(index, newValue)
}

// AcceptAlternative swaps in a differing reading surfaced by alignment.
// Picking an alternative is an explicit choice, so it implies the unlock that
// typing would have required.
func (s *Session) AcceptAlternative(index int, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked[index] = true
	return s.replaceWordLocked(index, word)
}

func (s *Session) replaceWordLocked(index int, newValue string) error {
	tokens := strings.Fields(s.content)
	if index < 0 || index >= len(tokens) {
		return ErrNoSuchWord
	}
	tokens[index] = newValue
	s.setContentLocked(strings.Join(tokens, " "))
	return nil
}

// Save persists the current content as v2 and advances the baseline. The v1
// original is untouched; only the "last persisted" comparison point moves.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	content := s.content
	s.mu.Unlock()

	if err := s.store.SaveEdited(ctx, s.ref, content); err != nil {
		// A silently discarded edit is unacceptable; the caller must
		// surface this.
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = content
	s.state = StateSaved
	return nil
}

// NeedsRevertConfirmation is true when unsaved in-session changes exist OR a
// previously saved v2 differs from v1. Both are checked: a prior session may
// have saved edits this session never touched.
func (s *Session) NeedsRevertConfirmation(ctx context.Context) (bool, error) {
	s.mu.Lock()
	unsaved := s.content != s.baseline
	s.mu.Unlock()
	if unsaved {
		return true, nil
	}

	v1, err := s.store.GetVersion(ctx, s.ref, store.V1)
	if err != nil {
		return false, err
	}
	// The explicit v2 read falls back to v1 when no edit exists, so a
	// difference here means a saved edit is really present.
	v2, err := s.store.GetVersion(ctx, s.ref, store.V2)
	if err != nil {
		return false, err
	}
	return v1 != v2, nil
}

// Revert restores the original version. When confirmation is required and
// confirmed is false, nothing happens and ErrConfirmationRequired is
// returned. On store failure the displayed content is left exactly as it was;
// a failed revert must never look like it succeeded.
func (s *Session) Revert(ctx context.Context, purge, confirmed bool) error {
	needs, err := s.NeedsRevertConfirmation(ctx)
	if err != nil {
		return err
	}
	if needs && !confirmed {
		return ErrConfirmationRequired
	}

	if err := s.store.RevertToOriginal(ctx, s.ref, purge); err != nil {
		return err
	}
	restored, err := s.store.GetVersion(ctx, s.ref, store.V1)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.content = restored
	s.baseline = restored
	s.original = restored
	s.unlocked = map[int]bool{}
	s.words = nil
	s.state = StateReverted
	s.generation++
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.DraftReverted(s.ref)
	}
	return nil
}

// Close invalidates the session so in-flight async results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}
