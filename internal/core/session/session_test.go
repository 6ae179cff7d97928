package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/store"
)

func openTestSession(t *testing.T, st *mockStore, notifier Notifier) *Session {
	t.Helper()
	ref := model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}
	if _, ok := st.v1[ref]; !ok {
		require.NoError(t, st.PutOriginal(context.Background(), ref, "Section Two of the plat"))
	}
	s, err := Open(context.Background(), st, ref, notifier)
	require.NoError(t, err)
	return s
}

func TestOpenStartsViewingWithHeadContent(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	assert.Equal(t, StateViewing, s.State())
	assert.Equal(t, "Section Two of the plat", s.Content())
	assert.False(t, s.HasUnsavedChanges())
}

func TestOpenAfterPriorEditShowsEditedContent(t *testing.T) {
	st := newMockStore()
	ref := model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}
	require.NoError(t, st.PutOriginal(context.Background(), ref, "original words"))
	require.NoError(t, st.SaveEdited(context.Background(), ref, "edited words"))

	s, err := Open(context.Background(), st, ref, nil)
	require.NoError(t, err)

	assert.Equal(t, "edited words", s.Content())
	assert.Equal(t, "original words", s.Original())
	assert.False(t, s.HasUnsavedChanges(), "persisted edits are not unsaved changes")
}

func TestContentMutationEntersEditing(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	s.SetContent("Section Three of the plat")
	assert.Equal(t, StateEditing, s.State())
	assert.True(t, s.HasUnsavedChanges())

	// Typing the text back to the baseline clears the dirty flag.
	s.SetContent("Section Two of the plat")
	assert.False(t, s.HasUnsavedChanges())
}

func TestSaveAdvancesBaselineNotOriginal(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	s.SetContent("Section Three of the plat")
	require.NoError(t, s.Save(context.Background()))

	assert.Equal(t, StateSaved, s.State())
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, "Section Two of the plat", s.Original())

	head, err := st.MaterializedHeadCopy(context.Background(), s.Ref())
	require.NoError(t, err)
	assert.Equal(t, "Section Three of the plat", head)
}

func TestSaveFailureSurfacesAndKeepsContent(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)
	st.failSave = true

	s.SetContent("precious edit")
	err := s.Save(context.Background())

	var perr *store.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "precious edit", s.Content())
	assert.True(t, s.HasUnsavedChanges())
}

func TestWordUnlockGating(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	gen := s.Generation()
	require.True(t, s.ApplyAlignment(gen, model.AlignmentResult{Words: []model.WordScore{
		{Position: 0, Word: "Section", Confidence: 1.0, Level: model.ConfidenceHigh},
		{Position: 1, Word: "Two", Confidence: 0.6, Level: model.ConfidenceMedium,
			Alternatives: []model.Alternative{{Word: "Too", SourceSlot: 1}}},
		{Position: 2, Word: "of", Confidence: 1.0, Level: model.ConfidenceHigh,
			Alternatives: []model.Alternative{{Word: "on", SourceSlot: 2}}},
	}}))

	// High confidence, no alternatives: directly editable.
	assert.True(t, s.Editable(0))
	require.NoError(t, s.EditWord(0, "Lot"))

	// Below high confidence: locked until unlocked.
	assert.False(t, s.Editable(1))
	assert.ErrorIs(t, s.EditWord(1, "Three"), ErrWordLocked)
	s.Unlock(1)
	require.NoError(t, s.EditWord(1, "Three"))

	// High confidence but carrying an alternative: still locked.
	assert.False(t, s.Editable(2))
}

func TestAcceptAlternativeImpliesUnlock(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	gen := s.Generation()
	require.True(t, s.ApplyAlignment(gen, model.AlignmentResult{Words: []model.WordScore{
		{Position: 1, Word: "Two", Confidence: 0.6, Level: model.ConfidenceMedium,
			Alternatives: []model.Alternative{{Word: "Too", SourceSlot: 1}}},
	}}))

	require.NoError(t, s.AcceptAlternative(1, "Too"))
	assert.Equal(t, "Section Too of the plat", s.Content())
	assert.True(t, s.IsUnlocked(1))
}

func TestEditWordOutOfRange(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)
	assert.ErrorIs(t, s.EditWord(99, "x"), ErrNoSuchWord)
}

func TestRevertRequiresConfirmationForUnsavedChanges(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	s.SetContent("dirty")
	err := s.Revert(context.Background(), false, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, "dirty", s.Content())

	require.NoError(t, s.Revert(context.Background(), false, true))
	assert.Equal(t, "Section Two of the plat", s.Content())
	assert.Equal(t, StateReverted, s.State())
}

func TestRevertRequiresConfirmationForPriorSavedEdits(t *testing.T) {
	st := newMockStore()
	ref := model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}
	require.NoError(t, st.PutOriginal(context.Background(), ref, "original"))
	require.NoError(t, st.SaveEdited(context.Background(), ref, "edited by a previous session"))

	// This session never touched anything, but a saved v2 differing from
	// v1 still demands confirmation.
	s, err := Open(context.Background(), st, ref, nil)
	require.NoError(t, err)
	assert.False(t, s.HasUnsavedChanges())

	err = s.Revert(context.Background(), true, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	require.NoError(t, s.Revert(context.Background(), true, true))
	assert.Equal(t, "original", s.Content())
}

func TestRevertWithoutEditsNeedsNoConfirmation(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	needs, err := s.NeedsRevertConfirmation(context.Background())
	require.NoError(t, err)
	assert.False(t, needs)

	require.NoError(t, s.Revert(context.Background(), false, false))
}

func TestRevertFailureLeavesDisplayedContentUntouched(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)
	s.SetContent("half-finished edit")
	st.failRevert = true

	err := s.Revert(context.Background(), true, true)
	var perr *store.PersistenceError
	require.ErrorAs(t, err, &perr)

	assert.Equal(t, "half-finished edit", s.Content())
	assert.Equal(t, StateEditing, s.State())
	assert.True(t, s.HasUnsavedChanges())
}

func TestRevertClearsUnlockStateAndNotifies(t *testing.T) {
	st := newMockStore()
	notifier := &recordingNotifier{}
	s := openTestSession(t, st, notifier)

	s.Unlock(3)
	s.SetContent("edited")
	require.NoError(t, s.Revert(context.Background(), true, true))

	assert.False(t, s.IsUnlocked(3))
	require.Len(t, notifier.seen, 1)
	assert.Equal(t, s.Ref(), notifier.seen[0])
}

func TestStaleAlignmentResultDiscarded(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	gen := s.Generation()
	s.Close() // user navigated away; generation moves on

	applied := s.ApplyAlignment(gen, model.AlignmentResult{Words: []model.WordScore{
		{Position: 0, Word: "stale", Confidence: 0.1, Level: model.ConfidenceLow},
	}})
	assert.False(t, applied)
	assert.Nil(t, s.Words())
}

func TestRevertBumpsGeneration(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)

	gen := s.Generation()
	require.NoError(t, s.Revert(context.Background(), false, false))

	// An alignment issued against the pre-revert content must not land.
	assert.False(t, s.ApplyAlignment(gen, model.AlignmentResult{}))
}

func TestEditWordFormattedPreservesDecoration(t *testing.T) {
	st := newMockStore()
	ref := model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}
	require.NoError(t, st.PutOriginal(context.Background(), ref, "N. 45°30' to the NORTH corner"))

	s, err := Open(context.Background(), st, ref, nil)
	require.NoError(t, err)

	// The degree value changes; the minute suffix survives.
	require.NoError(t, s.EditWordFormatted(1, "50"))
	assert.Equal(t, "N. 50°30' to the NORTH corner", s.Content())

	// Casing of the original token is reapplied to the replacement.
	require.NoError(t, s.EditWordFormatted(4, "south"))
	assert.Equal(t, "N. 50°30' to the SOUTH corner", s.Content())

	// The bearing keeps its period and upper case.
	require.NoError(t, s.EditWordFormatted(0, "s"))
	assert.Equal(t, "S. 50°30' to the SOUTH corner", s.Content())
}

func TestEditWordFormattedRespectsLock(t *testing.T) {
	st := newMockStore()
	s := openTestSession(t, st, nil)
	require.True(t, s.ApplyAlignment(s.Generation(), model.AlignmentResult{Words: []model.WordScore{
		{Position: 1, Word: "Two", Confidence: 0.4, Level: model.ConfidenceLow},
	}}))

	assert.ErrorIs(t, s.EditWordFormatted(1, "three"), ErrWordLocked)
	s.Unlock(1)
	require.NoError(t, s.EditWordFormatted(1, "three"))
	assert.Equal(t, "Section Three of the plat", s.Content())
}
