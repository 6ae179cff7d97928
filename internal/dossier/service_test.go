package dossier

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.FileStore) {
	t.Helper()
	root := t.TempDir()
	st, err := store.NewFileStore(root)
	require.NoError(t, err)
	svc, err := NewService(root, st, nil, NewBus())
	require.NoError(t, err)
	return svc, st
}

func TestCreateAndListDossiers(t *testing.T) {
	svc, _ := newTestService(t)

	d1, err := svc.CreateDossier("Smith parcel")
	require.NoError(t, err)
	d2, err := svc.CreateDossier("Jones easement")
	require.NoError(t, err)

	dossiers, err := svc.ListDossiers()
	require.NoError(t, err)
	require.Len(t, dossiers, 2)
	assert.Equal(t, d1.ID, dossiers[0].ID)
	assert.Equal(t, d2.ID, dossiers[1].ID)

	got, err := svc.GetDossier(d1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith parcel", got.Name)

	_, err = svc.GetDossier("missing")
	assert.ErrorIs(t, err, ErrDossierNotFound)
}

func TestAssociationOrderingAndNeighbors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tid := range []string{"t1", "t2", "t3"} {
		_, err := svc.AddAssociation(ctx, "d1", tid)
		require.NoError(t, err)
	}

	assocs, err := svc.Associations("d1")
	require.NoError(t, err)
	require.Len(t, assocs, 3)
	for i, a := range assocs {
		assert.Equal(t, i, a.Position)
	}

	prev, next, err := svc.Neighbors("d1", "t2")
	require.NoError(t, err)
	assert.Equal(t, "t1", prev)
	assert.Equal(t, "t3", next)

	prev, next, err = svc.Neighbors("d1", "t1")
	require.NoError(t, err)
	assert.Empty(t, prev)
	assert.Equal(t, "t2", next)

	_, _, err = svc.Neighbors("d1", "nope")
	assert.ErrorIs(t, err, ErrAssociationNotFound)
}

func TestAddAssociationIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.AddAssociation(ctx, "d1", "t1")
	require.NoError(t, err)
	again, err := svc.AddAssociation(ctx, "d1", "t1")
	require.NoError(t, err)
	assert.Equal(t, first.Position, again.Position)

	assocs, err := svc.Associations("d1")
	require.NoError(t, err)
	assert.Len(t, assocs, 1)
}

func TestRemoveAssociationRenumbers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, tid := range []string{"t1", "t2", "t3"} {
		_, err := svc.AddAssociation(ctx, "d1", tid)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RemoveAssociation(ctx, "d1", "t2"))

	assocs, err := svc.Associations("d1")
	require.NoError(t, err)
	require.Len(t, assocs, 2)
	assert.Equal(t, "t1", assocs[0].TranscriptionID)
	assert.Equal(t, 0, assocs[0].Position)
	assert.Equal(t, "t3", assocs[1].TranscriptionID)
	assert.Equal(t, 1, assocs[1].Position)

	assert.ErrorIs(t, svc.RemoveAssociation(ctx, "d1", "t2"), ErrAssociationNotFound)
}

func TestReorderAssociation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, tid := range []string{"t1", "t2", "t3"} {
		_, err := svc.AddAssociation(ctx, "d1", tid)
		require.NoError(t, err)
	}

	require.NoError(t, svc.ReorderAssociation(ctx, "d1", "t3", 0))

	assocs, err := svc.Associations("d1")
	require.NoError(t, err)
	assert.Equal(t, "t3", assocs[0].TranscriptionID)
	assert.Equal(t, "t1", assocs[1].TranscriptionID)
	assert.Equal(t, "t2", assocs[2].TranscriptionID)
	for i, a := range assocs {
		assert.Equal(t, i, a.Position)
	}
}

func TestGroupManifestRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	group := model.RedundancyGroup{
		GroupID:   "g1",
		DossierID: "d1",
		Slots: []model.DraftSlot{
			{DossierID: "d1", TranscriptionID: "t1", SlotIndex: 0, Success: true, RawText: "secret raw"},
			{DossierID: "d1", TranscriptionID: "t2", SlotIndex: 1, Success: false, Error: "timeout"},
		},
	}
	require.NoError(t, svc.SaveGroup(ctx, group))

	got, err := svc.GroupFor("d1", "t2")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GroupID)
	require.Len(t, got.Slots, 2)
	// The manifest never carries content; the version store owns it.
	assert.Empty(t, got.Slots[0].RawText)
	assert.Equal(t, "timeout", got.Slots[1].Error)

	_, err = svc.GroupFor("d1", "unknown")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestStitchedViewReflectsHead(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.PutOriginal(ctx, model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}, "page one"))
	require.NoError(t, st.PutOriginal(ctx, model.SlotRef{DossierID: "d1", TranscriptionID: "t2"}, "page two"))
	_, err := svc.AddAssociation(ctx, "d1", "t1")
	require.NoError(t, err)
	_, err = svc.AddAssociation(ctx, "d1", "t2")
	require.NoError(t, err)

	sections, err := svc.StitchedView(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "page one", sections[0].Text)

	// An edit moves HEAD; the stitched view follows without any rebuild.
	require.NoError(t, st.SaveEdited(ctx, model.SlotRef{DossierID: "d1", TranscriptionID: "t1"}, "page one, corrected"))
	sections, err = svc.StitchedView(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "page one, corrected", sections[0].Text)
	assert.Equal(t, "page two", sections[1].Text)
}

func TestExportFormats(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDossier("Smith parcel")
	require.NoError(t, err)
	require.NoError(t, st.PutOriginal(ctx, model.SlotRef{DossierID: d.ID, TranscriptionID: "t1"}, "Section Two of the plat"))
	_, err = svc.AddAssociation(ctx, d.ID, "t1")
	require.NoError(t, err)

	text, ctype, err := svc.Export(ctx, d.ID, "text")
	require.NoError(t, err)
	assert.Contains(t, ctype, "text/plain")
	assert.Equal(t, "Section Two of the plat", string(text))

	jsonOut, ctype, err := svc.Export(ctx, d.ID, "json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", ctype)
	assert.Contains(t, string(jsonOut), "Smith parcel")

	md, _, err := svc.Export(ctx, d.ID, "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Smith parcel"))

	html, ctype, err := svc.Export(ctx, d.ID, "html")
	require.NoError(t, err)
	assert.Contains(t, ctype, "text/html")
	assert.Contains(t, string(html), "<h1>")

	_, _, err = svc.Export(ctx, d.ID, "pdf")
	assert.Error(t, err)
}
