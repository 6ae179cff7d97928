package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/align"
	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/core/session"
	"github.com/agenthands/scrivener/internal/dossier"
	"github.com/agenthands/scrivener/internal/preprocess"
	"github.com/agenthands/scrivener/internal/store"
	"github.com/agenthands/scrivener/internal/transcribe"
)

// ErrNoEngines means no transcription providers are configured; submissions
// are rejected with a clear reason instead of producing empty groups.
var ErrNoEngines = errors.New("core: no transcription engines configured")

// Scrivener is the orchestrator tying the subsystems together: transcription
// fan-out, version store seeding, alignment, dossier bookkeeping and the
// event bus.
type Scrivener struct {
	Store    store.VersionStore
	Runner   *transcribe.Runner
	Align    *align.Engine
	Dossiers *dossier.Service
	Events   *dossier.Bus

	MaxImageDimension int
	log               *logrus.Entry
}

func NewScrivener(st store.VersionStore, runner *transcribe.Runner, dossiers *dossier.Service, events *dossier.Bus, maxImageDimension int) *Scrivener {
	return &Scrivener{
		Store:             st,
		Runner:            runner,
		Align:             align.NewEngine(st),
		Dossiers:          dossiers,
		Events:            events,
		MaxImageDimension: maxImageDimension,
		log:               logrus.WithField("component", "core"),
	}
}

// TranscribeImage runs the full intake path: normalize the image, fan it out
// to every engine, seed each successful slot's v1 in the version store,
// persist the group manifest and associate the group's canonical slot with
// the dossier.
func (s *Scrivener) TranscribeImage(ctx context.Context, dossierID string, image []byte, hint string) (model.RedundancyGroup, error) {
	if s.Runner.EngineCount() == 0 {
		return model.RedundancyGroup{}, ErrNoEngines
	}

	processed, err := preprocess.Normalize(image, s.MaxImageDimension)
	if err != nil {
		return model.RedundancyGroup{}, fmt.Errorf("preprocess image: %w", err)
	}

	slots := s.Runner.Run(ctx, dossierID, transcribe.Request{
		Image: processed.Data,
		MIME:  processed.MIME,
		Hint:  hint,
	})

	group := model.RedundancyGroup{
		GroupID:   uuid.New().String(),
		DossierID: dossierID,
		Slots:     slots,
	}

	for _, slot := range slots {
		if !slot.Success {
			continue
		}
		if err := s.Store.PutOriginal(ctx, slot.Ref(), slot.RawText); err != nil {
			// One slot's storage failure degrades that slot only.
			s.log.WithField("slot", slot.Ref().String()).WithError(err).Warn("failed to seed original")
			s.markFailed(&group, slot.SlotIndex, err)
		}
	}

	if err := s.Dossiers.SaveGroup(ctx, group); err != nil {
		return model.RedundancyGroup{}, fmt.Errorf("persist group manifest: %w", err)
	}

	if canonical, ok := canonicalSlot(group); ok {
		if _, err := s.Dossiers.AddAssociation(ctx, dossierID, canonical.TranscriptionID); err != nil {
			s.log.WithError(err).Warn("failed to associate transcription with dossier")
		}
		s.Events.Publish(dossier.Event{
			Type:            dossier.EventGroupCreated,
			DossierID:       dossierID,
			TranscriptionID: canonical.TranscriptionID,
		})
	}

	return group, nil
}

func (s *Scrivener) markFailed(group *model.RedundancyGroup, slotIndex int, err error) {
	for i := range group.Slots {
		if group.Slots[i].SlotIndex == slotIndex {
			group.Slots[i].Success = false
			group.Slots[i].Error = err.Error()
			return
		}
	}
}

// canonicalSlot is the slot users navigate to: the first successful one.
func canonicalSlot(group model.RedundancyGroup) (model.DraftSlot, bool) {
	for _, slot := range group.Slots {
		if slot.Success {
			return slot, true
		}
	}
	return model.DraftSlot{}, false
}

// GetAlignment reconciles the redundancy group containing the transcription.
// Slot texts are HEAD-resolved inside the engine at call time, never reused
// from the manifest or any earlier fetch.
func (s *Scrivener) GetAlignment(ctx context.Context, dossierID, transcriptionID string) (model.AlignmentResult, error) {
	group, err := s.Dossiers.GroupFor(dossierID, transcriptionID)
	if err != nil {
		return model.AlignmentResult{}, err
	}
	return s.Align.Align(ctx, align.Request{Group: group.Slots, ReferenceSlot: -1})
}

// SaveEdit persists an edited draft as v2 and moves HEAD.
func (s *Scrivener) SaveEdit(ctx context.Context, ref model.SlotRef, text string) error {
	if err := s.Store.SaveEdited(ctx, ref, text); err != nil {
		return err
	}
	s.Events.DraftSaved(ref)
	return nil
}

// Revert restores the original version and notifies exactly the affected
// document's subscribers.
func (s *Scrivener) Revert(ctx context.Context, ref model.SlotRef, purge bool) error {
	if err := s.Store.RevertToOriginal(ctx, ref, purge); err != nil {
		return err
	}
	s.Events.DraftReverted(ref)
	return nil
}

// OpenSession starts an editing session for one draft, wired to the event
// bus for scoped revert notifications.
func (s *Scrivener) OpenSession(ctx context.Context, ref model.SlotRef) (*session.Session, error) {
	return session.Open(ctx, s.Store, ref, s.Events)
}

// StitchedView assembles the dossier's documents in association order,
// HEAD-resolved at call time.
func (s *Scrivener) StitchedView(ctx context.Context, dossierID string) ([]dossier.Section, error) {
	return s.Dossiers.StitchedView(ctx, dossierID)
}

// ExportDossier renders the stitched view in the requested format.
func (s *Scrivener) ExportDossier(ctx context.Context, dossierID, format string) ([]byte, string, error) {
	return s.Dossiers.Export(ctx, dossierID, format)
}
