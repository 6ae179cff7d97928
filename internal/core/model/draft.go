package model

import "fmt"

// SlotRef identifies one versioned transcription record inside a dossier.
// Every store operation is keyed by this pair; there are no cross-transcription
// transactions.
type SlotRef struct {
	DossierID       string `json:"dossier_id"`
	TranscriptionID string `json:"transcription_id"`
}

func (r SlotRef) String() string {
	return fmt.Sprintf("%s/%s", r.DossierID, r.TranscriptionID)
}

// DraftSlot is one independent transcription attempt for a document, as
// produced by a transcription engine. Immutable once produced; SlotIndex is
// stable insertion order within the redundancy group.
type DraftSlot struct {
	DossierID       string `json:"dossier_id"`
	TranscriptionID string `json:"transcription_id"`
	SlotIndex       int    `json:"slot_index"`
	Engine          string `json:"engine,omitempty"`
	Success         bool   `json:"success"`
	RawText         string `json:"raw_text,omitempty"`
	TokenCount      int    `json:"token_count"`
	Error           string `json:"error,omitempty"`
}

func (s DraftSlot) Ref() SlotRef {
	return SlotRef{DossierID: s.DossierID, TranscriptionID: s.TranscriptionID}
}

// RedundancyGroup is the set of slots produced for one logical document.
// Slot raw text is never read from here once the slots are persisted; readers
// resolve each slot's HEAD text through the version store at call time.
type RedundancyGroup struct {
	GroupID   string      `json:"group_id"`
	DossierID string      `json:"dossier_id"`
	Slots     []DraftSlot `json:"slots"`
}
