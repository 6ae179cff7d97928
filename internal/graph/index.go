package graph

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
)

// Index mirrors dossier associations and engine provenance into the graph for
// reverse lookups. Mirror failures are logged and never fatal: the JSON store
// stays canonical.
type Index struct {
	driver Driver
	log    *logrus.Entry
}

func NewIndex(driver Driver) *Index {
	return &Index{
		driver: driver,
		log:    logrus.WithField("component", "graph-index"),
	}
}

func (i *Index) BuildIndices(ctx context.Context) error {
	return i.driver.BuildIndices(ctx)
}

func (i *Index) Close(ctx context.Context) error {
	return i.driver.Close(ctx)
}

// MirrorAssociation records (:Dossier)-[:CONTAINS {position}]->(:Transcription).
func (i *Index) MirrorAssociation(ctx context.Context, dossierID, transcriptionID string, position int) {
	_, err := i.driver.ExecuteQuery(ctx, MergeContainsQuery, map[string]interface{}{
		"dossier_id":       dossierID,
		"transcription_id": transcriptionID,
		"position":         position,
	})
	if err != nil {
		i.log.WithError(err).WithField("transcription", transcriptionID).Warn("failed to mirror association")
	}
}

func (i *Index) RemoveAssociation(ctx context.Context, dossierID, transcriptionID string) {
	_, err := i.driver.ExecuteQuery(ctx, RemoveContainsQuery, map[string]interface{}{
		"dossier_id":       dossierID,
		"transcription_id": transcriptionID,
	})
	if err != nil {
		i.log.WithError(err).WithField("transcription", transcriptionID).Warn("failed to remove mirrored association")
	}
}

// MirrorProvenance records which engine produced which slot of a group.
func (i *Index) MirrorProvenance(ctx context.Context, slot model.DraftSlot) {
	_, err := i.driver.ExecuteQuery(ctx, MergeProducedByQuery, map[string]interface{}{
		"transcription_id": slot.TranscriptionID,
		"engine":           slot.Engine,
		"slot":             slot.SlotIndex,
	})
	if err != nil {
		i.log.WithError(err).WithField("transcription", slot.TranscriptionID).Warn("failed to mirror provenance")
	}
}

// DossiersContaining answers the reverse lookup "which dossiers hold this
// transcription".
func (i *Index) DossiersContaining(ctx context.Context, transcriptionID string) ([]string, error) {
	result, err := i.driver.ExecuteQuery(ctx, DossiersContainingQuery, map[string]interface{}{
		"transcription_id": transcriptionID,
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, record := range result.Records {
		if id, ok := record.Get("dossier_id"); ok {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}
	return ids, nil
}

// Provenance lists the engines that produced a transcription's group, in slot
// order.
func (i *Index) Provenance(ctx context.Context, transcriptionID string) ([]string, error) {
	result, err := i.driver.ExecuteQuery(ctx, ProvenanceQuery, map[string]interface{}{
		"transcription_id": transcriptionID,
	})
	if err != nil {
		return nil, err
	}
	var engines []string
	for _, record := range result.Records {
		if name, ok := record.Get("engine"); ok {
			if s, ok := name.(string); ok {
				engines = append(engines, s)
			}
		}
	}
	return engines, nil
}
