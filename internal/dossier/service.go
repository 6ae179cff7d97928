package dossier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/graph"
	"github.com/agenthands/scrivener/internal/store"
)

var (
	ErrDossierNotFound     = errors.New("dossier: not found")
	ErrAssociationNotFound = errors.New("dossier: transcription not associated")
	ErrGroupNotFound       = errors.New("dossier: no redundancy group for transcription")
)

// Dossier groups the transcriptions of one property file.
type Dossier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Association orders a transcription within its dossier.
type Association struct {
	TranscriptionID string    `json:"transcription_id"`
	Position        int       `json:"position"`
	AddedAt         time.Time `json:"added_at"`
}

// Section is one document's contribution to the stitched dossier view, always
// HEAD-resolved at read time.
type Section struct {
	TranscriptionID string `json:"transcription_id"`
	Position        int    `json:"position"`
	Text            string `json:"text"`
}

// Service manages dossiers, their transcription associations, redundancy
// group manifests, navigation and the stitched view. JSON files under the
// storage root are canonical; the graph index, when configured, is a mirror.
type Service struct {
	root  string
	store store.VersionStore
	index *graph.Index // nil when the graph mirror is disabled
	bus   *Bus
	log   *logrus.Entry

	mu sync.Mutex
}

func NewService(root string, st store.VersionStore, index *graph.Index, bus *Bus) (*Service, error) {
	for _, dir := range []string{root, filepath.Join(root, "associations"), filepath.Join(root, "groups")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dossier dir %s: %w", dir, err)
		}
	}
	return &Service{
		root:  root,
		store: st,
		index: index,
		bus:   bus,
		log:   logrus.WithField("component", "dossier"),
	}, nil
}

func (s *Service) dossiersPath() string {
	return filepath.Join(s.root, "dossiers.json")
}

func (s *Service) associationsPath(dossierID string) string {
	return filepath.Join(s.root, "associations", dossierID+".json")
}

func (s *Service) groupsPath(dossierID string) string {
	return filepath.Join(s.root, "groups", dossierID+".json")
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Service) CreateDossier(name string) (Dossier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dossiers []Dossier
	if err := readJSONFile(s.dossiersPath(), &dossiers); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Dossier{}, err
	}

	d := Dossier{ID: uuid.New().String(), Name: name, CreatedAt: time.Now().UTC()}
	dossiers = append(dossiers, d)
	if err := writeJSONFile(s.dossiersPath(), dossiers); err != nil {
		return Dossier{}, err
	}
	s.log.WithField("dossier", d.ID).Info("created dossier")
	return d, nil
}

func (s *Service) ListDossiers() ([]Dossier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dossiers []Dossier
	if err := readJSONFile(s.dossiersPath(), &dossiers); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return dossiers, nil
}

func (s *Service) GetDossier(id string) (Dossier, error) {
	dossiers, err := s.ListDossiers()
	if err != nil {
		return Dossier{}, err
	}
	for _, d := range dossiers {
		if d.ID == id {
			return d, nil
		}
	}
	return Dossier{}, ErrDossierNotFound
}

// AddAssociation appends the transcription at the end of the dossier's
// ordering and mirrors the link to the graph index.
func (s *Service) AddAssociation(ctx context.Context, dossierID, transcriptionID string) (Association, error) {
	s.mu.Lock()
	assocs, err := s.readAssociations(dossierID)
	if err != nil {
		s.mu.Unlock()
		return Association{}, err
	}
	for _, a := range assocs {
		if a.TranscriptionID == transcriptionID {
			s.mu.Unlock()
			return a, nil // already associated; idempotent
		}
	}
	assoc := Association{TranscriptionID: transcriptionID, Position: len(assocs), AddedAt: time.Now().UTC()}
	assocs = append(assocs, assoc)
	err = writeJSONFile(s.associationsPath(dossierID), assocs)
	s.mu.Unlock()
	if err != nil {
		return Association{}, err
	}

	if s.index != nil {
		s.index.MirrorAssociation(ctx, dossierID, transcriptionID, assoc.Position)
	}
	return assoc, nil
}

func (s *Service) RemoveAssociation(ctx context.Context, dossierID, transcriptionID string) error {
	s.mu.Lock()
	assocs, err := s.readAssociations(dossierID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	kept := assocs[:0]
	found := false
	for _, a := range assocs {
		if a.TranscriptionID == transcriptionID {
			found = true
			continue
		}
		a.Position = len(kept)
		kept = append(kept, a)
	}
	if !found {
		s.mu.Unlock()
		return ErrAssociationNotFound
	}
	err = writeJSONFile(s.associationsPath(dossierID), kept)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.index != nil {
		s.index.RemoveAssociation(ctx, dossierID, transcriptionID)
	}
	return nil
}

// ReorderAssociation moves a transcription to a new position; the remaining
// entries close ranks.
func (s *Service) ReorderAssociation(ctx context.Context, dossierID, transcriptionID string, newPosition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assocs, err := s.readAssociations(dossierID)
	if err != nil {
		return err
	}
	idx := -1
	for i, a := range assocs {
		if a.TranscriptionID == transcriptionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrAssociationNotFound
	}
	if newPosition < 0 {
		newPosition = 0
	}
	if newPosition >= len(assocs) {
		newPosition = len(assocs) - 1
	}

	moved := assocs[idx]
	assocs = append(assocs[:idx], assocs[idx+1:]...)
	assocs = append(assocs[:newPosition], append([]Association{moved}, assocs[newPosition:]...)...)
	for i := range assocs {
		assocs[i].Position = i
	}
	return writeJSONFile(s.associationsPath(dossierID), assocs)
}

func (s *Service) Associations(dossierID string) ([]Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAssociations(dossierID)
}

func (s *Service) readAssociations(dossierID string) ([]Association, error) {
	var assocs []Association
	if err := readJSONFile(s.associationsPath(dossierID), &assocs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return assocs, nil
}

// Neighbors returns the transcriptions immediately before and after the given
// one in association order; empty strings at the edges.
func (s *Service) Neighbors(dossierID, transcriptionID string) (prev, next string, err error) {
	assocs, err := s.Associations(dossierID)
	if err != nil {
		return "", "", err
	}
	for i, a := range assocs {
		if a.TranscriptionID != transcriptionID {
			continue
		}
		if i > 0 {
			prev = assocs[i-1].TranscriptionID
		}
		if i < len(assocs)-1 {
			next = assocs[i+1].TranscriptionID
		}
		return prev, next, nil
	}
	return "", "", ErrAssociationNotFound
}

// SaveGroup persists a redundancy group manifest. Raw text is stripped: the
// version store owns content, the manifest only records group membership and
// per-slot outcome.
func (s *Service) SaveGroup(ctx context.Context, group model.RedundancyGroup) error {
	s.mu.Lock()
	groups, err := s.readGroups(group.DossierID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	stripped := group
	stripped.Slots = make([]model.DraftSlot, len(group.Slots))
	copy(stripped.Slots, group.Slots)
	for i := range stripped.Slots {
		stripped.Slots[i].RawText = ""
	}

	replaced := false
	for i, g := range groups {
		if g.GroupID == group.GroupID {
			groups[i] = stripped
			replaced = true
			break
		}
	}
	if !replaced {
		groups = append(groups, stripped)
	}
	err = writeJSONFile(s.groupsPath(group.DossierID), groups)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.index != nil {
		for _, slot := range group.Slots {
			s.index.MirrorProvenance(ctx, slot)
		}
	}
	return nil
}

func (s *Service) readGroups(dossierID string) ([]model.RedundancyGroup, error) {
	var groups []model.RedundancyGroup
	if err := readJSONFile(s.groupsPath(dossierID), &groups); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return groups, nil
}

// GroupFor finds the redundancy group containing a transcription.
func (s *Service) GroupFor(dossierID, transcriptionID string) (model.RedundancyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.readGroups(dossierID)
	if err != nil {
		return model.RedundancyGroup{}, err
	}
	for _, g := range groups {
		for _, slot := range g.Slots {
			if slot.TranscriptionID == transcriptionID {
				return g, nil
			}
		}
	}
	return model.RedundancyGroup{}, ErrGroupNotFound
}

// StitchedView assembles the dossier's documents in association order. Every
// section is resolved through the version store's HEAD read at call time, so
// a saved edit shows up without rebuilding anything.
func (s *Service) StitchedView(ctx context.Context, dossierID string) ([]Section, error) {
	assocs, err := s.Associations(dossierID)
	if err != nil {
		return nil, err
	}

	sections := make([]Section, 0, len(assocs))
	for _, a := range assocs {
		ref := model.SlotRef{DossierID: dossierID, TranscriptionID: a.TranscriptionID}
		text, err := s.store.MaterializedHeadCopy(ctx, ref)
		if err != nil {
			s.log.WithField("slot", ref.String()).WithError(err).Warn("skipping unreadable section")
			continue
		}
		sections = append(sections, Section{
			TranscriptionID: a.TranscriptionID,
			Position:        a.Position,
			Text:            text,
		})
	}
	return sections, nil
}
