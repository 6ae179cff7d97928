package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
)

// FileStore keeps each slot's versions as JSON documents under a storage
// root:
//
//	<root>/<dossierID>/<transcriptionID>/raw/<tid>_v1.json
//	<root>/<dossierID>/<transcriptionID>/raw/<tid>_v2.json   (optional)
//	<root>/<dossierID>/<transcriptionID>/raw/head.json
//	<root>/<dossierID>/<transcriptionID>/<tid>.json          (pointer mirror)
//
// Writes go through a temp file + rename so a version file is either fully
// the old content or fully the new one. Mutations on one slot are serialized
// by a per-slot mutex; independent slots proceed concurrently.
type FileStore struct {
	root string
	log  *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type versionDoc struct {
	Text    string    `json:"text"`
	SavedAt time.Time `json:"saved_at"`
}

type headDoc struct {
	Raw struct {
		Head Version `json:"head"`
	} `json:"raw"`
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &FileStore{
		root:  root,
		log:   logrus.WithField("component", "store"),
		locks: map[string]*sync.Mutex{},
	}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) slotLock(ref model.SlotRef) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ref.String()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FileStore) rawDir(ref model.SlotRef) string {
	return filepath.Join(s.root, ref.DossierID, ref.TranscriptionID, "raw")
}

func (s *FileStore) versionPath(ref model.SlotRef, which Version) string {
	return filepath.Join(s.rawDir(ref), fmt.Sprintf("%s_%s.json", ref.TranscriptionID, which))
}

func (s *FileStore) headPath(ref model.SlotRef) string {
	return filepath.Join(s.rawDir(ref), "head.json")
}

func (s *FileStore) mirrorPath(ref model.SlotRef) string {
	return filepath.Join(s.root, ref.DossierID, ref.TranscriptionID, ref.TranscriptionID+".json")
}

func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
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

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *FileStore) PutOriginal(ctx context.Context, ref model.SlotRef, text string) error {
	lock := s.slotLock(ref)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.versionPath(ref, V1)); err == nil {
		return ErrExists
	}
	doc := versionDoc{Text: text, SavedAt: time.Now().UTC()}
	if err := writeJSONAtomic(s.versionPath(ref, V1), doc); err != nil {
		return &PersistenceError{Op: "put original", Ref: ref, Err: err}
	}
	if err := s.writeHead(ref, V1); err != nil {
		return err
	}
	s.refreshMirror(ref, text)
	return nil
}

func (s *FileStore) GetVersion(ctx context.Context, ref model.SlotRef, which Version) (string, error) {
	switch which {
	case Head:
		head, err := s.Head(ctx, ref)
		if err != nil {
			return "", err
		}
		return s.readVersion(ref, head, false)
	case V1:
		return s.readVersion(ref, V1, false)
	case V2:
		// Explicit reads bypass the pointer; a missing v2 falls back to
		// v1, never to HEAD.
		return s.readVersion(ref, V2, true)
	default:
		return "", fmt.Errorf("store: unknown version %q", which)
	}
}

func (s *FileStore) readVersion(ref model.SlotRef, which Version, fallbackV1 bool) (string, error) {
	var doc versionDoc
	err := readJSON(s.versionPath(ref, which), &doc)
	if errors.Is(err, os.ErrNotExist) {
		if fallbackV1 {
			return s.readVersion(ref, V1, false)
		}
		return "", ErrNotFound
	}
	if err != nil {
		return "", &PersistenceError{Op: "read " + string(which), Ref: ref, Err: err}
	}
	return doc.Text, nil
}

func (s *FileStore) Head(ctx context.Context, ref model.SlotRef) (Version, error) {
	var h headDoc
	err := readJSON(s.headPath(ref), &h)
	if errors.Is(err, os.ErrNotExist) {
		// A seeded slot always has a head file; nothing at all means the
		// slot does not exist.
		if _, statErr := os.Stat(s.versionPath(ref, V1)); statErr == nil {
			return V1, nil
		}
		return "", ErrNotFound
	}
	if err != nil {
		return "", &PersistenceError{Op: "read head", Ref: ref, Err: err}
	}
	if h.Raw.Head != V1 && h.Raw.Head != V2 {
		return "", &PersistenceError{Op: "read head", Ref: ref, Err: fmt.Errorf("corrupt pointer %q", h.Raw.Head)}
	}
	return h.Raw.Head, nil
}

func (s *FileStore) writeHead(ref model.SlotRef, which Version) error {
	var h headDoc
	h.Raw.Head = which
	if err := writeJSONAtomic(s.headPath(ref), h); err != nil {
		return &PersistenceError{Op: "write head", Ref: ref, Err: err}
	}
	return nil
}

func (s *FileStore) SaveEdited(ctx context.Context, ref model.SlotRef, text string) error {
	lock := s.slotLock(ref)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.versionPath(ref, V1)); err != nil {
		return ErrNotFound
	}
	// Write v2 first; the pointer only advances once the content is
	// durable, so a failed write leaves HEAD where it was.
	doc := versionDoc{Text: text, SavedAt: time.Now().UTC()}
	if err := writeJSONAtomic(s.versionPath(ref, V2), doc); err != nil {
		return &PersistenceError{Op: "write v2", Ref: ref, Err: err}
	}
	if err := s.writeHead(ref, V2); err != nil {
		return err
	}
	s.refreshMirror(ref, text)
	return nil
}

func (s *FileStore) RevertToOriginal(ctx context.Context, ref model.SlotRef, purge bool) error {
	lock := s.slotLock(ref)
	lock.Lock()
	defer lock.Unlock()

	original, err := s.readVersion(ref, V1, false)
	if err != nil {
		return err
	}
	// Flip first, delete after: a reader must never observe HEAD pointing
	// at a file that is already gone.
	if err := s.writeHead(ref, V1); err != nil {
		return err
	}
	if purge {
		if err := os.Remove(s.versionPath(ref, V2)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithField("slot", ref.String()).WithError(err).Warn("failed to purge v2 after revert")
		}
	}
	s.refreshMirror(ref, original)
	return nil
}

func (s *FileStore) MaterializedHeadCopy(ctx context.Context, ref model.SlotRef) (string, error) {
	// Read-through: resolve the pointer at call time instead of trusting
	// the mirror file, so the copy can never drift behind a write.
	return s.GetVersion(ctx, ref, Head)
}

// refreshMirror rewrites the convenience pointer copy. The mirror is for
// external tooling that wants "the document" as a single file; readers inside
// this module resolve the pointer directly, so a failed refresh is logged and
// not fatal.
func (s *FileStore) refreshMirror(ref model.SlotRef, text string) {
	doc := versionDoc{Text: text, SavedAt: time.Now().UTC()}
	if err := writeJSONAtomic(s.mirrorPath(ref), doc); err != nil {
		s.log.WithField("slot", ref.String()).WithError(err).Warn("failed to refresh head mirror")
	}
}
