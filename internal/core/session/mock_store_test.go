package session

import (
	"context"
	"errors"
	"sync"

	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/store"
)

// mockStore implements store.VersionStore in memory with switchable write
// failures.
type mockStore struct {
	mu         sync.Mutex
	v1         map[model.SlotRef]string
	v2         map[model.SlotRef]string
	head       map[model.SlotRef]store.Version
	failSave   bool
	failRevert bool
}

func newMockStore() *mockStore {
	return &mockStore{
		v1:   map[model.SlotRef]string{},
		v2:   map[model.SlotRef]string{},
		head: map[model.SlotRef]store.Version{},
	}
}

func (m *mockStore) PutOriginal(ctx context.Context, ref model.SlotRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.v1[ref]; ok {
		return store.ErrExists
	}
	m.v1[ref] = text
	m.head[ref] = store.V1
	return nil
}

func (m *mockStore) GetVersion(ctx context.Context, ref model.SlotRef, which store.Version) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch which {
	case store.Head:
		if m.head[ref] == store.V2 {
			return m.v2[ref], nil
		}
		fallthrough
	case store.V1:
		text, ok := m.v1[ref]
		if !ok {
			return "", store.ErrNotFound
		}
		return text, nil
	case store.V2:
		if text, ok := m.v2[ref]; ok {
			return text, nil
		}
		text, ok := m.v1[ref]
		if !ok {
			return "", store.ErrNotFound
		}
		return text, nil
	}
	return "", errors.New("unknown version")
}

func (m *mockStore) SaveEdited(ctx context.Context, ref model.SlotRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return &store.PersistenceError{Op: "write v2", Ref: ref, Err: errors.New("disk full")}
	}
	if _, ok := m.v1[ref]; !ok {
		return store.ErrNotFound
	}
	m.v2[ref] = text
	m.head[ref] = store.V2
	return nil
}

func (m *mockStore) RevertToOriginal(ctx context.Context, ref model.SlotRef, purge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRevert {
		return &store.PersistenceError{Op: "write head", Ref: ref, Err: errors.New("backend unavailable")}
	}
	if _, ok := m.v1[ref]; !ok {
		return store.ErrNotFound
	}
	m.head[ref] = store.V1
	if purge {
		delete(m.v2, ref)
	}
	return nil
}

func (m *mockStore) MaterializedHeadCopy(ctx context.Context, ref model.SlotRef) (string, error) {
	return m.GetVersion(ctx, ref, store.Head)
}

func (m *mockStore) Head(ctx context.Context, ref model.SlotRef) (store.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.head[ref]
	if !ok {
		return "", store.ErrNotFound
	}
	return h, nil
}

// recordingNotifier captures revert notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	seen []model.SlotRef
}

func (n *recordingNotifier) DraftReverted(ref model.SlotRef) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, ref)
}
