package dossier

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
)

type EventType string

const (
	EventDraftSaved    EventType = "draft.saved"
	EventDraftReverted EventType = "draft.reverted"
	EventGroupCreated  EventType = "group.created"
)

// Event is always scoped to a specific (dossier, transcription) pair. There
// is deliberately no "refresh everything" event: a revert on one document
// must only refresh the view showing that document.
type Event struct {
	Type            EventType `json:"type"`
	DossierID       string    `json:"dossier_id"`
	TranscriptionID string    `json:"transcription_id"`
	At              time.Time `json:"at"`
}

// Scope selects which events a subscriber receives. An empty field matches
// any value; subscribers interested in one document set both.
type Scope struct {
	DossierID       string
	TranscriptionID string
}

func (s Scope) matches(e Event) bool {
	if s.DossierID != "" && s.DossierID != e.DossierID {
		return false
	}
	if s.TranscriptionID != "" && s.TranscriptionID != e.TranscriptionID {
		return false
	}
	return true
}

type subscriber struct {
	scope Scope
	ch    chan Event
}

// Bus is the in-process pub/sub used for cross-component refresh. Delivery is
// non-blocking: a subscriber that stops draining loses events rather than
// stalling publishers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
	log  *logrus.Entry
}

func NewBus() *Bus {
	return &Bus{
		subs: map[int]*subscriber{},
		log:  logrus.WithField("component", "events"),
	}
}

// Subscribe registers for events matching the scope. The returned cancel
// function closes the channel.
func (b *Bus) Subscribe(scope Scope) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{scope: scope, ch: make(chan Event, 16)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !sub.scope.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.log.WithField("type", string(e.Type)).Warn("dropping event for slow subscriber")
		}
	}
}

// DraftReverted lets the bus act as a session notifier: a successful revert
// publishes an event scoped to exactly the affected document.
func (b *Bus) DraftReverted(ref model.SlotRef) {
	b.Publish(Event{
		Type:            EventDraftReverted,
		DossierID:       ref.DossierID,
		TranscriptionID: ref.TranscriptionID,
	})
}

// DraftSaved mirrors DraftReverted for saves.
func (b *Bus) DraftSaved(ref model.SlotRef) {
	b.Publish(Event{
		Type:            EventDraftSaved,
		DossierID:       ref.DossierID,
		TranscriptionID: ref.TranscriptionID,
	})
}
