package events

import (
	"sync"
	"sync/atomic"

	"github.com/ringnet/hazardcore/internal/models"
)

// Bus fans freshly inserted hazard records out to in-process subscribers.
// The ingest path publishes after a fresh store insert; the notification
// dispatcher is the main consumer.
type Bus struct {
	subscribers map[uint64]chan *models.HazardRecord
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan *models.HazardRecord),
	}
}

func (b *Bus) Subscribe() (uint64, <-chan *models.HazardRecord) {
	id := b.nextID.Add(1)
	ch := make(chan *models.HazardRecord, 100) // buffer for one poll's worth of records

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(h *models.HazardRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- h:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing consumers to exit gracefully
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
