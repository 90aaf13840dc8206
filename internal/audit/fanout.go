package audit

import (
	"sync"

	"github.com/tkingovr/roochguard/api"
)

const subscriberBuffer = 100

// fanout delivers published records to every live subscriber. A subscriber
// whose buffer is full misses the record rather than blocking writers.
type fanout struct {
	mu   sync.RWMutex
	subs map[int]chan *api.AuditRecord
	next int
}

func (f *fanout) subscribe() (<-chan *api.AuditRecord, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]chan *api.AuditRecord)
	}

	ch := make(chan *api.AuditRecord, subscriberBuffer)
	id := f.next
	f.next++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

func (f *fanout) publish(r *api.AuditRecord) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
