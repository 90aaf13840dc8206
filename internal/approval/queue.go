package approval

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue manages pending approval requests.
type Queue struct {
	mu       sync.RWMutex
	requests map[string]*Request
	timeout  time.Duration

	// decided holds resolved request ids in decision order. Once it grows
	// past historyLimit the oldest decided requests are forgotten.
	decided      []string
	historyLimit int

	// Subscribers for real-time updates
	subMu   sync.RWMutex
	subs    map[int]chan Request
	nextSub int
}

// defaultHistoryLimit bounds how many decided requests are kept for the
// dashboard history.
const defaultHistoryLimit = 1000

// NewQueue creates a new approval queue with the given timeout.
func NewQueue(timeout time.Duration) *Queue {
	return &Queue{
		requests:     make(map[string]*Request),
		timeout:      timeout,
		historyLimit: defaultHistoryLimit,
		subs:         make(map[int]chan Request),
	}
}

// Timeout returns how long Submit waits for a decision.
func (q *Queue) Timeout() time.Duration { return q.timeout }

// Submit creates a new approval request and blocks until it is resolved,
// times out, or ctx is done. A timeout is not an error: it is reported as
// StatusTimedOut.
func (q *Queue) Submit(ctx context.Context, in Input) (Status, error) {
	req := q.enqueue(in)
	q.notifySubscribers(req)

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case <-req.Wait():
		q.mu.RLock()
		defer q.mu.RUnlock()
		return req.Status, nil

	case <-timer.C:
		if q.finish(req, StatusTimedOut) {
			return StatusTimedOut, nil
		}
		// Decided concurrently with the timer firing.
		return q.status(req), nil

	case <-ctx.Done():
		if q.finish(req, StatusCanceled) {
			return StatusCanceled, ctx.Err()
		}
		return q.status(req), nil
	}
}

func (q *Queue) enqueue(in Input) *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &Request{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Method:      in.Method,
		PayloadHash: in.PayloadHash,
		PayloadSize: in.PayloadSize,
		Message:     in.Message,
		Rule:        in.Rule,
		Status:      StatusPending,
		done:        make(chan struct{}),
	}
	q.requests[req.ID] = req
	return req
}

// Approve marks a request as approved.
func (q *Queue) Approve(id string) error {
	return q.resolve(id, StatusApproved)
}

// Deny marks a request as denied.
func (q *Queue) Deny(id string) error {
	return q.resolve(id, StatusDenied)
}

// Get returns a snapshot of the request with the given id.
func (q *Queue) Get(id string) (Request, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	req, ok := q.requests[id]
	if !ok {
		return Request{}, false
	}
	return snapshot(req), true
}

func (q *Queue) resolve(id string, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.requests[id]
	if !ok {
		return fmt.Errorf("approval request %q not found", id)
	}
	if req.Status != StatusPending {
		return fmt.Errorf("approval request %q already resolved: %s", id, req.Status)
	}
	q.setStatus(req, status)
	return nil
}

// finish moves a still pending request to status. It reports false when
// the request had already been decided.
func (q *Queue) finish(req *Request, status Status) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.Status != StatusPending {
		return false
	}
	q.setStatus(req, status)
	return true
}

// setStatus must be called with q.mu held.
func (q *Queue) setStatus(req *Request, status Status) {
	req.Status = status
	now := time.Now()
	req.DecidedAt = &now
	close(req.done)

	q.decided = append(q.decided, req.ID)
	if excess := len(q.decided) - q.historyLimit; excess > 0 {
		for _, id := range q.decided[:excess] {
			delete(q.requests, id)
		}
		q.decided = slices.Delete(q.decided, 0, excess)
	}
}

func (q *Queue) status(req *Request) Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return req.Status
}

// Pending returns all pending approval requests, oldest first.
func (q *Queue) Pending() []Request {
	return q.collect(func(r *Request) bool { return r.Status == StatusPending })
}

// All returns pending requests and the most recent decided ones (for
// dashboard history), oldest first.
func (q *Queue) All() []Request {
	return q.collect(func(*Request) bool { return true })
}

func (q *Queue) collect(keep func(*Request) bool) []Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Request, 0, len(q.requests))
	for _, req := range q.requests {
		if keep(req) {
			out = append(out, snapshot(req))
		}
	}
	slices.SortFunc(out, func(a, b Request) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Subscribe returns a channel that receives new approval requests.
func (q *Queue) Subscribe() (<-chan Request, func()) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	ch := make(chan Request, 50)
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.subMu.Lock()
			defer q.subMu.Unlock()
			delete(q.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

func (q *Queue) notifySubscribers(req *Request) {
	q.mu.RLock()
	snap := snapshot(req)
	q.mu.RUnlock()

	q.subMu.RLock()
	defer q.subMu.RUnlock()

	for _, ch := range q.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// snapshot copies a request so callers never race with resolution. Must
// be called with q.mu held.
func snapshot(req *Request) Request {
	cp := *req
	if req.DecidedAt != nil {
		t := *req.DecidedAt
		cp.DecidedAt = &t
	}
	return cp
}
