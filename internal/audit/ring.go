package audit

import "github.com/tkingovr/roochguard/api"

// ring keeps the most recent records up to a fixed capacity.
type ring struct {
	buf   []*api.AuditRecord
	start int // index of the oldest record
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*api.AuditRecord, capacity)}
}

// push appends r, evicting the oldest record when full.
func (q *ring) push(r *api.AuditRecord) {
	if q.n < len(q.buf) {
		q.buf[(q.start+q.n)%len(q.buf)] = r
		q.n++
		return
	}
	q.buf[q.start] = r
	q.start = (q.start + 1) % len(q.buf)
}

// newestFirst calls fn for every record, newest first, until fn returns false.
func (q *ring) newestFirst(fn func(*api.AuditRecord) bool) {
	for i := q.n - 1; i >= 0; i-- {
		if !fn(q.buf[(q.start+i)%len(q.buf)]) {
			return
		}
	}
}

// each calls fn for every record, oldest first, until fn returns false.
func (q *ring) each(fn func(*api.AuditRecord) bool) {
	for i := 0; i < q.n; i++ {
		if !fn(q.buf[(q.start+i)%len(q.buf)]) {
			return
		}
	}
}
