package audit

import (
	"context"

	"github.com/tkingovr/roochguard/api"
)

// Writer appends audit records. The submission chain only needs this half.
type Writer interface {
	Write(ctx context.Context, record *api.AuditRecord) error
}

// Reader serves recorded history and live records to the dashboard.
type Reader interface {
	// Query returns records matching the filter, newest first.
	Query(ctx context.Context, filter api.QueryFilter) ([]*api.AuditRecord, error)

	Stats(ctx context.Context) (*api.AuditStats, error)

	// Subscribe delivers each record written after the call. The returned
	// function ends the subscription and closes the channel.
	Subscribe(ctx context.Context) (<-chan *api.AuditRecord, func())
}

// Store is a complete audit backend.
type Store interface {
	Writer
	Reader
	Close() error
}
