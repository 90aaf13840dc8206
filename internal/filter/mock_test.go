package filter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/client"
)

// mockClient is a client.Client whose SendRawTransaction is scripted.
type mockClient struct {
	client.Client // nil; only the methods below are called

	send  func(ctx context.Context, payload []byte) (string, error)
	calls atomic.Int32

	mu       sync.Mutex
	payloads [][]byte
}

func newMockClient(send func(ctx context.Context, payload []byte) (string, error)) *mockClient {
	return &mockClient{send: send}
}

func returning(hash string, err error) *mockClient {
	return newMockClient(func(context.Context, []byte) (string, error) { return hash, err })
}

func (m *mockClient) SendRawTransaction(ctx context.Context, payload []byte) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.payloads = append(m.payloads, append([]byte(nil), payload...))
	m.mu.Unlock()
	return m.send(ctx, payload)
}

func (m *mockClient) GetChainID(context.Context) (uint64, error) { return 4, nil }

func (m *mockClient) GetRPCAPIVersion(context.Context) (string, error) { return "1.0.0", nil }

func (m *mockClient) GetStates(context.Context, string) ([]*api.StateView, error) {
	return []*api.StateView{nil}, nil
}

func (m *mockClient) lastPayload() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

// lifecycleFilter records Init and Destroy calls into a shared log.
type lifecycleFilter struct {
	name    string
	log     *[]string
	initErr error
	destErr error
}

func (f *lifecycleFilter) Name() string { return f.name }

func (f *lifecycleFilter) Init(context.Context) error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *lifecycleFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	return chain.DoFilter(ctx, payload)
}

func (f *lifecycleFilter) Destroy() error {
	*f.log = append(*f.log, "destroy:"+f.name)
	return f.destErr
}

// memStore is an in-memory audit.Store.
type memStore struct {
	mu      sync.Mutex
	records []*api.AuditRecord
	err     error
}

func (s *memStore) Write(_ context.Context, r *api.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) Query(context.Context, api.QueryFilter) ([]*api.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*api.AuditRecord(nil), s.records...), nil
}

func (s *memStore) Stats(context.Context) (*api.AuditStats, error) { return &api.AuditStats{}, nil }

func (s *memStore) Subscribe(context.Context) (<-chan *api.AuditRecord, func()) {
	ch := make(chan *api.AuditRecord)
	return ch, func() { close(ch) }
}

func (s *memStore) Close() error { return nil }

func (s *memStore) last() *api.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}
