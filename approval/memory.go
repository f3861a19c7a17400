package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// MEMORY REQUEST STORE - In-memory implementation (for testing/dev)
// =============================================================================

// MemoryRequests keeps approval requests in a map guarded by a RWMutex.
type MemoryRequests struct {
	mu       sync.RWMutex
	requests map[string]PaymentApprovalRequest
}

func NewMemoryRequests() *MemoryRequests {
	return &MemoryRequests{requests: make(map[string]PaymentApprovalRequest)}
}

func (m *MemoryRequests) Create(_ context.Context, r *PaymentApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return &schedule.ValidationError{Field: "id", Message: "approval request id already exists"}
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryRequests) Get(_ context.Context, id string) (*PaymentApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, schedule.ErrApprovalNotFound
	}
	return &r, nil
}

func (m *MemoryRequests) Update(_ context.Context, r *PaymentApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.requests[r.ID]
	if !ok {
		return schedule.ErrApprovalNotFound
	}
	// Reviewed requests are immutable.
	if existing.Status != RequestPending {
		return &schedule.ValidationError{Field: "status", Message: "request already reviewed"}
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryRequests) PendingFor(_ context.Context, scheduleID string, key schedule.MonthKey) (*PaymentApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.requests {
		if r.Status == RequestPending && r.ScheduleID == scheduleID && r.MonthKey == key {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryRequests) ListPending(_ context.Context) ([]*PaymentApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*PaymentApprovalRequest
	for _, r := range m.requests {
		if r.Status == RequestPending {
			copied := r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
