package payout

import (
	"context"
	"sync"

	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// MEMORY RECORD STORE - In-memory implementation (for testing/dev)
// =============================================================================

// MemoryRecords keeps payout records in a map guarded by a RWMutex.
// Create-only: records are immutable once written.
type MemoryRecords struct {
	mu      sync.RWMutex
	byLease map[string]DepositPayoutRecord
}

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{byLease: make(map[string]DepositPayoutRecord)}
}

func (m *MemoryRecords) Create(_ context.Context, r *DepositPayoutRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byLease[r.LeaseID]; exists {
		return &schedule.ValidationError{Field: "leaseId", Message: "payout record already exists for lease"}
	}
	m.byLease[r.LeaseID] = *r
	return nil
}

func (m *MemoryRecords) GetByLease(_ context.Context, leaseID string) (*DepositPayoutRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.byLease[leaseID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
