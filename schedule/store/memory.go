// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps schedule documents in a map, guarded by a RWMutex. Documents
// are deep-copied on the way in and out so callers can never mutate stored
// state without going through Put.
type Memory struct {
	mu        sync.RWMutex
	schedules map[string]*schedule.LeasePaymentSchedule
}

func NewMemory() *Memory {
	return &Memory{schedules: make(map[string]*schedule.LeasePaymentSchedule)}
}

func (m *Memory) GetByLease(_ context.Context, leaseID string) (*schedule.LeasePaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[leaseID]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return clone(s), nil
}

func (m *Memory) GetBatch(_ context.Context, leaseIDs []string) ([]*schedule.LeasePaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*schedule.LeasePaymentSchedule
	for _, id := range leaseIDs {
		if s, ok := m.schedules[id]; ok {
			result = append(result, clone(s))
		}
	}
	return result, nil
}

func (m *Memory) GetAll(_ context.Context) ([]*schedule.LeasePaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schedule.LeasePaymentSchedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		result = append(result, clone(s))
	}
	// Deterministic order keeps sweep batches and tests stable.
	sort.Slice(result, func(i, j int) bool { return result[i].LeaseID < result[j].LeaseID })
	return result, nil
}

func (m *Memory) Put(_ context.Context, s *schedule.LeasePaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(s)
}

// PutBatch writes all documents or none: versions are checked for the whole
// batch before any write is applied.
func (m *Memory) PutBatch(_ context.Context, schedules []*schedule.LeasePaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range schedules {
		if existing, ok := m.schedules[s.LeaseID]; ok && existing.Version != s.Version {
			return schedule.ErrVersionConflict
		}
	}
	for _, s := range schedules {
		if err := m.putLocked(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) putLocked(s *schedule.LeasePaymentSchedule) error {
	if existing, ok := m.schedules[s.LeaseID]; ok && existing.Version != s.Version {
		return schedule.ErrVersionConflict
	}
	stored := clone(s)
	stored.Version++
	m.schedules[s.LeaseID] = stored
	s.Version = stored.Version
	return nil
}

// clone deep-copies via JSON; schedule documents are fully JSON-shaped.
func clone(s *schedule.LeasePaymentSchedule) *schedule.LeasePaymentSchedule {
	raw, err := json.Marshal(s)
	if err != nil {
		// Schedules contain only marshalable fields; treat failure as a bug.
		panic(err)
	}
	var out schedule.LeasePaymentSchedule
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}
