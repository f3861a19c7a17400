/*
Package directory defines the read-only collaborator boundary of the
payment engine.

PURPOSE:
  The engine never owns facilities, rooms, renters, organization settings,
  or user roles; the surrounding application does. This package defines the
  interfaces the core depends on and small in-memory implementations used
  by tests and the development server.

DESIGN:
  Core operations receive explicit Settings values rather than reading
  ambient state. Settings changes propagate through an injected change
  feed (SettingsFeed); consumers must tolerate brief staleness between a
  write and its notification.
*/
package directory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORGANIZATION SETTINGS - Due-date policy and default business rules
// =============================================================================

// Settings holds the organization-wide business rules the engine applies.
type Settings struct {
	DueDatePolicy string // "first_day" or "last_day"

	// LateFeeAmount is the daily penalty charged per overdue obligation.
	LateFeeAmount decimal.Decimal
	// LateFeeStartDay is the number of days after the due date before
	// penalties begin to accrue.
	LateFeeStartDay int
	// GracePeriodDays is how long after the due date an obligation stays
	// pending before the sweep flips it to overdue.
	GracePeriodDays int

	// ChildSurcharge is added to monthly rent per occupant child.
	ChildSurcharge decimal.Decimal

	// MaxPastPaymentDays limits how far back a standard user may record a
	// payment date. Zero disables the window.
	MaxPastPaymentDays int
}

// SettingsProvider exposes the current settings. Read-only to the core.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// SettingsFeed delivers settings updates to subscribers. Notifications are
// eventually consistent: a subscriber may briefly observe stale settings
// after a write.
type SettingsFeed interface {
	Subscribe(fn func(Settings)) (cancel func())
}

// =============================================================================
// ROLES - Privilege boundary, trusted as-is
// =============================================================================

type Role string

const (
	RoleSystemAdmin  Role = "system_admin"
	RoleStandardUser Role = "standard_user"
)

// Actor is the user on whose behalf an operation runs. The engine performs
// no authentication; it trusts the role resolved at this boundary.
type Actor struct {
	ID   string
	Role Role
}

// Privileged reports whether the actor may bypass the approval gate.
func (a Actor) Privileged() bool { return a.Role == RoleSystemAdmin }

// RoleProvider resolves a user's privilege level.
type RoleProvider interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}

// =============================================================================
// NAME DIRECTORY - Display-name resolution, never mutated by the core
// =============================================================================

// NameDirectory resolves facility/room/renter/lease ids to display names.
type NameDirectory interface {
	FacilityName(ctx context.Context, id string) (string, error)
	RoomName(ctx context.Context, id string) (string, error)
	RenterName(ctx context.Context, id string) (string, error)
}

// =============================================================================
// MAINTENANCE EXPENSES - Recoverable room-cost lines for deposit payout
// =============================================================================

// RoomCostLine is one room's share of a maintenance expense.
type RoomCostLine struct {
	ID                 string
	ExpenseID          string
	RoomID             string
	Description        string
	Amount             decimal.Decimal
	RecoverFromDeposit bool
}

// ExpenseSource supplies recoverable room-cost lines for the payout
// calculator. Read-only to the core.
type ExpenseSource interface {
	// RecoverableCosts returns the lines flagged recoverFromDeposit for a room.
	RecoverableCosts(ctx context.Context, roomID string) ([]RoomCostLine, error)
	// CostLines resolves specific line ids (for payout selections).
	CostLines(ctx context.Context, lineIDs []string) ([]RoomCostLine, error)
}

// =============================================================================
// IN-MEMORY IMPLEMENTATIONS - Tests and development server
// =============================================================================

// StaticSettings is a SettingsProvider and SettingsFeed over a mutable value.
type StaticSettings struct {
	mu          sync.RWMutex
	current     Settings
	subscribers []func(Settings)
}

func NewStaticSettings(s Settings) *StaticSettings {
	return &StaticSettings{current: s}
}

func (p *StaticSettings) Settings(_ context.Context) (Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, nil
}

// Update replaces the settings and notifies subscribers asynchronously.
func (p *StaticSettings) Update(s Settings) {
	p.mu.Lock()
	p.current = s
	subs := append([]func(Settings){}, p.subscribers...)
	p.mu.Unlock()

	for _, fn := range subs {
		go fn(s)
	}
}

func (p *StaticSettings) Subscribe(fn func(Settings)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
	i := len(p.subscribers) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subscribers[i] = func(Settings) {}
	}
}

// StaticRoles maps user ids to roles; unknown users are standard users.
type StaticRoles map[string]Role

func (r StaticRoles) RoleOf(_ context.Context, userID string) (Role, error) {
	if role, ok := r[userID]; ok {
		return role, nil
	}
	return RoleStandardUser, nil
}

// StaticExpenses is an ExpenseSource over a fixed set of lines.
type StaticExpenses struct {
	Lines []RoomCostLine
}

func (e *StaticExpenses) RecoverableCosts(_ context.Context, roomID string) ([]RoomCostLine, error) {
	var out []RoomCostLine
	for _, l := range e.Lines {
		if l.RoomID == roomID && l.RecoverFromDeposit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (e *StaticExpenses) CostLines(_ context.Context, lineIDs []string) ([]RoomCostLine, error) {
	want := make(map[string]bool, len(lineIDs))
	for _, id := range lineIDs {
		want[id] = true
	}
	var out []RoomCostLine
	for _, l := range e.Lines {
		if want[l.ID] {
			out = append(out, l)
		}
	}
	return out, nil
}
