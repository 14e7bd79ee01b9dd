package entity

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSent     Status = "sent"
)

// transitions lists the legal targets for every source status.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusSent},
	StatusRejected: {},
	StatusSent:     {},
}

// Statuses returns the closed set of lifecycle states in lifecycle order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSent}
}

// DecidedStatuses are the states reported by the order history view.
func DecidedStatuses() []Status {
	return []Status{StatusApproved, StatusRejected, StatusSent}
}

// InvalidStatusError reports a value outside the closed status set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid purchase order status %q", e.Value)
}

// TransitionError reports an illegal source -> target move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition purchase order from %s to %s", e.From, e.To)
}

// ParseStatus normalises raw input and rejects anything outside the closed set.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &InvalidStatusError{Value: raw}
	}
	return s, nil
}

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Next returns the statuses reachable from s in one step.
func (s Status) Next() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is a legal next state.
func (s Status) CanTransitionTo(target Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when the move is illegal.
func (s Status) CheckTransition(target Status) error {
	if !target.Valid() {
		return &InvalidStatusError{Value: string(target)}
	}
	if !s.CanTransitionTo(target) {
		return &TransitionError{From: s, To: target}
	}
	return nil
}

// AcceptsTracking reports whether shipment tracking may be recorded in this state.
func (s Status) AcceptsTracking() bool {
	return s == StatusApproved || s == StatusSent
}

// AcceptsInvoices reports whether supplier invoices may be attached in this state.
func (s Status) AcceptsInvoices() bool {
	return s == StatusApproved || s == StatusSent
}
