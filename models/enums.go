package models

import (
	"errors"
	"strings"
)

type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "CRITICAL"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyLow      UrgencyLevel = "LOW"
)

func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	switch UrgencyLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case UrgencyCritical:
		return UrgencyCritical, nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyMedium, "":
		return UrgencyMedium, nil
	case UrgencyLow:
		return UrgencyLow, nil
	}
	return "", errors.New("invalid urgency level")
}

type TaskStatus string

const (
	TaskStatusQueued          TaskStatus = "QUEUED"
	TaskStatusInProgress      TaskStatus = "IN_PROGRESS"
	TaskStatusNegotiating     TaskStatus = "NEGOTIATING"
	TaskStatusPendingApproval TaskStatus = "PENDING_APPROVAL"
	TaskStatusApproved        TaskStatus = "APPROVED"
	TaskStatusCompleted       TaskStatus = "COMPLETED"
	TaskStatusFailed          TaskStatus = "FAILED"
	TaskStatusRejected        TaskStatus = "REJECTED"
)

func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusRejected:
		return true
	}
	return false
}

// taskTransitions is the full forward transition table. FAILED is additionally
// reachable from any non-terminal status (handled in CanTransition).
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusQueued:          {TaskStatusInProgress},
	TaskStatusInProgress:      {TaskStatusNegotiating, TaskStatusPendingApproval, TaskStatusApproved},
	TaskStatusNegotiating:     {TaskStatusPendingApproval, TaskStatusApproved},
	TaskStatusPendingApproval: {TaskStatusApproved, TaskStatusRejected},
	TaskStatusApproved:        {TaskStatusCompleted},
}

func (s TaskStatus) CanTransition(to TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == TaskStatusFailed {
		return true
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type NegotiationStatus string

const (
	NegotiationInProgress NegotiationStatus = "IN_PROGRESS"
	NegotiationSuccessful NegotiationStatus = "SUCCESSFUL"
	NegotiationFailed     NegotiationStatus = "FAILED"
	NegotiationTimeout    NegotiationStatus = "TIMEOUT"
)

type RoundStatus string

const (
	RoundStatusSent         RoundStatus = "SENT"
	RoundStatusAccepted     RoundStatus = "ACCEPTED"
	RoundStatusRejected     RoundStatus = "REJECTED"
	RoundStatusCounterOffer RoundStatus = "COUNTER_OFFER"
)

// NegotiationAction classifies what, if anything, is worth pursuing with a
// supplier before the final decision.
type NegotiationAction string

const (
	ActionSkip         NegotiationAction = "skip"
	ActionPriceMatch   NegotiationAction = "price_match"
	ActionExpedite     NegotiationAction = "expedite"
	ActionBulkDiscount NegotiationAction = "bulk_discount"
)

type OrderStatus string

const (
	OrderStatusDraft           OrderStatus = "DRAFT"
	OrderStatusPendingApproval OrderStatus = "PENDING_APPROVAL"
	OrderStatusApproved        OrderStatus = "APPROVED"
	OrderStatusPlaced          OrderStatus = "PLACED"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusInTransit       OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

const (
	EventDispatchStatusPending    = "PENDING"
	EventDispatchStatusProcessing = "PROCESSING"
	EventDispatchStatusPublished  = "PUBLISHED"
	EventDispatchStatusDirect     = "DIRECT"
	EventDispatchStatusFailed     = "FAILED"
	EventDispatchStatusDead       = "DEAD"
)
