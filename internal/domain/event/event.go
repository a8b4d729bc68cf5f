package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"village-banking/pkg/id"
)

type Type string

const (
	ContributionConfirmed Type = "ContributionConfirmed"
	PenaltyApplied        Type = "PenaltyApplied"
	LoanRequested         Type = "LoanRequested"
	LoanApproved          Type = "LoanApproved"
	LoanRejected          Type = "LoanRejected"
	LoanDisbursed         Type = "LoanDisbursed"
	RepaymentRecorded     Type = "RepaymentRecorded"
	LoanCompleted         Type = "LoanCompleted"
)

// Event is a committed ledger fact handed to the notification dispatcher.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	GroupID    string          `json:"group_id"`
	UserID     string          `json:"user_id"`
	EntityID   string          `json:"entity_id"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func New(t Type, groupID, userID, entityID string, amount decimal.Decimal, at time.Time) Event {
	return Event{
		ID:         id.NewEventID(),
		Type:       t,
		GroupID:    groupID,
		UserID:     userID,
		EntityID:   entityID,
		Amount:     amount,
		OccurredAt: at.UTC(),
	}
}

// Dispatcher receives events after commit. Implementations must not block
// the caller on delivery and must not report delivery failures back.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []Event)
}

// Publisher delivers a single event to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
