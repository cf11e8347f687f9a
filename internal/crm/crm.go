package crm

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Subscriber is the donor projection pushed to MailWizz.
type Subscriber struct {
	Email              string
	FirstName          string
	LastName           string
	LastDonationAmount decimal.Decimal
	LifetimeDonated    decimal.Decimal
}

// Client reconciles donor state into the MailWizz list. The external API has
// no atomic upsert, so Upsert runs the search-then-branch protocol: search by
// email, create when absent, update by subscriber uid when present. A
// create-time conflict (another actor won the race between search and create)
// is recovered by one re-search-and-update.
type Client interface {
	Upsert(ctx context.Context, sub Subscriber) error
	// TriggerReceipt flips the SEND_RECEIPT flag to true and schedules a
	// detached reset to false after a fixed delay. MailWizz automation fires
	// on the observed true-to-false transition.
	TriggerReceipt(ctx context.Context, email string) error
}

var (
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrSubscriberNotFound = errors.New("subscriber_not_found")
	ErrUnexpectedStatus   = errors.New("unexpected_status")
)
