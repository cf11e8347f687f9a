package webhook

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationEvent is the canonical shape every webhook payload is reduced to
// before it reaches the ledger. Email is the donor identity key, stored
// lowercase. An empty TxnID disables duplicate-delivery protection for the
// event.
type DonationEvent struct {
	Email      string
	FirstName  string
	LastName   string
	Amount     decimal.Decimal
	OccurredAt time.Time
	TxnID      string
	Source     string
}
