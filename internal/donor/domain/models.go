package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Donation source tags.
const (
	SourcePayPal    = "paypal"
	SourceCSVImport = "csv_import"
)

// Donor is the durable per-email contributor record. LifetimeDonated only
// ever grows: refunds and reversals are out of scope.
type Donor struct {
	ID                 snowflake.ID    `gorm:"primaryKey"`
	Email              string          `gorm:"type:text;not null;uniqueIndex:ux_donors_email"`
	FirstName          string          `gorm:"type:text"`
	LastName           string          `gorm:"type:text"`
	PreferredFirstName string          `gorm:"type:text"`
	PreferredLastName  string          `gorm:"type:text"`
	DisplayName        string          `gorm:"type:text"`
	LifetimeDonated    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	LastDonationAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	PendingUpdate      bool            `gorm:"not null;default:false"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Donor) TableName() string { return "donors" }

// Donation is an append-only contribution row. TxnID carries the provider
// transaction id and is unique when present; rows without one are never
// deduplicated (best-effort provider data, pending product sign-off).
type Donation struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	DonorID      snowflake.ID    `gorm:"not null;index"`
	TxnID        *string         `gorm:"type:text;uniqueIndex:ux_donations_txn_id"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DonationDate time.Time       `gorm:"not null"`
	Source       string          `gorm:"type:text;not null"`
	RawEmail     string          `gorm:"type:text"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Donation) TableName() string { return "donations" }
