package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Donor, error)
	// InsertDonation appends a donation row. It returns false without error
	// when a row with the same transaction id already exists.
	InsertDonation(ctx context.Context, db *gorm.DB, donation *Donation) (bool, error)
	// SaveDonor creates the donor row or updates it in place, keyed by email.
	SaveDonor(ctx context.Context, db *gorm.DB, donor *Donor) error
	// ClearPending marks the donor's CRM state as in sync.
	ClearPending(ctx context.Context, db *gorm.DB, email string, at time.Time) error
	// SumDonations recomputes a donor's lifetime total from the donation rows.
	SumDonations(ctx context.Context, db *gorm.DB, donorID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrDonorNotFound = errors.New("donor_not_found")
)
