package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
)

type repository struct{}

func Provide() donordomain.Repository {
	return repository{}
}

func (repository) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*donordomain.Donor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, donordomain.ErrInvalidEmail
	}

	var donor donordomain.Donor
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, first_name, last_name, preferred_first_name, preferred_last_name,
		        display_name, lifetime_donated, last_donation_amount, pending_update,
		        created_at, updated_at
		 FROM donors
		 WHERE email = ?`,
		email,
	).Scan(&donor).Error
	if err != nil {
		return nil, err
	}
	if donor.ID == 0 {
		return nil, nil
	}
	return &donor, nil
}

func (repository) InsertDonation(ctx context.Context, db *gorm.DB, donation *donordomain.Donation) (bool, error) {
	if donation == nil || donation.Amount.IsNegative() {
		return false, donordomain.ErrInvalidAmount
	}

	result := db.WithContext(ctx).Exec(
		`INSERT INTO donations (id, donor_id, txn_id, amount, donation_date, source, raw_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (txn_id) DO NOTHING`,
		donation.ID,
		donation.DonorID,
		donation.TxnID,
		donation.Amount,
		donation.DonationDate,
		donation.Source,
		donation.RawEmail,
		donation.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) SaveDonor(ctx context.Context, db *gorm.DB, donor *donordomain.Donor) error {
	if donor == nil {
		return donordomain.ErrDonorNotFound
	}
	donor.Email = strings.ToLower(strings.TrimSpace(donor.Email))
	if donor.Email == "" {
		return donordomain.ErrInvalidEmail
	}

	// Insert-or-ignore first, update second. The targetless conflict clause
	// absorbs both the email conflict and a re-save of the same row, and the
	// update path deliberately leaves the curated name fields untouched.
	result := db.WithContext(ctx).Exec(
		`INSERT INTO donors (
			id, email, first_name, last_name, preferred_first_name, preferred_last_name,
			display_name, lifetime_donated, last_donation_amount, pending_update,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		donor.ID,
		donor.Email,
		donor.FirstName,
		donor.LastName,
		donor.PreferredFirstName,
		donor.PreferredLastName,
		donor.DisplayName,
		donor.LifetimeDonated,
		donor.LastDonationAmount,
		donor.PendingUpdate,
		donor.CreatedAt,
		donor.UpdatedAt,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`UPDATE donors
		 SET first_name = ?, last_name = ?, lifetime_donated = ?,
		     last_donation_amount = ?, pending_update = ?, updated_at = ?
		 WHERE email = ?`,
		donor.FirstName,
		donor.LastName,
		donor.LifetimeDonated,
		donor.LastDonationAmount,
		donor.PendingUpdate,
		donor.UpdatedAt,
		donor.Email,
	).Error
}

func (repository) ClearPending(ctx context.Context, db *gorm.DB, email string, at time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return donordomain.ErrInvalidEmail
	}

	return db.WithContext(ctx).Exec(
		`UPDATE donors
		 SET pending_update = ?, updated_at = ?
		 WHERE email = ?`,
		false,
		at,
		email,
	).Error
}

func (repository) SumDonations(ctx context.Context, db *gorm.DB, donorID snowflake.ID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM donations
		 WHERE donor_id = ?`,
		donorID,
	).Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
