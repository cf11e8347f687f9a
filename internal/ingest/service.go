package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	"github.com/sudocentral/paypal-mailwizz/internal/crm/namepick"
	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
	"github.com/sudocentral/paypal-mailwizz/internal/events"
	obscontext "github.com/sudocentral/paypal-mailwizz/internal/observability/context"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/metrics"
	"github.com/sudocentral/paypal-mailwizz/internal/syncqueue"
	"github.com/sudocentral/paypal-mailwizz/internal/webhook"
)

// Outcome reports what the ledger did with an event.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
)

// Ingestor records normalized donation events.
type Ingestor interface {
	Ingest(ctx context.Context, event webhook.DonationEvent) (Outcome, error)
}

// errDuplicateTxn aborts the ledger transaction so a replayed delivery
// leaves no trace, including no freshly created donor row.
var errDuplicateTxn = errors.New("duplicate_txn")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   donordomain.Repository
	Outbox *events.Outbox
	Queue  *syncqueue.Queue
	CRM    crm.Client `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   donordomain.Repository
	outbox *events.Outbox
	queue  *syncqueue.Queue
	crm    crm.Client
}

func NewService(p Params) Ingestor {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("ingest"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		outbox: p.Outbox,
		queue:  p.Queue,
		crm:    p.CRM,
	}
}

// Ingest runs the ledger write as one transaction: donor upsert with the
// lifetime increment, the idempotent donation insert, and the outbox row
// commit or roll back together. A transaction-id conflict rolls the whole
// sequence back, which is what keeps replayed deliveries from double
// counting the lifetime total. After commit the donor is enqueued for async
// reconciliation and, on the live path, pushed to MailWizz immediately as a
// latency optimization whose failure never unwinds the ledger write.
func (s *Service) Ingest(ctx context.Context, event webhook.DonationEvent) (Outcome, error) {
	email := strings.ToLower(strings.TrimSpace(event.Email))
	if email == "" {
		return "", donordomain.ErrInvalidEmail
	}
	if event.Amount.IsNegative() {
		return "", donordomain.ErrInvalidAmount
	}

	var donor donordomain.Donor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		prior, err := s.repo.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if prior == nil {
			donor = donordomain.Donor{
				ID:        s.genID.Generate(),
				Email:     email,
				CreatedAt: now,
			}
		} else {
			donor = *prior
		}

		donation := donordomain.Donation{
			ID:           s.genID.Generate(),
			DonorID:      donor.ID,
			Amount:       event.Amount,
			DonationDate: event.OccurredAt,
			Source:       event.Source,
			RawEmail:     event.Email,
			CreatedAt:    now,
		}
		if donation.DonationDate.IsZero() {
			donation.DonationDate = now
		}
		if txnID := strings.TrimSpace(event.TxnID); txnID != "" {
			donation.TxnID = &txnID
		}

		// The donor row must exist before the donation insert; the rollback
		// on conflict removes it again when the donor was new.
		if prior == nil {
			if err := s.repo.SaveDonor(ctx, tx, &donor); err != nil {
				return err
			}
		}

		inserted, err := s.repo.InsertDonation(ctx, tx, &donation)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateTxn
		}

		donor.FirstName = event.FirstName
		donor.LastName = event.LastName
		donor.LifetimeDonated = donor.LifetimeDonated.Add(event.Amount)
		donor.LastDonationAmount = event.Amount
		donor.PendingUpdate = true
		donor.UpdatedAt = now
		if err := s.repo.SaveDonor(ctx, tx, &donor); err != nil {
			return err
		}

		payload := events.DonationRecordedPayload{
			DonationID: donation.ID.String(),
			DonorID:    donor.ID.String(),
			Email:      donor.Email,
			Amount:     donation.Amount.StringFixed(2),
			TxnID:      event.TxnID,
			Source:     donation.Source,
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventDonationRecorded,
			Payload:   payload.ToMap(),
			DedupeKey: event.TxnID,
		})
	})
	if errors.Is(err, errDuplicateTxn) {
		metrics.Pipeline().IncDonationIngested("duplicate")
		s.log.Info("duplicate delivery absorbed",
			zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
			zap.String("email", email),
			zap.String("txn_id", event.TxnID),
		)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		metrics.Pipeline().IncDonationIngested("fault")
		return "", err
	}
	metrics.Pipeline().IncDonationIngested("accepted")

	s.queue.Enqueue(email)
	s.pushImmediate(ctx, donor)

	return OutcomeRecorded, nil
}

// pushImmediate is the best-effort live-path push; the sync queue converges
// the same donor regardless of what happens here.
func (s *Service) pushImmediate(ctx context.Context, donor donordomain.Donor) {
	if s.crm == nil {
		return
	}

	first, last := namepick.Pick(donor)
	err := s.crm.Upsert(ctx, crm.Subscriber{
		Email:              donor.Email,
		FirstName:          first,
		LastName:           last,
		LastDonationAmount: donor.LastDonationAmount,
		LifetimeDonated:    donor.LifetimeDonated,
	})
	if err != nil {
		s.log.Warn("immediate crm push failed",
			zap.String("email", donor.Email),
			zap.String("txn_id", obscontext.TxnIDFromContext(ctx)),
			zap.Error(err),
		)
		return
	}

	if err := s.crm.TriggerReceipt(ctx, donor.Email); err != nil {
		s.log.Warn("receipt trigger failed", zap.String("email", donor.Email), zap.Error(err))
	}
}
