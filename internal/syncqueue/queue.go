// Package syncqueue drains donor emails enqueued by the ingestion path and
// reconciles each donor's MailWizz state against the ledger. Exactly one
// worker runs per process, so pushes for the same donor can never interleave.
//
// The queue holds no durable state: a restart drops pending jobs, and the
// donors.pending_update flag remains the durable signal a future
// reconciliation sweep would read. That sweep is not implemented here.
package syncqueue

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	"github.com/sudocentral/paypal-mailwizz/internal/crm/namepick"
	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
	"github.com/sudocentral/paypal-mailwizz/internal/events"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   donordomain.Repository
	CRM    crm.Client
	Outbox *events.Outbox `optional:"true"`
	Config Config         `optional:"true"`
}

type Queue struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   donordomain.Repository
	crm    crm.Client
	outbox *events.Outbox
	cfg    Config

	jobs chan string
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewQueue(p Params) *Queue {
	cfg := p.Config.withDefaults()
	return &Queue{
		db:     p.DB,
		log:    p.Log.Named("syncqueue"),
		clock:  p.Clock,
		repo:   p.Repo,
		crm:    p.CRM,
		outbox: p.Outbox,
		cfg:    cfg,
		jobs:   make(chan string, cfg.Capacity),
		quit:   make(chan struct{}),
	}
}

// Enqueue marks a donor as possibly stale in MailWizz. Jobs carry no
// payload; the worker re-reads current ledger state at execution time, so
// rapid enqueues for one donor collapse into up-to-date pushes rather than
// racing each other. When the buffer is full the job is dropped — the donor
// stays pending_update and the next event repairs it.
func (q *Queue) Enqueue(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	select {
	case q.jobs <- email:
		metrics.Pipeline().SetSyncQueueDepth(len(q.jobs))
	default:
		q.log.Warn("sync queue full, dropping job", zap.String("email", email))
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop signals the worker and waits for the in-flight job to finish.
func (q *Queue) Stop() {
	close(q.quit)
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case email := <-q.jobs:
			metrics.Pipeline().SetSyncQueueDepth(len(q.jobs))
			q.syncDonor(email)
		}
	}
}

// syncDonor pushes one donor's current ledger state to MailWizz. Failures
// are logged and dropped; the donor stays pending_update until the next
// event for that donor converges it.
func (q *Queue) syncDonor(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.JobTimeout)
	defer cancel()

	donor, err := q.repo.FindByEmail(ctx, q.db, email)
	if err != nil {
		q.log.Warn("sync read failed", zap.String("email", email), zap.Error(err))
		metrics.Pipeline().IncSyncPush("failure")
		return
	}
	if donor == nil {
		q.log.Warn("sync job for unknown donor", zap.String("email", email))
		return
	}

	first, last := namepick.Pick(*donor)
	err = q.crm.Upsert(ctx, crm.Subscriber{
		Email:              donor.Email,
		FirstName:          first,
		LastName:           last,
		LastDonationAmount: donor.LastDonationAmount,
		LifetimeDonated:    donor.LifetimeDonated,
	})
	if err != nil {
		q.log.Warn("crm push failed",
			zap.String("email", email),
			zap.Error(err),
		)
		metrics.Pipeline().IncSyncPush("failure")
		return
	}

	if err := q.repo.ClearPending(ctx, q.db, email, q.clock.Now()); err != nil {
		q.log.Warn("clear pending failed", zap.String("email", email), zap.Error(err))
	}
	if q.outbox != nil {
		err := q.outbox.Publish(ctx, events.Event{
			Type: events.EventDonorSynced,
			Payload: map[string]any{
				"email":            donor.Email,
				"lifetime_donated": donor.LifetimeDonated.StringFixed(2),
			},
		})
		if err != nil {
			q.log.Warn("sync event publish failed", zap.String("email", email), zap.Error(err))
		}
	}
	metrics.Pipeline().IncSyncPush("success")
}
