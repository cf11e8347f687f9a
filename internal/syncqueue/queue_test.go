package syncqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
	"github.com/sudocentral/paypal-mailwizz/internal/donor/repository"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type recordingCRM struct {
	mu      sync.Mutex
	upserts []crm.Subscriber
	fail    bool
}

func (r *recordingCRM) Upsert(_ context.Context, sub crm.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return crm.ErrUnexpectedStatus
	}
	r.upserts = append(r.upserts, sub)
	return nil
}

func (r *recordingCRM) TriggerReceipt(context.Context, string) error { return nil }

func (r *recordingCRM) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.upserts)
}

func (r *recordingCRM) last() crm.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts[len(r.upserts)-1]
}

func setupQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS donors (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			preferred_first_name TEXT NOT NULL DEFAULT '',
			preferred_last_name TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			lifetime_donated NUMERIC NOT NULL DEFAULT 0,
			last_donation_amount NUMERIC NOT NULL DEFAULT 0,
			pending_update BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME
		)`,
	).Error; err != nil {
		t.Fatalf("create donors: %v", err)
	}
	return db
}

func seedDonor(t *testing.T, db *gorm.DB, repo donordomain.Repository, email string, lifetime string) *donordomain.Donor {
	t.Helper()
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	donor := &donordomain.Donor{
		ID:              node.Generate(),
		Email:           email,
		FirstName:       "Pat",
		LastName:        "Jones",
		LifetimeDonated: decimal.RequireFromString(lifetime),
		PendingUpdate:   true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := repo.SaveDonor(context.Background(), db, donor); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	return donor
}

func newTestQueue(db *gorm.DB, repo donordomain.Repository, mw crm.Client) *Queue {
	return NewQueue(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fixedClock{at: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
		Repo:  repo,
		CRM:   mw,
		Config: Config{
			Capacity:   8,
			JobTimeout: 5 * time.Second,
		},
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueueSyncsDonorAndClearsPending(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := repository.Provide()
	seedDonor(t, db, repo, "queue-sync@example.org", "42.00")

	mw := &recordingCRM{}
	q := newTestQueue(db, repo, mw)
	q.Start()
	defer q.Stop()

	q.Enqueue("queue-sync@example.org")
	waitFor(t, func() bool { return mw.count() >= 1 })

	pushed := mw.last()
	if pushed.LifetimeDonated.StringFixed(2) != "42.00" {
		t.Fatalf("pushed lifetime = %s", pushed.LifetimeDonated)
	}
	if pushed.FirstName != "Pat" || pushed.LastName != "Jones" {
		t.Fatalf("pushed name = %q %q", pushed.FirstName, pushed.LastName)
	}

	waitFor(t, func() bool {
		donor, err := repo.FindByEmail(context.Background(), db, "queue-sync@example.org")
		return err == nil && donor != nil && !donor.PendingUpdate
	})
}

func TestQueueCoalescesRapidEnqueues(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := repository.Provide()
	seedDonor(t, db, repo, "queue-burst@example.org", "10.00")

	mw := &recordingCRM{}
	q := newTestQueue(db, repo, mw)

	const n = 5
	for i := 0; i < n; i++ {
		q.Enqueue("queue-burst@example.org")
	}
	q.Start()

	waitFor(t, func() bool { return mw.count() >= 1 })
	q.Stop()

	// Jobs carry no payload, so every executed push reads the same current
	// state. At least one push happens, never more than one per enqueue.
	if got := mw.count(); got < 1 || got > n {
		t.Fatalf("pushes = %d, want between 1 and %d", got, n)
	}
	if mw.last().LifetimeDonated.StringFixed(2) != "10.00" {
		t.Fatalf("pushed lifetime = %s", mw.last().LifetimeDonated)
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := repository.Provide()

	q := NewQueue(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  fixedClock{at: time.Now().UTC()},
		Repo:   repo,
		CRM:    &recordingCRM{},
		Config: Config{Capacity: 2, JobTimeout: time.Second},
	})

	// Worker not started; the third enqueue must drop, not block.
	done := make(chan struct{})
	go func() {
		q.Enqueue("a@example.org")
		q.Enqueue("b@example.org")
		q.Enqueue("c@example.org")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full queue")
	}
	if len(q.jobs) != 2 {
		t.Fatalf("buffered jobs = %d, want 2", len(q.jobs))
	}
}

func TestQueueFailureLeavesPendingSet(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := repository.Provide()
	seedDonor(t, db, repo, "queue-fail@example.org", "10.00")

	mw := &recordingCRM{fail: true}
	q := newTestQueue(db, repo, mw)
	q.Start()

	q.Enqueue("queue-fail@example.org")
	time.Sleep(50 * time.Millisecond)
	q.Stop()

	donor, err := repo.FindByEmail(context.Background(), db, "queue-fail@example.org")
	if err != nil {
		t.Fatalf("find donor: %v", err)
	}
	if !donor.PendingUpdate {
		t.Fatal("pending_update cleared after failed push")
	}
}

func TestQueueIgnoresBlankEmail(t *testing.T) {
	db := setupQueueTestDB(t)
	q := newTestQueue(db, repository.Provide(), &recordingCRM{})

	q.Enqueue("   ")
	if len(q.jobs) != 0 {
		t.Fatalf("buffered jobs = %d, want 0", len(q.jobs))
	}
}
