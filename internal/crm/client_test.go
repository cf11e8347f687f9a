package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudocentral/paypal-mailwizz/internal/cache"
)

// mailwizzStub fakes the three subscriber endpoints the client touches and
// records every update body it receives.
type mailwizzStub struct {
	mu      sync.Mutex
	uid     string
	creates int
	updates []url.Values

	// conflictOnCreate makes create return 409 and materialize the
	// subscriber, simulating a lost search/create race.
	conflictOnCreate bool
}

func (s *mailwizzStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lists/list1/subscribers/search-by-email", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.uid == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"subscriber_uid":"` + s.uid + `"}}`))
	})
	mux.HandleFunc("POST /lists/list1/subscribers", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.creates++
		if s.conflictOnCreate {
			s.uid = "uid-race"
			w.WriteHeader(http.StatusConflict)
			return
		}
		s.uid = "uid-created"
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("PUT /lists/list1/subscribers/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.updates = append(s.updates, r.PostForm)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *mailwizzStub) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func newTestClient(baseURL string, schedule scheduleFunc) *client {
	if schedule == nil {
		schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &client{
		baseURL:  baseURL,
		apiKey:   "test-key",
		listUID:  "list1",
		http:     &http.Client{Timeout: 5 * time.Second},
		log:      zap.NewNop(),
		uids:     cache.NoopCache[string, string]{},
		schedule: schedule,
	}
}

func subscriber(email string) Subscriber {
	return Subscriber{
		Email:              email,
		FirstName:          "Pat",
		LastName:           "Jones",
		LastDonationAmount: decimal.RequireFromString("10.00"),
		LifetimeDonated:    decimal.RequireFromString("35.00"),
	}
}

func TestUpsertCreatesWhenAbsent(t *testing.T) {
	stub := &mailwizzStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if err := c.Upsert(context.Background(), subscriber("new@example.org")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stub.creates != 1 {
		t.Fatalf("creates = %d, want 1", stub.creates)
	}
	if stub.updateCount() != 0 {
		t.Fatalf("updates = %d, want 0", stub.updateCount())
	}
}

func TestUpsertUpdatesWhenPresent(t *testing.T) {
	stub := &mailwizzStub{uid: "uid-existing"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if err := c.Upsert(context.Background(), subscriber("existing@example.org")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stub.creates != 0 {
		t.Fatalf("creates = %d, want 0", stub.creates)
	}
	if stub.updateCount() != 1 {
		t.Fatalf("updates = %d, want 1", stub.updateCount())
	}

	fields := stub.updates[0]
	if got := fields.Get("LIFETIME_DONATED"); got != "35.00" {
		t.Fatalf("LIFETIME_DONATED = %q", got)
	}
	if got := fields.Get("LAST_DONATION_AMOUNT"); got != "10.00" {
		t.Fatalf("LAST_DONATION_AMOUNT = %q", got)
	}
}

func TestUpsertRecoversFromCreateConflict(t *testing.T) {
	stub := &mailwizzStub{conflictOnCreate: true}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if err := c.Upsert(context.Background(), subscriber("race@example.org")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stub.creates != 1 {
		t.Fatalf("creates = %d, want 1", stub.creates)
	}
	if stub.updateCount() != 1 {
		t.Fatalf("updates = %d, want 1", stub.updateCount())
	}
}

func TestUpsertRejectsBlankEmail(t *testing.T) {
	c := newTestClient("http://unused", nil)
	if err := c.Upsert(context.Background(), Subscriber{Email: "  "}); err != ErrInvalidEmail {
		t.Fatalf("expected invalid email, got %v", err)
	}
}

func TestTriggerReceiptFlipsAndResets(t *testing.T) {
	stub := &mailwizzStub{uid: "uid-receipt"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	var scheduled struct {
		delay time.Duration
		fn    func()
	}
	c := newTestClient(srv.URL, func(d time.Duration, fn func()) {
		scheduled.delay = d
		scheduled.fn = fn
	})

	if err := c.TriggerReceipt(context.Background(), "receipt@example.org"); err != nil {
		t.Fatalf("trigger receipt: %v", err)
	}
	if stub.updateCount() != 1 {
		t.Fatalf("updates = %d, want 1", stub.updateCount())
	}
	if got := stub.updates[0].Get("SEND_RECEIPT"); got != "yes" {
		t.Fatalf("SEND_RECEIPT = %q, want yes", got)
	}
	if scheduled.delay != receiptResetDelay {
		t.Fatalf("reset delay = %v, want %v", scheduled.delay, receiptResetDelay)
	}

	scheduled.fn()
	if stub.updateCount() != 2 {
		t.Fatalf("updates = %d, want 2", stub.updateCount())
	}
	if got := stub.updates[1].Get("SEND_RECEIPT"); got != "no" {
		t.Fatalf("SEND_RECEIPT = %q, want no", got)
	}
}

func TestTriggerReceiptUnknownSubscriber(t *testing.T) {
	stub := &mailwizzStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	err := c.TriggerReceipt(context.Background(), "missing@example.org")
	if err != ErrSubscriberNotFound {
		t.Fatalf("expected subscriber not found, got %v", err)
	}
}
