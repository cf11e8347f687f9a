// Package backfill recomputes every donor's lifetime total straight from the
// provider's transaction history and pushes the results to MailWizz. It
// bypasses the local ledger entirely: each run starts from zero, so re-runs
// are idempotent by construction.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/crm"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/metrics"
	"github.com/sudocentral/paypal-mailwizz/internal/provider"
)

const startDateLayout = "2006-01-02"

// donorTotal accumulates one donor's recomputed state across windows.
type donorTotal struct {
	Total      decimal.Decimal
	LastAmount decimal.Decimal
	Name       string
}

// Snapshot is the audit artifact written after aggregation, before any CRM
// push, so an operator can reconcile what the run computed.
type Snapshot struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Donors      map[string]SnapshotEntry `json:"donors"`
}

type SnapshotEntry struct {
	Total string `json:"total"`
	Name  string `json:"name"`
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Lister provider.TransactionLister
	CRM    crm.Client
	Cfg    config.Config
}

type Aggregator struct {
	log    *zap.Logger
	clock  clock.Clock
	lister provider.TransactionLister
	crm    crm.Client
	cfg    config.BackfillConfig

	// pause is injectable so tests run without real sleeps.
	pause func(time.Duration)
}

func NewAggregator(p Params) *Aggregator {
	return &Aggregator{
		log:    p.Log.Named("backfill"),
		clock:  p.Clock,
		lister: p.Lister,
		crm:    p.CRM,
		cfg:    p.Cfg.Backfill,
		pause:  time.Sleep,
	}
}

// Run aggregates provider history from the configured start date to now,
// writes the audit snapshot, then pushes every donor's total to MailWizz.
// Window and per-donor failures are logged and skipped; the run only fails
// outright on configuration or snapshot-write errors.
func (a *Aggregator) Run(ctx context.Context) error {
	start, err := time.Parse(startDateLayout, strings.TrimSpace(a.cfg.StartDate))
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}

	now := a.clock.Now()
	totals := make(map[string]*donorTotal)
	failedWindows := 0
	for _, window := range Windows(start, now) {
		if err := a.aggregateWindow(ctx, window, totals); err != nil {
			failedWindows++
			a.log.Error("window aggregation failed, continuing",
				zap.Time("start", window.Start),
				zap.Time("end", window.End),
				zap.Error(err),
			)
		}
	}
	a.log.Info("aggregation complete",
		zap.Int("donors", len(totals)),
		zap.Int("failed_windows", failedWindows),
	)

	path, err := a.writeSnapshot(totals, now)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	a.log.Info("audit snapshot written", zap.String("path", path))

	a.pushTotals(ctx, totals)
	return nil
}

func (a *Aggregator) aggregateWindow(ctx context.Context, window Window, totals map[string]*donorTotal) error {
	for page := 1; ; page++ {
		result, err := a.lister.ListTransactions(ctx, window.Start, window.End, page, a.cfg.PageSize)
		if err != nil {
			return err
		}
		metrics.Pipeline().IncBackfillPage()

		for _, txn := range result.Transactions {
			if txn.Status != provider.TransactionStatusSettled {
				continue
			}
			if a.cfg.Currency != "" && !strings.EqualFold(txn.Currency, a.cfg.Currency) {
				continue
			}
			if txn.Email == "" {
				continue
			}

			entry := totals[txn.Email]
			if entry == nil {
				entry = &donorTotal{}
				totals[txn.Email] = entry
			}
			entry.Total = entry.Total.Add(txn.Amount)
			entry.LastAmount = txn.Amount
			if txn.Name != "" {
				entry.Name = txn.Name
			}
		}

		if page >= result.TotalPages {
			return nil
		}
		a.pause(time.Duration(a.cfg.PagePauseMS) * time.Millisecond)
	}
}

func (a *Aggregator) writeSnapshot(totals map[string]*donorTotal, now time.Time) (string, error) {
	snapshot := Snapshot{
		RunID:       uuid.NewString(),
		GeneratedAt: now,
		Donors:      make(map[string]SnapshotEntry, len(totals)),
	}
	for email, entry := range totals {
		snapshot.Donors[email] = SnapshotEntry{
			Total: entry.Total.StringFixed(2),
			Name:  entry.Name,
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(a.cfg.SnapshotDir, fmt.Sprintf("backfill-%s.json", now.Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// pushTotals upserts every donor, pausing between fixed batches to respect
// the MailWizz rate limit. Per-donor failures are logged and skipped.
func (a *Aggregator) pushTotals(ctx context.Context, totals map[string]*donorTotal) {
	emails := make([]string, 0, len(totals))
	for email := range totals {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	for i, email := range emails {
		entry := totals[email]
		first, last := splitName(entry.Name)
		err := a.crm.Upsert(ctx, crm.Subscriber{
			Email:              email,
			FirstName:          first,
			LastName:           last,
			LastDonationAmount: entry.LastAmount,
			LifetimeDonated:    entry.Total,
		})
		if err != nil {
			metrics.Pipeline().IncBackfillPush("failure")
			a.log.Error("donor push failed, continuing",
				zap.String("email", email),
				zap.Error(err),
			)
		} else {
			metrics.Pipeline().IncBackfillPush("success")
		}

		if a.cfg.PushBatch > 0 && (i+1)%a.cfg.PushBatch == 0 && i+1 < len(emails) {
			a.pause(time.Duration(a.cfg.BatchPauseMS) * time.Millisecond)
		}
	}
}

func splitName(name string) (string, string) {
	tokens := strings.Fields(name)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], tokens[len(tokens)-1]
	}
}
