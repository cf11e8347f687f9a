// Package csvimport loads provider activity CSV exports into the donation
// ledger. It is the offline companion to the webhook path: rows are deduped
// on transaction id across all files, donors are upserted, and lifetime
// totals are recomputed from the donation rows in one pass at the end.
package csvimport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
)

// Expected CSV column headers. Provider exports vary slightly by locale;
// these are the US-format names.
const (
	colDate  = "Date"
	colTime  = "Time"
	colName  = "Name"
	colEmail = "From Email Address"
	colGross = "Gross"
	colTxnID = "Transaction ID"
)

var csvDateLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Row is one parsed, accepted donation row.
type Row struct {
	Email        string
	FirstName    string
	LastName     string
	Amount       decimal.Decimal
	DonationDate time.Time
	RawEmail     string
	TxnID        string
}

// Importer parses export files and writes them through the ledger store.
type Importer struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  donordomain.Repository
}

func NewImporter(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, clk clock.Clock, repo donordomain.Repository) *Importer {
	return &Importer{
		db:    db,
		log:   log.Named("csvimport"),
		genID: genID,
		clock: clk,
		repo:  repo,
	}
}

// LoadFiles parses every file, in order, and returns accepted rows deduped
// by transaction id across all files. Rows without an email or with a
// non-positive gross amount are skipped; rows without a transaction id are
// kept as-is since they cannot be deduped safely.
func (im *Importer) LoadFiles(paths []string) ([]Row, error) {
	var rows []Row
	for _, path := range paths {
		parsed, err := im.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, parsed...)
	}
	return dedupeByTxnID(rows), nil
}

func (im *Importer) loadFile(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		// Export files open with a BOM.
		index[strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF")] = i
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		rawEmail := field(colEmail)
		if rawEmail == "" {
			continue
		}

		amount, err := parseGross(field(colGross))
		if err != nil || !amount.IsPositive() {
			// Only positive incoming donations count; fees, refunds and
			// transfers in the export are skipped.
			continue
		}

		first, last := SplitName(field(colName))
		rows = append(rows, Row{
			Email:        strings.ToLower(rawEmail),
			FirstName:    first,
			LastName:     last,
			Amount:       amount,
			DonationDate: parseCSVDate(field(colDate), field(colTime), im.clock.Now()),
			RawEmail:     rawEmail,
			TxnID:        field(colTxnID),
		})
	}
	return rows, nil
}

// NameConflicts returns emails mapped to the distinct name pairs seen for
// them, for every email with more than one. Imports refuse to proceed with
// conflicts present unless forced.
func NameConflicts(rows []Row) map[string][]string {
	names := make(map[string]map[string]struct{})
	for _, row := range rows {
		pair := strings.TrimSpace(row.FirstName + " " + row.LastName)
		set := names[row.Email]
		if set == nil {
			set = make(map[string]struct{})
			names[row.Email] = set
		}
		set[pair] = struct{}{}
	}

	conflicts := make(map[string][]string)
	for email, set := range names {
		if len(set) < 2 {
			continue
		}
		pairs := make([]string, 0, len(set))
		for pair := range set {
			pairs = append(pairs, pair)
		}
		sort.Strings(pairs)
		conflicts[email] = pairs
	}
	return conflicts
}

// WriteConflictReport writes the conflict map next to the input files for
// operator review.
func WriteConflictReport(path string, conflicts map[string][]string) error {
	data, err := json.MarshalIndent(conflicts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Import writes rows through the ledger store: donor upserts first, then
// idempotent donation inserts, then a full lifetime recompute per donor from
// the donation rows. Re-running the importer over the same files is a no-op
// for every row that carries a transaction id.
func (im *Importer) Import(ctx context.Context, rows []Row) error {
	return im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := im.clock.Now()
		donors := make(map[string]*donordomain.Donor)
		latest := make(map[string]Row)

		for _, row := range rows {
			donor := donors[row.Email]
			if donor == nil {
				existing, err := im.repo.FindByEmail(ctx, tx, row.Email)
				if err != nil {
					return err
				}
				if existing == nil {
					existing = &donordomain.Donor{
						ID:        im.genID.Generate(),
						Email:     row.Email,
						CreatedAt: now,
					}
				}
				donor = existing
				donors[row.Email] = donor
			}
			donor.FirstName = row.FirstName
			donor.LastName = row.LastName
			donor.UpdatedAt = now
			if err := im.repo.SaveDonor(ctx, tx, donor); err != nil {
				return err
			}

			donation := donordomain.Donation{
				ID:           im.genID.Generate(),
				DonorID:      donor.ID,
				Amount:       row.Amount,
				DonationDate: row.DonationDate,
				Source:       donordomain.SourceCSVImport,
				RawEmail:     row.RawEmail,
				CreatedAt:    now,
			}
			if row.TxnID != "" {
				txnID := row.TxnID
				donation.TxnID = &txnID
			}
			if _, err := im.repo.InsertDonation(ctx, tx, &donation); err != nil {
				return err
			}

			if prev, ok := latest[row.Email]; !ok || row.DonationDate.After(prev.DonationDate) {
				latest[row.Email] = row
			}
		}

		// Recompute lifetime totals from the rows themselves rather than
		// incrementing, so partial prior imports cannot skew them.
		for email, donor := range donors {
			total, err := im.repo.SumDonations(ctx, tx, donor.ID)
			if err != nil {
				return err
			}
			donor.LifetimeDonated = total
			if row, ok := latest[email]; ok {
				donor.LastDonationAmount = row.Amount
			}
			donor.PendingUpdate = true
			donor.UpdatedAt = now
			if err := im.repo.SaveDonor(ctx, tx, donor); err != nil {
				return err
			}
		}

		im.log.Info("import committed",
			zap.Int("rows", len(rows)),
			zap.Int("donors", len(donors)),
		)
		return nil
	})
}

func dedupeByTxnID(rows []Row) []Row {
	hasTxnID := false
	for _, row := range rows {
		if row.TxnID != "" {
			hasTxnID = true
			break
		}
	}
	if !hasTxnID {
		return rows
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.TxnID == "" {
			out = append(out, row)
			continue
		}
		if _, dup := seen[row.TxnID]; dup {
			continue
		}
		seen[row.TxnID] = struct{}{}
		out = append(out, row)
	}
	return out
}

func parseGross(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.ReplaceAll(raw, "$", "")
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		raw = "-" + raw[1:len(raw)-1]
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Round(2), nil
}

func parseCSVDate(date, timeOfDay string, fallback time.Time) time.Time {
	date = strings.TrimSpace(date)
	timeOfDay = strings.TrimSpace(timeOfDay)
	if date == "" {
		return fallback
	}
	for _, layout := range csvDateLayouts {
		raw := date
		if timeOfDay != "" {
			raw = date + " " + timeOfDay
		}
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}
