// Command csvimport loads PayPal activity CSV exports into the donation
// ledger. It is a one-shot operator tool: parse, dedupe, report name
// conflicts, then commit in a single transaction.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sudocentral/paypal-mailwizz/internal/clock"
	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/csvimport"
	"github.com/sudocentral/paypal-mailwizz/internal/donor/repository"
	"github.com/sudocentral/paypal-mailwizz/internal/migration"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/logger"
)

func main() {
	var (
		dryRun     bool
		force      bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "csvimport [files or globs]",
		Short: "Import PayPal activity CSV exports into the donation ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, dryRun, force, reportPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing to the database")
	cmd.Flags().BoolVar(&force, "force", false, "proceed even when name conflicts are present")
	cmd.Flags().StringVar(&reportPath, "report", "name_conflicts.json", "path for the name conflict report")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, patterns []string, dryRun, force bool, reportPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	paths, err := expand(patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files match %v", patterns)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		return err
	}

	conn, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := migration.RunMigrations(sqlDB); err != nil {
		return err
	}

	importer := csvimport.NewImporter(conn, log, node, clock.SystemClock{}, repository.Provide())
	rows, err := importer.LoadFiles(paths)
	if err != nil {
		return err
	}
	log.Info("files parsed",
		zap.Int("files", len(paths)),
		zap.Int("rows", len(rows)),
	)

	conflicts := csvimport.NameConflicts(rows)
	if len(conflicts) > 0 {
		if err := csvimport.WriteConflictReport(reportPath, conflicts); err != nil {
			return err
		}
		log.Warn("name conflicts found",
			zap.Int("emails", len(conflicts)),
			zap.String("report", reportPath),
		)
		if !force {
			return fmt.Errorf("%d emails with conflicting names, review %s or rerun with --force", len(conflicts), reportPath)
		}
	}

	if dryRun {
		log.Info("dry run complete, nothing written")
		return nil
	}
	return importer.Import(ctx, rows)
}

// expand resolves glob patterns to a sorted, deduped file list. Plain paths
// pass through untouched so missing files fail loudly at open time.
func expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil {
			matches = []string{pattern}
		}
		for _, match := range matches {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			paths = append(paths, match)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
