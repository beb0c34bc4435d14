// hoactl is the operations CLI: legacy data imports, purges, penalty
// recalculation and ledger consistency checks. Destructive commands default
// to dry runs.
//
// Exit codes: 0 success, 1 failure, 2 safety check refused the operation.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bahiamar/hoa-backend/internal/config"
	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/importer"
	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/repository/storage"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/store/memory"
	"github.com/bahiamar/hoa-backend/internal/store/postgres"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:           "hoactl",
		Short:         "Operations tooling for the HOA accounting backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(importCmd(), purgeCmd(), recalcCmd(), orphanScanCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		if domain.KindOf(err) == domain.KindSafetyCheck {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// env assembles the store and supporting services shared by all commands.
type env struct {
	cfg   *config.Config
	store store.Store
	loc   *time.Location
	close func()
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = fiscal.DefaultLocation
	}

	e := &env{cfg: cfg, loc: loc, close: func() {}}
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		e.store = postgres.New(pool)
		e.close = pool.Close
	case "memory":
		e.store = memory.New()
	}
	return e, nil
}

// consoleReporter logs step progress as the job advances.
func consoleReporter(run *domain.ImportRun) {
	for _, s := range run.Steps {
		if s.Status == domain.JobRunning {
			log.Info().Str("step", s.Name).Int("processed", s.Processed).Msg("Progress")
		}
	}
}

func importCmd() *cobra.Command {
	var clientID, dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a legacy JSON export into a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			var files port.FileSource
			if dir != "" {
				files = storage.NewDirSource(dir)
			} else {
				files, err = storage.NewS3Source(ctx, e.cfg.S3, clientID)
				if err != nil {
					return err
				}
			}

			audit := service.NewAuditService(e.store)
			ids := fiscal.NewIDGenerator(e.loc)
			imp := importer.NewImporter(e.store, audit, ids, importer.ReporterFunc(consoleReporter))

			run, err := imp.Run(ctx, clientID, "hoactl", files)
			if err != nil {
				return err
			}
			fmt.Printf("import %s completed, run %s\n", clientID, run.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "target client ID (required)")
	cmd.Flags().StringVar(&dir, "dir", "", "local directory of export files; defaults to the configured S3 bucket")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func purgeCmd() *cobra.Command {
	var (
		clientID string
		execute  bool
		exclude  []string
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete a client's document tree (dry run unless --execute)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			p := importer.NewPurger(e.store, service.NewAuditService(e.store), importer.ReporterFunc(consoleReporter))
			result, err := p.Purge(ctx, clientID, importer.PurgeOptions{
				Execute:   execute,
				Exclude:   exclude,
				StartedBy: "hoactl",
			})
			if err != nil {
				return err
			}
			mode := "dry run"
			if execute {
				mode = "executed"
			}
			fmt.Printf("purge %s (%s): %d examined, %d deleted, %d ghost docs\n",
				clientID, mode, result.DocsExamined, result.DocsDeleted, result.GhostDocs)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "target client ID (required)")
	cmd.Flags().BoolVar(&execute, "execute", false, "actually delete; without it the walk only reports")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "top-level subcollections to keep")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func recalcCmd() *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "recalc-penalties",
		Short: "Recalculate water bill penalties for every unpaid bill",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			audit := service.NewAuditService(e.store)
			clients := service.NewClientService(e.store, audit)
			penalty := service.NewPenaltyService(e.store, clients)

			result, err := penalty.RecalculateAll(ctx, clientID)
			if err != nil {
				return err
			}
			fmt.Printf("penalties %s: %d bills examined, %d units updated, %d skipped, %d not yet due\n",
				clientID, result.BillsExamined, result.UnitsUpdated, result.UnitsSkipped, result.BillsNotYetDue)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "target client ID (required)")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func orphanScanCmd() *cobra.Command {
	var (
		clientID string
		fix      bool
	)
	cmd := &cobra.Command{
		Use:   "orphan-scan",
		Short: "Find ledger entries referencing missing transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			scanner := importer.NewOrphanScanner(e.store)
			result, err := scanner.Scan(ctx, clientID, fix)
			if err != nil {
				return err
			}
			for _, o := range result.Orphans {
				fmt.Printf("orphan %-10s unit=%-6s tx=%s (%s)\n", o.Kind, o.UnitID, o.TransactionID, o.DocPath)
			}
			fmt.Printf("orphan-scan %s: %d docs scanned, %d orphans, %d docs fixed\n",
				clientID, result.DocsScanned, len(result.Orphans), result.Fixed)
			if len(result.Orphans) > 0 && !fix {
				return errors.New("orphan references found; rerun with --fix to clear them")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "target client ID (required)")
	cmd.Flags().BoolVar(&fix, "fix", false, "clear orphaned references and recompute totals")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}
