/*
main.go - CSV import command

PURPOSE:
  Loads historical syndicate data into the SQLite database without the
  HTTP server.

USAGE:
  import -transactions=history.csv -season="2025/26" -start=2025-08-11 [-end=2026-05-31] [-activate]
  import -calendar=rota.csv -season="2025/26"

  -transactions and -calendar may be given together; transactions are
  imported first so the rota can name the players they create.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/config"
	"github.com/warp/syndicate/importer"
	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/store/sqlite"
	"github.com/warp/syndicate/syndicate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	transactions := flag.String("transactions", "", "transactions CSV (Date,Player,Amount,Transaction)")
	calendar := flag.String("calendar", "", "rota calendar CSV (start_date,player1,player2)")
	seasonName := flag.String("season", "", "season name")
	start := flag.String("start", "", "season start date, YYYY-MM-DD (transactions only)")
	end := flag.String("end", "", "season end date, YYYY-MM-DD (optional)")
	activate := flag.Bool("activate", false, "make the season active")
	flag.Parse()

	logger := cfg.Logger()
	if *seasonName == "" || (*transactions == "" && *calendar == "") {
		flag.Usage()
		os.Exit(2)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()

	svc, err := syndicate.NewService(store,
		syndicate.WithRules(cfg.Rules()),
		syndicate.WithClock(cfg.Clock()),
		syndicate.WithLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to create service")
	}
	im := importer.New(svc, logger)
	ctx := context.Background()

	if *transactions != "" {
		opts := importer.TransactionOptions{SeasonName: *seasonName, Activate: *activate}
		if opts.StartDate, err = time.Parse("2006-01-02", *start); err != nil {
			logger.WithError(err).Fatal("invalid -start date")
		}
		if *end != "" {
			d, err := time.Parse("2006-01-02", *end)
			if err != nil {
				logger.WithError(err).Fatal("invalid -end date")
			}
			opts.EndDate = &d
		}
		res, err := importFile(*transactions, func(f *os.File) (syndicate.HistoryResult, error) {
			return im.ImportTransactions(ctx, f, opts)
		})
		if err != nil {
			logger.WithError(err).Fatal("transaction import failed")
		}
		fmt.Printf("season %s: %d players (%d new), %d bets, entries %v\n",
			res.Season.Name, res.Players, res.PlayersCreated, res.BetsCreated, res.Counts)
	}

	if *calendar != "" {
		season, err := findSeason(ctx, svc, *seasonName)
		if err != nil {
			logger.WithError(err).Fatal("season lookup failed")
		}
		res, err := importFile(*calendar, func(f *os.File) (syndicate.RotaResult, error) {
			return im.ImportCalendar(ctx, f, season.ID)
		})
		if err != nil {
			logger.WithError(err).Fatal("calendar import failed")
		}
		fmt.Printf("rota: %d weeks (%d new), %d assignments\n", res.Weeks, res.WeeksCreated, res.AssignmentsCreated)
		for _, w := range res.Warnings {
			fmt.Println("warning:", w)
		}
	}
}

func importFile[T any](path string, fn func(*os.File) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return fn(f)
}

func findSeason(ctx context.Context, svc *syndicate.Service, name string) (ledger.Season, error) {
	seasons, err := svc.ListSeasons(ctx)
	if err != nil {
		return ledger.Season{}, err
	}
	for _, s := range seasons {
		if s.Name == name {
			return s, nil
		}
	}
	return ledger.Season{}, &ledger.NotFoundError{Kind: "season", ID: name}
}
