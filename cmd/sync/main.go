package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/commutewatch/backend/internal/config"
	"github.com/commutewatch/backend/internal/database"
	"github.com/commutewatch/backend/internal/services"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func usageAndDie() {
	fmt.Fprintln(os.Stderr, "Usage:\n"+
		"    sync --all\n"+
		"    sync --route <route-id>\n"+
		"    sync --stations")
	pflag.PrintDefaults()
	os.Exit(2)
}

func main() {
	routeFlag := pflag.StringP("route", "r", "", "Sync disruptions for one route")
	allFlag := pflag.BoolP("all", "a", false, "Sync disruptions for every route")
	stationsFlag := pflag.BoolP("stations", "s", false, "Refresh the station directory")
	timeout := pflag.DurationP("timeout", "t", 2*time.Minute, "Abort the run after this long")
	dbURLFlag := pflag.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	pflag.Parse()

	selected := 0
	for _, set := range []bool{*routeFlag != "", *allFlag, *stationsFlag} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		usageAndDie()
	}

	var routeID uuid.UUID
	if *routeFlag != "" {
		parsed, err := uuid.Parse(*routeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid route id %q: %v\n", *routeFlag, err)
			os.Exit(2)
		}
		routeID = parsed
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	if *dbURLFlag != "" {
		os.Setenv("DATABASE_URL", *dbURLFlag)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	nsClient := ns.NewClient(ns.Config{
		BaseURL: cfg.NS.BaseURL,
		APIKey:  cfg.NS.APIKey,
		Timeout: cfg.NS.Timeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result interface{}
	switch {
	case *stationsFlag:
		directory := services.NewStationDirectory(database.NewStationRepository(db), nsClient, cfg.Sync.StationCacheTTL, logger)
		result, err = directory.SyncStations(ctx)
	default:
		syncService := services.NewDisruptionSyncService(
			nsClient,
			database.NewRouteRepository(db),
			database.NewDisruptionRepository(db),
			database.NewRouteStatusRepository(db),
			cfg.Sync.Concurrency,
			logger,
		)
		if *allFlag {
			result, err = syncService.SyncAllRoutes(ctx)
		} else {
			result, err = syncService.SyncRoute(ctx, routeID)
		}
	}
	if err != nil {
		// deferred Close does not run after os.Exit
		db.Close()
		logger.WithError(err).Error("Sync failed")
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.WithError(err).Error("Failed to write result")
	}

	// partial failures still exit non-zero so the scheduler retries
	if summary, ok := result.(*services.SyncSummary); ok && summary.Failed > 0 {
		db.Close()
		os.Exit(1)
	}
}
