package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RouteSyncer syncs disruptions for every monitored route
type RouteSyncer interface {
	SyncAllRoutes(ctx context.Context) (*SyncSummary, error)
}

// StationSyncer refreshes the station directory
type StationSyncer interface {
	SyncStations(ctx context.Context) (*StationSyncResult, error)
}

// CronSchedules holds the cron expressions (with seconds) of the background jobs
type CronSchedules struct {
	DisruptionSync string
	StationSync    string
	JobTimeout     time.Duration
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	routes    RouteSyncer
	stations  StationSyncer
	schedules CronSchedules
	logger    *logrus.Logger
	entries   map[string]cron.EntryID
}

// NewCronService creates a new CronService
func NewCronService(routes RouteSyncer, stations StationSyncer, schedules CronSchedules, logger *logrus.Logger) *CronService {
	if schedules.JobTimeout <= 0 {
		schedules.JobTimeout = 2 * time.Minute
	}

	// a cycle still running when the next one is due is skipped, not stacked
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)

	return &CronService{
		cron:      c,
		routes:    routes,
		stations:  stations,
		schedules: schedules,
		logger:    logger,
		entries:   map[string]cron.EntryID{},
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Cron format: second minute hour day month weekday
	id, err := s.cron.AddFunc(s.schedules.DisruptionSync, s.disruptionSyncJob)
	if err != nil {
		return fmt.Errorf("failed to schedule disruption sync job: %w", err)
	}
	s.entries["disruption_sync"] = id
	s.logger.WithField("schedule", s.schedules.DisruptionSync).Info("Scheduled: disruption sync")

	id, err = s.cron.AddFunc(s.schedules.StationSync, s.stationSyncJob)
	if err != nil {
		return fmt.Errorf("failed to schedule station sync job: %w", err)
	}
	s.entries["station_sync"] = id
	s.logger.WithField("schedule", s.schedules.StationSync).Info("Scheduled: station sync")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) disruptionSyncJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.schedules.JobTimeout)
	defer cancel()

	if _, err := s.RunDisruptionSyncNow(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Disruption sync failed, retrying on next schedule")
	}
}

func (s *CronService) stationSyncJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.schedules.JobTimeout)
	defer cancel()

	if _, err := s.RunStationSyncNow(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Station sync failed, retrying on next schedule")
	}
}

// RunDisruptionSyncNow runs the disruption sync job immediately
func (s *CronService) RunDisruptionSyncNow(ctx context.Context) (*SyncSummary, error) {
	startTime := time.Now()

	summary, err := s.routes.SyncAllRoutes(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"routes":      summary.Routes,
		"failed":      summary.Failed,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("[CRON] Disruption sync finished")
	return summary, nil
}

// RunStationSyncNow runs the station sync job immediately
func (s *CronService) RunStationSyncNow(ctx context.Context) (*StationSyncResult, error) {
	return s.stations.SyncStations(ctx)
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	jobs := make([]map[string]interface{}, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		jobs = append(jobs, map[string]interface{}{
			"name":     name,
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(s.entries) > 0,
		"job_count": len(s.entries),
		"jobs":      jobs,
	}
}
