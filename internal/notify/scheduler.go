package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

// ReportEnqueuer is satisfied by *Dispatcher.
type ReportEnqueuer interface {
	SendHourlyReport(ctx context.Context)
}

// ValidateSpec checks a five-field crontab expression.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler fires the hourly report from the schedule stored in the database
// and follows edits to it.
type Scheduler struct {
	schedules repository.ScheduleRepository
	reports   ReportEnqueuer
	cfg       config.ReportConfig
	log       *slog.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	entry   cron.EntryID
	spec    string
	running bool
}

func NewScheduler(schedules repository.ScheduleRepository, reports ReportEnqueuer, cfg config.ReportConfig, log *slog.Logger) *Scheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	return &Scheduler{
		schedules: schedules,
		reports:   reports,
		cfg:       cfg,
		log:       log,
		cron:      cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
	}
}

// EnsureSchedule creates the report schedule unless one with the configured
// name already exists, in which case the stored one wins.
func (s *Scheduler) EnsureSchedule(ctx context.Context) (*model.Schedule, error) {
	created, err := s.schedules.CreateIfAbsent(ctx, &model.Schedule{
		Name:        s.cfg.ScheduleName,
		Task:        string(model.TaskSendHourlyReport),
		Minute:      s.cfg.Minute,
		Hour:        s.cfg.Hour,
		DayOfWeek:   "*",
		DayOfMonth:  "*",
		MonthOfYear: "*",
		Enabled:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure schedule: %w", err)
	}
	sched, err := s.schedules.GetByName(ctx, s.cfg.ScheduleName)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("load schedule %s: %w", s.cfg.ScheduleName, repository.ErrNotFound)
	}
	s.log.Info("report schedule ready", "name", sched.Name, "spec", sched.CronSpec(), "created", created)
	return sched, nil
}

// Sync registers the stored schedule, replacing the current entry when the
// expression or the enabled flag changed.
func (s *Scheduler) Sync(ctx context.Context) error {
	sched, err := s.schedules.GetByName(ctx, s.cfg.ScheduleName)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	spec := ""
	if sched != nil && sched.Enabled {
		spec = sched.CronSpec()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.spec = spec
	if spec == "" {
		s.log.Info("report schedule disabled")
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() { s.reports.SendHourlyReport(context.Background()) })
	if err != nil {
		s.spec = ""
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}
	s.entry = id
	s.log.Info("report schedule registered", "spec", spec)
	return nil
}

// Start seeds the schedule, registers it and begins polling for edits.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.EnsureSchedule(ctx); err != nil {
		return err
	}
	if err := s.Sync(ctx); err != nil {
		return err
	}
	interval := s.cfg.SyncInterval.String()
	if _, err := s.cron.AddFunc("@every "+interval, func() {
		if err := s.Sync(ctx); err != nil {
			s.log.Error("sync report schedule", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if running {
		<-s.cron.Stop().Done()
	}
}

// Spec is the expression currently registered, empty when none is.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}
