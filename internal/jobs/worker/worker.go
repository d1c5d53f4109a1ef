package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/eduforge/coursegen-backend/internal/jobs/runtime"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/services"
	"github.com/eduforge/coursegen-backend/internal/types"
)

// Handler executes one claimed generation run to a terminal status.
type Handler interface {
	Run(jc *runtime.Context) error
}

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      time.Second,
		HeartbeatInterval: 15 * time.Second,
		StaleAfter:        2 * time.Minute,
	}
}

// Worker polls for claimable generation runs and executes them with
// bounded concurrency. A crashed worker's runs are recovered by peers via
// the stale-heartbeat rule in ClaimNextRunnable.
type Worker struct {
	id      string
	cfg     Config
	db      *gorm.DB
	log     *logger.Logger
	runs    repos.GenerationRunRepo
	notify  services.RunNotifier
	handler Handler
}

func NewWorker(cfg Config, db *gorm.DB, baseLog *logger.Logger, runs repos.GenerationRunRepo, notify services.RunNotifier, handler Handler) *Worker {
	if cfg.Concurrency <= 0 {
		cfg = DefaultConfig()
	}
	host, _ := os.Hostname()
	id := fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	return &Worker{
		id:      id,
		cfg:     cfg,
		db:      db,
		log:     baseLog.With("component", "GenerationWorker", "worker_id", id),
		runs:    runs,
		notify:  notify,
		handler: handler,
	}
}

// Start runs the claim loops until ctx is cancelled. It blocks; callers
// run it in a goroutine or errgroup of their own.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("worker starting", "concurrency", w.cfg.Concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.claimLoop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := w.runs.ClaimNextRunnable(ctx, nil, w.id, w.cfg.StaleAfter)
			if err != nil {
				w.log.Warn("claim failed", "error", err)
				continue
			}
			if run == nil {
				continue
			}
			w.execute(ctx, run)
		}
	}
}

func (w *Worker) execute(ctx context.Context, run *types.GenerationRun) {
	log := w.log.With("run_id", run.ID, "course_id", run.CourseID)
	log.Info("run claimed", "attempts", run.Attempts)

	jc := runtime.NewContext(ctx, w.db, run, w.runs, w.notify, w.log)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeatLoop(hbCtx, jc)

	defer func() {
		if r := recover(); r != nil {
			log.Error("run handler panic", "panic", r)
			jc.Fail("panic", "generation crashed unexpectedly")
		}
	}()

	if err := w.handler.Run(jc); err != nil {
		log.Warn("run failed", "error", err)
		return
	}
	log.Info("run completed")
}

func (w *Worker) heartbeatLoop(ctx context.Context, jc *runtime.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jc.Heartbeat()
		}
	}
}
