package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/eduforge/coursegen-backend/internal/db"
	"github.com/eduforge/coursegen-backend/internal/generate"
	appHTTP "github.com/eduforge/coursegen-backend/internal/http"
	"github.com/eduforge/coursegen-backend/internal/http/handlers"
	"github.com/eduforge/coursegen-backend/internal/interview"
	"github.com/eduforge/coursegen-backend/internal/jobs/worker"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/observability"
	"github.com/eduforge/coursegen-backend/internal/pipeline"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
	"github.com/eduforge/coursegen-backend/internal/platform/qdrant"
	"github.com/eduforge/coursegen-backend/internal/repos"
	"github.com/eduforge/coursegen-backend/internal/services"
	"github.com/eduforge/coursegen-backend/internal/tools"
)

// App owns the wired service graph: HTTP API plus the generation worker.
type App struct {
	cfg      Config
	log      *logger.Logger
	server   *appHTTP.Server
	worker   *worker.Worker
	shutdown []func(context.Context) error
}

func New(cfg Config, log *logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "coursegen-backend",
		Environment: cfg.Env,
		Version:     cfg.Version,
	})
	if otelShutdown != nil {
		a.shutdown = append(a.shutdown, otelShutdown)
	}

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("postgres migration: %w", err)
	}
	gdb := pg.DB()

	// Repos
	courseRepo := repos.NewCourseRepo(gdb, log)
	runRepo := repos.NewGenerationRunRepo(gdb, log)

	// Platform clients
	openaiCfg, err := openai.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("openai config: %w", err)
	}
	model := openai.NewClient(openaiCfg, log, nil)

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("qdrant config: %w", err)
	}
	store, err := qdrant.NewVectorStore(log, qdrantCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("qdrant init: %w", err)
	}
	if err := qdrant.EnsureCollection(context.Background(), store); err != nil {
		return nil, fmt.Errorf("qdrant collection: %w", err)
	}

	notify, err := services.NewRedisRunNotifier(log)
	if err != nil {
		log.Warn("redis notifier unavailable, run events disabled", "error", err)
		notify = services.NopRunNotifier{}
	} else {
		a.shutdown = append(a.shutdown, func(context.Context) error { return notify.Close() })
	}

	// Knowledge base and generation clients
	index := knowledge.NewIndex(log, model, store)
	gen := generate.NewClient(log, model, generate.Policy{
		MaxAttempts: cfg.Generation.MaxAttempts,
		Backoff:     cfg.Generation.Backoff.Std(),
		CallTimeout: cfg.Generation.CallTimeout.Std(),
	})

	searcher, err := tools.NewWebSearcher(log)
	if err != nil {
		return nil, fmt.Errorf("web searcher: %w", err)
	}
	toolbox := &pipeline.Toolbox{
		Searcher:  searcher,
		Browser:   tools.NewPageBrowser(log),
		Videos:    tools.NewVideoSearcher(log),
		Responder: model,
		Index:     index,
	}

	// Pipeline
	planner := pipeline.NewStructurePlanner(log, gen, toolbox)
	content := pipeline.NewContentGenerator(log, gen, toolbox)
	assignments := pipeline.NewAssignmentGenerator(log, gen)
	modules := pipeline.NewModulePipeline(log, gen, courseRepo, index, content, assignments)
	orch := pipeline.NewOrchestrator(log, courseRepo, planner, modules, assignments, cfg.Generation.RunTimeout.Std())

	a.worker = worker.NewWorker(worker.Config{
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval.Std(),
		HeartbeatInterval: cfg.Worker.HeartbeatInterval.Std(),
		StaleAfter:        cfg.Worker.StaleAfter.Std(),
	}, gdb, log, runRepo, notify, orch)

	// HTTP surface
	sessions := interview.NewManager(log, model, gen, index)
	a.server = appHTTP.NewServer(appHTTP.RouterConfig{
		CourseHandler:    handlers.NewCourseHandler(log, courseRepo, runRepo),
		InterviewHandler: handlers.NewInterviewHandler(log, sessions, courseRepo, runRepo),
		KnowledgeHandler: handlers.NewKnowledgeHandler(log, index),
		HealthHandler:    handlers.NewHealthHandler(),
	})

	return a, nil
}

// Run starts the worker and HTTP server and blocks until either stops.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.worker.Start(ctx)
	})
	g.Go(func() error {
		a.log.Info("http server starting", "port", a.cfg.Port)
		return a.server.Run(":" + a.cfg.Port)
	})
	return g.Wait()
}

// Close flushes tracing and closes shared clients.
func (a *App) Close(ctx context.Context) {
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.log.Warn("shutdown hook failed", "error", err)
		}
	}
}
