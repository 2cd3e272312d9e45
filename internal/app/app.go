package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/handlers"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/jobs/admission"
	"github.com/ternarybob/claimscope/internal/jobs/executor"
	"github.com/ternarybob/claimscope/internal/jobs/orchestrator"
	"github.com/ternarybob/claimscope/internal/pipeline"
	"github.com/ternarybob/claimscope/internal/services/analysis"
	"github.com/ternarybob/claimscope/internal/services/contextbuilder"
	"github.com/ternarybob/claimscope/internal/services/events"
	"github.com/ternarybob/claimscope/internal/services/llm"
	"github.com/ternarybob/claimscope/internal/services/prompts"
	"github.com/ternarybob/claimscope/internal/services/scheduler"
	"github.com/ternarybob/claimscope/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     *events.Service
	SchedulerService *scheduler.Service

	// Pipeline
	Definition     *pipeline.Definition
	Prompts        *prompts.Manager
	LLMClient      interfaces.LLMClient
	ContextBuilder interfaces.ContextBuilder
	StageExecutor  *executor.StageExecutor
	Orchestrator   *orchestrator.PipelineOrchestrator
	BatchScheduler *admission.BatchScheduler

	// Exposed operations (CLI, HTTP, MCP)
	AnalysisService *analysis.Service

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	JobHandler  *handlers.JobHandler
	CronHandler *handlers.CronHandler
	WSHandler   *handlers.WebSocketHandler
}

// New wires every component. The cron trigger is created but not started;
// call StartScheduler for long-running processes.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}
	app := &App{
		Config:     cfg,
		Logger:     logger,
		Definition: pipeline.Default(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to subscribe event logger")
	}

	app.initServices()
	app.initHandlers()

	logger.Info().
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Str("llm_model", app.LLMClient.Model()).
		Str("prompts_dir", cfg.Pipeline.PromptsDir).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() {
	ctx := context.Background()

	a.Prompts = prompts.NewManager(a.Config.Pipeline.PromptsDir, a.Logger)

	provider, err := llm.NewProvider(ctx, a.Config, a.StorageManager.KeyValueStorage(), a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize LLM provider - stage execution will fail until an API key is configured")
		a.LLMClient = llm.NewUnavailableClient(err)
	} else {
		retry := llm.NewDefaultRetryConfig()
		if a.Config.LLM.MaxRetries >= 0 {
			retry.MaxRetries = a.Config.LLM.MaxRetries
		}
		a.LLMClient = llm.NewClient(provider, llm.SettingsFor(a.Config, provider.Name()), retry, a.Logger)
	}

	a.ContextBuilder = contextbuilder.NewStoreBuilder(a.StorageManager.MasterDataStorage(), a.Logger)
	a.StageExecutor = executor.NewStageExecutor(a.Prompts, a.LLMClient, a.Config.Pipeline.Temperature, a.Logger)

	a.Orchestrator = orchestrator.NewPipelineOrchestrator(
		a.Definition,
		a.StorageManager,
		a.StageExecutor,
		a.ContextBuilder,
		a.EventService,
		a.Logger,
	)

	a.BatchScheduler = admission.NewBatchScheduler(
		a.StorageManager.JobStorage(),
		a.Orchestrator,
		a.EventService,
		a.Logger,
	)

	a.AnalysisService = analysis.NewService(
		a.StorageManager,
		a.ContextBuilder,
		a.Orchestrator,
		a.BatchScheduler,
		a.EventService,
		a.Config.Scheduler,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.AnalysisService, a.Logger)
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.SchedulerService, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.AnalysisService, a.Logger)
	a.CronHandler = handlers.NewCronHandler(a.AnalysisService, a.StorageManager.KeyValueStorage(), a.Config.Cron.Secret, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
}

// StartScheduler starts the cron trigger when [scheduler].enabled is set
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Debug().Msg("Scheduled sweeps disabled")
		return nil
	}
	if err := a.SchedulerService.Start(a.Config.Scheduler.Schedule); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close stops background services and closes storage
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Give async event handlers a moment to drain before storage goes away
	time.Sleep(50 * time.Millisecond)

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
