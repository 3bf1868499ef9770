package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/config"
	"github.com/upb/math-rag-agent/internal/observability"
	"github.com/upb/math-rag-agent/middleware"
	"github.com/upb/math-rag-agent/repositories"
	"github.com/upb/math-rag-agent/repositories/postgres"
	"github.com/upb/math-rag-agent/repositories/qdrant"
	"github.com/upb/math-rag-agent/services/audit"
	"github.com/upb/math-rag-agent/services/feedback"
	"github.com/upb/math-rag-agent/services/guardrails"
	"github.com/upb/math-rag-agent/services/knowledge"
	"github.com/upb/math-rag-agent/services/providers"
	"github.com/upb/math-rag-agent/services/providers/gemini"
	"github.com/upb/math-rag-agent/services/providers/openai"
	routingsvc "github.com/upb/math-rag-agent/services/routing"
	"github.com/upb/math-rag-agent/services/search"
	"github.com/upb/math-rag-agent/services/solver"
	"github.com/upb/math-rag-agent/services/websearch"
)

// MaxInjectionRisk is the prompt-injection risk score at which questions are refused
const MaxInjectionRisk = 0.7

const auditWriteTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Feedback    repositories.FeedbackRepository
	APICallLogs repositories.APICallLogRepository
	TxManager   repositories.TransactionManager

	// Answer sources
	VectorIndex *qdrant.Client
	webClient   *client.Client

	// Services
	Router          *routingsvc.Router
	Guardrails      *guardrails.Service
	Audit           *audit.Service
	SearchService   *search.Service
	FeedbackService *feedback.Service

	// Auth
	TokenIssuer    *middleware.HMACValidator
	AuthMiddleware *middleware.AuthMiddleware

	closed bool
}

// Sources are the three answer stages handed to the router. Web may be nil.
type Sources struct {
	Knowledge routingsvc.KnowledgeRetriever
	Web       routingsvc.WebSearcher
	Solver    routingsvc.Solver
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	kb, err := deps.initKnowledgeBase(cfg)
	if err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize knowledge base: %w", err)
	}

	sol, err := deps.initSolver(cfg)
	if err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize solver: %w", err)
	}

	sources := Sources{Knowledge: kb, Solver: sol}
	if web := deps.initWebSearch(ctx, cfg); web != nil {
		sources.Web = web
	}

	if err := deps.InitServices(sources); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the pool and makes sure the schema exists
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Feedback = repos.Feedback
	d.APICallLogs = repos.APICallLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initKnowledgeBase(cfg *config.Config) (*knowledge.Retriever, error) {
	index, err := qdrant.NewClient(qdrant.Config{
		URL:        cfg.KnowledgeBase.QdrantURL,
		APIKey:     cfg.KnowledgeBase.APIKey,
		Collection: cfg.KnowledgeBase.Collection,
		Timeout:    cfg.KnowledgeBase.Timeout,
		MaxRetries: cfg.KnowledgeBase.MaxRetries,
	}, d.Logger)
	if err != nil {
		return nil, err
	}
	d.VectorIndex = index

	embedder, err := knowledge.NewLangchainEmbedder(knowledge.EmbedderConfig{
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey,
		Model:     cfg.Embeddings.Model,
		CacheSize: cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	d.Logger.Info("knowledge base configured",
		zap.String("collection", cfg.KnowledgeBase.Collection),
		zap.String("embedding_model", cfg.Embeddings.Model))
	return knowledge.NewRetriever(embedder, index, cfg.Router.TopK, d.Logger), nil
}

// initWebSearch connects to the MCP server. Web search is optional: when it
// is not configured or cannot be reached, the router skips the stage.
func (d *Dependencies) initWebSearch(ctx context.Context, cfg *config.Config) *websearch.Retriever {
	if cfg.WebSearch.Command == "" && cfg.WebSearch.URL == "" {
		d.Logger.Warn("web search not configured, MCP stage disabled")
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Router.MCPTimeout)
	defer cancel()

	c, err := websearch.Connect(connectCtx, websearch.ClientConfig{
		Command: cfg.WebSearch.Command,
		Args:    cfg.WebSearch.Args,
		URL:     cfg.WebSearch.URL,
	}, d.Logger)
	if err != nil {
		d.Logger.Warn("web search unavailable, MCP stage disabled", zap.Error(err))
		return nil
	}

	d.webClient = c
	return websearch.NewRetriever(c, cfg.WebSearch.ToolName, cfg.WebSearch.MaxResults, d.Logger)
}

func (d *Dependencies) initSolver(cfg *config.Config) (*solver.Solver, error) {
	registry, err := NewProviderRegistry()
	if err != nil {
		return nil, err
	}

	providerCfg := providers.DefaultProviderConfig()
	providerCfg.APIKey = cfg.Solver.APIKey
	providerCfg.BaseURL = cfg.Solver.BaseURL
	providerCfg.DefaultModel = cfg.Solver.Model
	providerCfg.Timeout = cfg.Router.LLMTimeout
	providerCfg.MaxRetries = cfg.Solver.MaxRetries

	provider, err := registry.Build(cfg.Solver.Provider, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s provider: %w", cfg.Solver.Provider, err)
	}

	d.Logger.Info("solver configured",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Solver.Model))

	return solver.NewSolver(provider, solver.Config{
		Model:           cfg.Solver.Model,
		Temperature:     cfg.Solver.Temperature,
		MaxOutputTokens: cfg.Solver.MaxOutputTokens,
	}, d.Logger), nil
}

// NewProviderRegistry returns a registry holding every supported solver backend
func NewProviderRegistry() (*providers.Registry, error) {
	registry := providers.NewRegistry()
	if err := registry.Register("gemini", gemini.New); err != nil {
		return nil, err
	}
	if err := registry.Register("openai", openai.New); err != nil {
		return nil, err
	}
	return registry, nil
}

// InitServices builds the router and the services on top of the answer
// sources and the repositories already set on d, then starts the audit
// workers.
func (d *Dependencies) InitServices(sources Sources) error {
	if d.APICallLogs == nil || d.Feedback == nil || d.TxManager == nil {
		return errors.New("repositories must be initialized first")
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics()
	}
	cfg := d.Config

	d.Router = routingsvc.NewRouter(
		sources.Knowledge,
		sources.Web,
		sources.Solver,
		cfg.Router.RoutingConfig(),
		d.Metrics,
		d.Logger,
	)

	d.Guardrails = guardrails.NewService(
		guardrails.NewPatternChecker(MaxInjectionRisk),
		cfg.Router.MaxQuestionLength,
		d.Logger,
	)

	d.Audit = audit.NewService(d.APICallLogs, d.Metrics, d.Logger, audit.Config{
		BufferSize:   cfg.Audit.BufferSize,
		WorkerCount:  cfg.Audit.WorkerCount,
		WriteTimeout: auditWriteTimeout,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.SearchService = search.NewService(
		d.Guardrails,
		d.Router,
		d.Audit,
		d.Metrics,
		int64(cfg.Server.MaxConcurrentRequests),
		d.Logger,
	)

	d.FeedbackService = feedback.NewService(d.Feedback, d.APICallLogs, d.TxManager, d.Metrics, d.Logger)

	d.Logger.Info("services initialized",
		zap.Float64("high_threshold", cfg.Router.HighThreshold),
		zap.Float64("medium_threshold", cfg.Router.MediumThreshold),
		zap.Bool("web_search", sources.Web != nil))
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	validator, err := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		d.Logger.Warn("jwt secret not configured, admin endpoints disabled", zap.Error(err))
		// A nil validator rejects every request on protected routes
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	d.TokenIssuer = validator
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("admin auth initialized", zap.String("issuer", cfg.Auth.Issuer))
}

// Close gracefully shuts down all dependencies. Calling it twice is a no-op.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the audit queue before the pool goes away
	if d.Audit != nil {
		timeout := auditWriteTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.webClient != nil {
		if err := d.webClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close web search client: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
