package main

import (
	"context"
	"database/sql"
	"fmt"

	"sqlinsight/internal/api"
	"sqlinsight/internal/config"
	"sqlinsight/internal/data"
	"sqlinsight/internal/llm"
	"sqlinsight/internal/logger"
	"sqlinsight/internal/service"
)

// app holds the wired services shared by the server and the CLI commands.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	prompts    *config.PromptStore
	auth       *service.AuthService
	databases  *service.DatabaseService
	queries    *service.QueryService
	dashboards *service.DashboardService
	runner     *service.DashboardRunner
	auditRepo  *data.AuditRepo
}

func newApp(cfg *config.Config) (*app, error) {
	// 1. Metadata store
	db, err := data.InitDB(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	// 2. Repositories
	userRepo := data.NewUserRepo(db)
	apiKeyRepo := data.NewApiKeyRepo(db)
	auditRepo := data.NewAuditRepo(db)
	databaseRepo := data.NewDatabaseRepo(db)
	queryRepo := data.NewQueryRepo(db)
	dashboardRepo := data.NewDashboardRepo(db)

	// 3. Crypto and prompt templates
	cryptoSvc, err := service.NewEncryptionService(cfg.SecretKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init crypto service: %w", err)
	}
	prompts, err := config.NewPromptStore(cfg.PromptsPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	assembler := service.NewPromptAssembler(prompts)

	// 4. Language model and guardrails
	completer := newCompleter(cfg)
	input, output, err := newFilters(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	guarded := llm.NewPipeline(completer, input, output)

	// 5. Services
	schemas, err := service.NewSchemaCache(cfg.SchemaCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	databases := service.NewDatabaseService(databaseRepo, service.NewSchemaIntrospector().SetTimeout(cfg.QueryTimeout), cryptoSvc, schemas, cfg.SupportedProviders)
	post := service.NewPostProcessor(completer, assembler)
	pipeline := service.NewQueryPipeline(
		service.NewSQLGenerator(guarded, assembler),
		service.NewQueryExecutor(auditRepo, cfg.RowLimit).SetTimeout(cfg.QueryTimeout),
		post,
	)

	return &app{
		cfg:        cfg,
		db:         db,
		prompts:    prompts,
		auth:       service.NewAuthService(userRepo, apiKeyRepo),
		databases:  databases,
		queries:    service.NewQueryService(queryRepo, databases, pipeline, post),
		dashboards: service.NewDashboardService(dashboardRepo, queryRepo, databaseRepo),
		runner:     service.NewDashboardRunner(dashboardRepo, queryRepo, databases, pipeline, cfg.DashboardConcurrency),
		auditRepo:  auditRepo,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// handler builds the /api handler. The limiter's cleanup stops with ctx.
func (a *app) handler(ctx context.Context) *api.Handler {
	return api.NewHandler(api.Deps{
		Databases:  a.databases,
		Queries:    a.queries,
		Dashboards: a.dashboards,
		Runner:     a.runner,
		Auth:       a.auth,
		Audit:      a.auditRepo,
		Limiter:    api.NewRateLimiter(a.cfg.RateLimitPerMinute, a.cfg.RateLimitBurst, ctx.Done()),
	})
}

func newCompleter(cfg *config.Config) llm.Completer {
	if cfg.LLMProvider == "anthropic" {
		logger.Info.Printf("Using Anthropic model %s", cfg.LLMModel)
		return llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	}
	logger.Info.Printf("Using OpenAI-compatible model %s", cfg.LLMModel)
	return llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
}

// newFilters assembles the guardrail chain. The rails service runs first,
// then local rules, then the read-only SQL check on output.
func newFilters(cfg *config.Config) (input, output []llm.Filter, err error) {
	if cfg.GuardrailsURL != "" {
		rails := llm.NewRailsFilter(cfg.GuardrailsURL, cfg.GuardrailsConfigID, cfg.LLMTimeout)
		input = append(input, rails)
		output = append(output, rails)
	}
	if cfg.GuardrailsRules != "" {
		rules, err := llm.LoadRules(cfg.GuardrailsRules)
		if err != nil {
			return nil, nil, err
		}
		input = append(input, rules)
		output = append(output, rules)
	}
	if cfg.ReadOnlySQL {
		output = append(output, llm.ReadOnlyFilter{})
	}
	if len(input)+len(output) == 0 {
		logger.Warn.Println("No guardrails configured; SQL generation is unfiltered")
	}
	return input, output, nil
}
