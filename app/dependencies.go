package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/minichat-gateway/config"
	"github.com/upb/minichat-gateway/internal/observability"
	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/repositories"
	"github.com/upb/minichat-gateway/repositories/postgres"
	redisstore "github.com/upb/minichat-gateway/repositories/redis"
	"github.com/upb/minichat-gateway/services/access"
	"github.com/upb/minichat-gateway/services/account"
	"github.com/upb/minichat-gateway/services/admin"
	"github.com/upb/minichat-gateway/services/audit"
	"github.com/upb/minichat-gateway/services/chat"
	"github.com/upb/minichat-gateway/services/history"
	"github.com/upb/minichat-gateway/services/identity"
	"github.com/upb/minichat-gateway/services/providers"
	"github.com/upb/minichat-gateway/services/providers/dify"
	"github.com/upb/minichat-gateway/services/providers/openai"
	"github.com/upb/minichat-gateway/services/quota"
	"github.com/upb/minichat-gateway/services/session"
	"go.uber.org/zap"
)

// defaultAuditDrainTimeout bounds the audit queue drain when no shutdown timeout is configured
const defaultAuditDrainTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point: connections are opened here and injected into components.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Redis   *redisstore.Client
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories and stores
	Users      repositories.UserRepository
	ChatLogs   repositories.ChatLogRepository
	AuditLogs  repositories.AuditRepository
	TxManager  repositories.TransactionManager
	TokenStore repositories.TokenStore
	QuotaStore repositories.QuotaStore

	// Upstreams
	Identity  identity.Exchanger
	Providers *providers.Registry

	// Services
	Issuer    *session.Issuer
	Validator *session.Validator
	Access    *access.Policy
	Ledger    *quota.Ledger
	Audit     *audit.AuditService
	Accounts  *account.Service
	Chat      *chat.Service
	History   *history.Service
	Admin     *admin.Service

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies opens Postgres and Redis, then wires every service on top of them
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initRedis(ctx, cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	deps.initRepositories(cfg)

	if err := deps.InitServices(); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := d.DB.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRedis connects the token store (and optionally quota store) backend
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) error {
	client, err := redisstore.New(cfg.Redis, d.Logger)
	if err != nil {
		return err
	}
	if err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return err
	}

	d.Redis = client
	d.Logger.Info("redis connection established")
	return nil
}

// initRepositories creates repositories and picks the quota backend
func (d *Dependencies) initRepositories(cfg *config.Config) {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.ChatLogs = repos.ChatLogs
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.TokenStore = redisstore.NewTokenStore(d.Redis)

	switch cfg.Chat.QuotaBackend {
	case config.QuotaBackendPostgres:
		d.QuotaStore = d.RepoFactory.NewQuotaStore()
	default:
		d.QuotaStore = redisstore.NewQuotaStore(d.Redis)
	}

	d.Logger.Info("repositories initialized",
		zap.String("quota_backend", cfg.Chat.QuotaBackend))
}

// InitServices builds every service from the repositories and stores already set on d.
// Tests call it directly after filling the repository fields with fakes.
func (d *Dependencies) InitServices() error {
	cfg := d.Config

	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics()
	}

	if err := d.initProviders(cfg); err != nil {
		return err
	}

	if d.Identity == nil {
		d.Identity = identity.NewWeChatExchanger(identity.Config{
			AppID:     cfg.WeChat.AppID,
			AppSecret: cfg.WeChat.AppSecret,
			BaseURL:   cfg.WeChat.BaseURL,
			Timeout:   cfg.WeChat.Timeout,
		}, d.Logger)
	}

	location, err := cfg.Chat.Location()
	if err != nil {
		return fmt.Errorf("invalid quota timezone: %w", err)
	}

	sessionCfg := session.Config{
		Secret:           []byte(cfg.Session.JWTSecret),
		TTL:              cfg.Session.TokenTTL,
		RefreshThreshold: cfg.Session.RefreshThreshold,
	}
	d.Issuer = session.NewIssuer(d.TokenStore, sessionCfg, d.Logger)
	d.Validator = session.NewValidator(d.TokenStore, sessionCfg, d.Logger)

	d.Access = access.NewPolicy(d.Users, access.Config{
		AllowedRoles:       cfg.Chat.AllowedRoles,
		LegacyRoleFailOpen: cfg.Chat.LegacyRoleFailOpen,
	}, d.Logger)
	d.Ledger = quota.NewLedger(d.QuotaStore, location, d.Logger)

	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Accounts = account.NewService(d.Identity, d.Users, d.TxManager, d.Issuer, d.Audit, d.Logger)
	d.Chat = chat.NewService(d.Access, d.Ledger, d.Providers, d.ChatLogs, d.Audit, d.Metrics, chat.Config{
		DailyLimit:      cfg.Chat.DailyLimit,
		UpstreamTimeout: cfg.Chat.UpstreamTimeout,
	}, d.Logger)
	d.History = history.NewService(d.ChatLogs, d.Ledger, cfg.Chat.DailyLimit, d.Logger)
	d.Admin = admin.NewService(d.Users, d.ChatLogs, d.AuditLogs, d.Ledger, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, d.Metrics, d.Logger)

	d.Logger.Info("services initialized",
		zap.Int("daily_limit", cfg.Chat.DailyLimit),
		zap.Strings("providers", d.Providers.ListProviders()))
	return nil
}

// initProviders registers Dify and, when configured, the OpenAI-compatible provider
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if err := registry.RegisterProvider(dify.NewDifyAdapter(providers.ProviderConfig{
		APIKey:  cfg.Providers.Dify.APIKey,
		BaseURL: cfg.Providers.Dify.BaseURL,
		Timeout: cfg.Providers.Dify.Timeout,
	})); err != nil {
		return fmt.Errorf("failed to register dify provider: %w", err)
	}
	if cfg.Providers.Dify.APIKey == "" {
		d.Logger.Warn("dify API key not configured; chat requests will fail upstream")
	}

	if cfg.Providers.OpenAI.APIKey != "" {
		if err := registry.RegisterProvider(openai.NewOpenAIAdapter(providers.ProviderConfig{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			Model:   cfg.Providers.OpenAI.Model,
			Timeout: cfg.Providers.OpenAI.Timeout,
		})); err != nil {
			return fmt.Errorf("failed to register openai provider: %w", err)
		}
		d.Logger.Info("registered OpenAI provider", zap.String("model", cfg.Providers.OpenAI.Model))
	}

	if cfg.Chat.DefaultProvider != "" {
		if err := registry.SetDefault(cfg.Chat.DefaultProvider); err != nil {
			return fmt.Errorf("default provider %q is not configured: %w", cfg.Chat.DefaultProvider, err)
		}
	}

	d.Providers = registry
	return nil
}

// Close gracefully shuts down all dependencies. The audit queue is drained first.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultAuditDrainTimeout
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
