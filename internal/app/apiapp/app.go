package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/config"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/domain/rules"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/events"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/gateway/fanout"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/gateway/paystack"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/jobs/expiry"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	pgrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/postgres"
	redrepo "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/repo/redis"
	activationsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/activation"
	authsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/auth"
	boostsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/boost"
	purchasesvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/purchases"
	quotasvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/quotas"
)

type App struct {
	cfg         config.Config
	logger      *zap.Logger
	server      *http.Server
	postgres    *pgxpool.Pool
	redis       *goredis.Client
	boostEngine *boostsvc.Engine
	expiryJob   *expiry.Job
	httpRouter  http.Handler
	stopJobs    context.CancelFunc
}

// fanoutNotifier adapts the fanout HTTP client to the boost engine's
// notifier port.
type fanoutNotifier struct {
	client *fanout.Client
}

func (n fanoutNotifier) Send(ctx context.Context, userIDs []int64, payload boostsvc.Payload) (int, error) {
	return n.client.Send(ctx, userIDs, fanout.Payload{
		ListingID:  payload.ListingID,
		Title:      payload.Title,
		Category:   payload.Category,
		SellerName: payload.SellerName,
	})
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	quotaRepo := pgrepo.NewQuotaRepo(pool)
	listingRepo := pgrepo.NewListingRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	candidateRepo := pgrepo.NewCandidateRepo(pool)
	boostSpamRepo := redrepo.NewBoostSpamRepo(redisClient, rules.BoostNotificationWindow)

	catalog := pricing.NewCatalog()
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	bus := events.NewBus(log)
	bus.Subscribe(func(_ context.Context, event events.ActivationCompleted) {
		log.Info("activation completed",
			zap.Int64("purchase_id", event.PurchaseID),
			zap.Int64("user_id", event.UserID),
			zap.String("type", event.PurchaseType),
		)
	})

	paystackClient := paystack.NewClient(paystack.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		SecretKey:   cfg.Gateway.SecretKey,
		CallbackURL: cfg.Gateway.CallbackURL,
		Timeout:     cfg.Gateway.Timeout,
	})
	fanoutClient := fanout.NewClient(fanout.Config{
		BaseURL: cfg.Fanout.BaseURL,
		APIKey:  cfg.Fanout.APIKey,
		Timeout: cfg.Fanout.Timeout,
	})

	boostEngine := boostsvc.NewEngine(boostsvc.Dependencies{
		Candidates: candidateRepo,
		Spam:       boostSpamRepo,
		Notifier:   fanoutNotifier{client: fanoutClient},
		Logger:     log,
	}, boostsvc.Config{
		PoolSize:    cfg.Remote.Boost.PoolSize,
		SelectCount: cfg.Remote.Boost.SelectCount,
		SpamWorkers: cfg.Remote.Boost.SpamWorkers,
		SpamQueue:   cfg.Remote.Boost.SpamQueue,
	})

	activationService := activationsvc.NewService(activationsvc.Dependencies{
		Listings:  listingRepo,
		Users:     userRepo,
		Targeting: boostEngine,
		Catalog:   catalog,
		Bus:       bus,
		Logger:    log,
	}, activationsvc.Config{
		PremiumDuration: cfg.Remote.PremiumDuration,
	})

	purchaseService := purchasesvc.NewService(purchasesvc.Dependencies{
		Store:     purchaseRepo,
		Gateway:   paystackClient,
		Users:     userRepo,
		Activator: activationService,
		Prices:    catalog,
		Logger:    log,
	}, purchasesvc.Config{
		WebhookSecret: cfg.Gateway.WebhookSecret,
	})

	quotaService := quotasvc.NewService(quotaRepo, catalog, quotasvc.Config{
		DefaultTimezone: cfg.Remote.DefaultTimezone,
	})

	expiryJob := expiry.New(listingRepo, userRepo, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		PurchaseService:   purchaseService,
		ActivationService: activationService,
		QuotaService:      quotaService,
		Catalog:           catalog,
		JWTManager:        jwtManager,
		Logger:            log,
	})

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      server,
		postgres:    pool,
		redis:       redisClient,
		boostEngine: boostEngine,
		expiryJob:   expiryJob,
		httpRouter:  r,
	}, nil
}

func (a *App) Run() error {
	jobCtx, stop := context.WithCancel(context.Background())
	a.stopJobs = stop
	go a.expiryJob.Loop(jobCtx, a.cfg.Remote.ExpirySweep)

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.stopJobs != nil {
		a.stopJobs()
	}
	if a.boostEngine != nil {
		a.boostEngine.Close()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
