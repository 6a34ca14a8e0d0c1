package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creator-paywall/internal/config"
	"creator-paywall/internal/domain/ports/adapter"
	payAdapters "creator-paywall/internal/infra/adapters/payment"
	"creator-paywall/internal/infra/api"
	pg "creator-paywall/internal/infra/db/postgres"
	"creator-paywall/internal/infra/i18n"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
	red "creator-paywall/internal/infra/redis"
	"creator-paywall/internal/infra/web"
	"creator-paywall/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Server.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	var (
		gateway adapter.PaymentGateway
		devPay  *payAdapters.NoopPaymentGateway
	)
	switch cfg.Payment.Provider {
	case "noop":
		devPay = payAdapters.NewNoopPaymentGateway(cfg.Server.BaseURL + "/dev/pay/")
		gateway = devPay
	case "mobilemoney":
		gateway, err = payAdapters.NewMobileMoneyGateway(cfg.Payment.BaseURL, cfg.Payment.MerchantKey, cfg.Payment.Secret, cfg.Payment.Currency, cfg.Payment.HTTPTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("payment gateway")
		}
	default:
		logger.Fatal().Str("provider", cfg.Payment.Provider).Msg("unknown payment provider")
	}
	logger.Info().Str("gateway", gateway.Name()).Msg("payment gateway ready")

	// Repositories
	transactions := pg.NewTransactionRepo(pool)
	purchases := pg.NewPostgresPurchaseRepo(pool)
	contents := pg.NewContentRepo(pool)
	actors := pg.NewPostgresUserRepo(pool)
	states := red.NewCheckoutStateRepo(redisClient, cfg.Redis.TTL)

	auth := web.NewAuthManager(web.AuthConfig{
		HMACSecret:   []byte(cfg.Auth.JWTSecret),
		CookieName:   cfg.Auth.CookieName,
		CookieDomain: cfg.Auth.CookieDomain,
		SecureCookie: cfg.Auth.SecureCookie,
		TTL:          cfg.Auth.TTL,
	})

	// Use cases
	resolver := usecase.NewCorrelationResolver(contents, states, logger)
	materializer := usecase.NewPurchaseMaterializer(transactions, purchases, contents, actors, cfg.Payment.Currency, logger)
	reconcileUC := usecase.NewReconcileUseCase(gateway, auth, resolver, materializer, usecase.ReconcileOptions{
		PollTimeout:   cfg.Payment.PollTimeout,
		PurchasesPath: cfg.Server.PurchasesPath,
		RedirectDelay: cfg.Server.RedirectDelay,
	}, logger)
	checkoutUC := usecase.NewCheckoutUseCase(contents, purchases, actors, states, gateway, usecase.CheckoutOptions{
		BaseURL:       cfg.Server.BaseURL,
		ReturnPath:    cfg.Server.ReturnPath,
		ActivationFee: cfg.Payment.ActivationFee,
	}, logger)

	health := func(ctx context.Context) error {
		st := pool.Stat()
		metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	srv := api.NewServer(reconcileUC, checkoutUC, auth, tr, health, api.Options{
		ReturnPath:     cfg.Server.ReturnPath,
		WebhookPath:    cfg.Server.WebhookPath,
		WebhookSecret:  cfg.Payment.WebhookSecret,
		SessionCookie:  cfg.Checkout.SessionCookie,
		SessionTTL:     cfg.Redis.TTL,
		SecureCookie:   cfg.Auth.SecureCookie,
		RequestTimeout: cfg.Server.RequestTimeout,
		Links: web.Links{
			Home:      "/",
			Purchases: cfg.Server.PurchasesPath,
			Checkout:  cfg.Server.CheckoutPath,
			Support:   cfg.Server.SupportURL,
		},
		DevGateway: devPay,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("return_path", cfg.Server.ReturnPath).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
