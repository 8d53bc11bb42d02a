// Package app wires the reconciliation engine: pool, repositories, adapters,
// alerting and the two sync services. Both binaries build the same graph and
// differ only in what they run on top of it.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crosslist/internal/alert"
	"crosslist/internal/config"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/notification"
	"crosslist/internal/domain/pricelog"
	"crosslist/internal/domain/product"
	"crosslist/internal/infrastructure/storage/postgres"
	"crosslist/internal/marketplace"
	"crosslist/internal/notify"
	"crosslist/internal/pricing"
	"crosslist/internal/reconcile"
	"crosslist/internal/retry"
	"crosslist/internal/source"
	"crosslist/pkg/logger"
)

// App is the composed service graph.
type App struct {
	Cfg *config.Config
	Log *logger.Logger

	Pool  *postgres.Pool
	Redis *redis.Client

	Products      product.Repository
	Listings      listing.Repository
	PriceLog      pricelog.Repository
	Notifications notification.Repository

	Runs       *reconcile.RunRegistry
	SourceSync *reconcile.Service
	PriceSync  *reconcile.PriceService
}

// New builds the application graph.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	products := postgres.NewProductRepo(txm)
	listings := postgres.NewListingRepo(txm)
	priceLog := postgres.NewPriceLogRepo(txm)
	notifications := postgres.NewNotificationRepo(txm)

	// Alert throttling is optional: without redis every alert fires.
	var redisClient *redis.Client
	var throttle alert.Throttle = alert.NopThrottle{}
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		throttle = alert.NewRedisThrottle(redisClient)
	}

	sink := buildSink(cfg, log)

	alerts, err := alert.NewManager(alert.DefaultRules(), throttle, sink, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build alert manager: %w", err)
	}

	sourceRegistry := source.NewRegistry()
	prober := source.NewProber(sourceRegistry, retry.DefaultPolicy(), log)

	marketplaces := buildMarketplaces(cfg)

	cascade := reconcile.NewCascader(products, listings, marketplaces, retry.DefaultPolicy(), log)

	gateCfg := reconcile.DefaultGateConfig()
	gateCfg.NotifyOutOfStock = cfg.NotifyOutOfStock
	gateCfg.NotifyPriceChange = cfg.NotifyPriceChange
	gate := reconcile.NewGate(gateCfg, notifications, sink, alerts, log)

	runs := reconcile.NewRunRegistry()

	sourceSync := reconcile.NewService(
		reconcile.DefaultServiceConfig(),
		products, prober, cascade, gate, alerts, runs, log,
	)

	rate, err := types.NewMoneyFromString(cfg.ExchangeRateJPYUSD)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse EXCHANGE_RATE_JPY_USD: %w", err)
	}
	formula := pricing.NewStandardFormula(pricing.DefaultStandardConfig(), pricing.FixedRate(rate))

	priceCfg := reconcile.DefaultPriceConfig()
	priceCfg.SyncToMarketplace = cfg.PriceSyncToMarketplace
	priceSync := reconcile.NewPriceService(
		priceCfg,
		listings, products, priceLog, formula, marketplaces,
		txm, retry.DefaultPolicy(), alerts, gate, runs, log,
	)

	return &App{
		Cfg:           cfg,
		Log:           log,
		Pool:          pool,
		Redis:         redisClient,
		Products:      products,
		Listings:      listings,
		PriceLog:      priceLog,
		Notifications: notifications,
		Runs:          runs,
		SourceSync:    sourceSync,
		PriceSync:     priceSync,
	}, nil
}

// Close releases external connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// buildSink composes the notification fan-out from configured channels. With
// nothing configured, notifications land in the structured log.
func buildSink(cfg *config.Config, log *logger.Logger) notification.Sink {
	sinks := []notification.Sink{notify.NewLog(log)}

	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, notify.NewSlackWebhook(cfg.SlackWebhookURL))
	}
	if cfg.SMTPHost != "" && cfg.MailFrom != "" && cfg.MailTo != "" {
		mailSink, err := notify.NewMail(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			To:       strings.Split(cfg.MailTo, ","),
		})
		if err != nil {
			log.Warnw("mail sink disabled", "error", err)
		} else {
			sinks = append(sinks, mailSink)
		}
	}

	return notify.NewMulti(log, sinks...)
}

// buildMarketplaces wires REST adapters for channels with credentials in the
// environment. Tokens are static deploy-time credentials; the TokenSource
// refresh just re-reads them, so an expired token surfaces as a 401 alert
// rather than a silent retry loop.
func buildMarketplaces(cfg *config.Config) *marketplace.Registry {
	adapters := make(map[listing.Marketplace]marketplace.Adapter)

	add := func(m listing.Marketplace, name, baseURL, token string) {
		if baseURL == "" || token == "" {
			return
		}
		tokens := marketplace.NewTokenSource(func(ctx context.Context) (marketplace.Token, error) {
			return marketplace.Token{Value: token, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
		})
		adapters[m] = marketplace.NewRESTAdapter(marketplace.RESTConfig{
			Name:    name,
			BaseURL: baseURL,
		}, tokens)
	}

	add(listing.MarketplaceEbay, "ebay", cfg.EbayAPIURL, cfg.EbayAPIToken)
	add(listing.MarketplaceJoom, "joom", cfg.JoomAPIURL, cfg.JoomAPIToken)

	return marketplace.NewRegistry(adapters)
}
