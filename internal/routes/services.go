package routes

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fxwallet/internal/config"
	"github.com/congo-pay/fxwallet/internal/exchange"
	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/metrics"
	"github.com/congo-pay/fxwallet/internal/notification"
	"github.com/congo-pay/fxwallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Services holds the application services built from Deps.
type Services struct {
	Wallet *wallet.Service
	Rates  *exchange.Service

	closers []func() error
}

// Close releases resources owned by the services, such as the event publisher.
func (s *Services) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewServices builds the exchange and wallet services. Without a database the
// in-memory stores are used, and without Redis rates are read uncached.
func NewServices(d Deps) *Services {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var rateStore exchange.Repository
	if d.DB != nil {
		rateStore = exchange.NewPostgresRepository(d.DB)
	} else {
		rateStore = exchange.NewMemoryRepository()
	}
	if d.Cache != nil {
		rateStore = exchange.NewCachedRepository(rateStore, exchange.NewRedisCache(d.Cache),
			d.Cfg.RateCacheTTL, logging.Component(logger, "rate_cache"), d.Metrics)
	}

	gateway := exchange.NewECBGateway(exchange.ECBGatewayConfig{
		URL:        d.Cfg.RatesFeedURL,
		Timeout:    d.Cfg.RatesFeedTimeout,
		MaxRetries: d.Cfg.RatesFeedRetryMax,
		RetryDelay: d.Cfg.RatesFeedRetryDelay,
	})
	ratesSvc := exchange.NewService(gateway, rateStore, d.Cfg.BaseCurrency, logging.Component(logger, "rates"))

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	engine := wallet.NewEngine(walletRepo, wallet.DefaultRegistry(), wallet.EngineConfig{
		MaxAttempts: d.Cfg.AdjustMaxAttempts,
		Backoff:     wallet.LinearBackoff(d.Cfg.AdjustBackoff),
	}, logging.Component(logger, "engine"), d.Metrics)

	svcs := &Services{Rates: ratesSvc}

	var notifier notification.Notifier = notification.NewLoggerNotifier(logging.Component(logger, "notification"))
	if len(d.Cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notification.NewKafkaNotifier(d.Cfg.KafkaBrokers, d.Cfg.KafkaTopic)
		svcs.closers = append(svcs.closers, kafkaNotifier.Close)
		notifier = kafkaNotifier
	}

	svcs.Wallet = wallet.NewService(
		walletRepo,
		engine,
		exchange.NewConverter(rateStore),
		rateStore,
		notifier,
		logging.Component(logger, "wallet"),
	)
	return svcs
}
