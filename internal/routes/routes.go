package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/check8auto/check8auto/internal/acceptance"
	"github.com/check8auto/check8auto/internal/auth"
	"github.com/check8auto/check8auto/internal/clock"
	"github.com/check8auto/check8auto/internal/config"
	"github.com/check8auto/check8auto/internal/funding"
	"github.com/check8auto/check8auto/internal/identity"
	"github.com/check8auto/check8auto/internal/ledger"
	"github.com/check8auto/check8auto/internal/metrics"
	"github.com/check8auto/check8auto/internal/middleware"
	"github.com/check8auto/check8auto/internal/notification"
	"github.com/check8auto/check8auto/internal/orders"
	"github.com/check8auto/check8auto/internal/otp"
)

// Deps aggregates shared dependencies required to wire routes. Notifier
// defaults to the configured gateways and Clock to real time. A nil Acquirer
// approves every charge in development and disables top-ups elsewhere.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Notifier notification.Notifier
	Acquirer funding.Acquirer
}

// Setup configures middlewares and all application routes. Without Postgres or
// Redis it falls back to in-memory stores, which only development allows.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Notifier == nil {
		d.Notifier = notifierFromConfig(d.Cfg, d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		accounts   identity.Repository
		balances   ledger.Ledger
		orderRepo  orders.Repository
		runner     acceptance.Runner
		challenges otp.Store
	)
	if d.DB != nil {
		accounts = identity.NewPostgresRepository(d.DB)
		balances = ledger.NewPostgresLedger(d.DB)
		orderRepo = orders.NewPostgresRepository(d.DB)
		runner = acceptance.NewPostgresRunner(d.DB)
	} else {
		d.Logger.Warn("postgres not configured, using in-memory stores")
		accounts = identity.NewMemoryRepository()
		balances = ledger.NewInMemory()
		orderRepo = orders.NewMemoryRepository()
		runner = acceptance.NewMemoryRunner(orderRepo, balances, d.Logger)
	}
	if d.Cache != nil {
		challenges = otp.NewRedisStore(d.Cache, d.Clock)
	} else {
		d.Logger.Warn("redis not configured, using in-memory otp store")
		challenges = otp.NewMemoryStore(d.Clock)
	}

	identitySvc := identity.NewService(accounts, d.Clock, d.Logger)
	tokens := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.RefreshSecret, d.Cfg.AccessTokenTTL, d.Cfg.RefreshTokenTTL, d.Cfg.AppName, d.Clock)
	authSvc := auth.NewService(tokens, identitySvc)
	otpSvc := otp.NewService(challenges, identitySvc, d.Notifier, tokens, otp.Config{TTL: d.Cfg.OTP.TTL}, d.Clock, d.Metrics, d.Logger)
	orderSvc := orders.NewService(orderRepo, d.Cfg.Order.TTL, d.Clock, d.Metrics, d.Logger)
	acceptSvc := acceptance.NewService(runner, acceptance.Policy{
		Fee:        d.Cfg.Order.AcceptFee,
		MinBalance: d.Cfg.Order.AcceptMinBalance,
	}, d.Clock, d.Metrics, d.Logger)
	topUps := d.Acquirer != nil || d.Cfg.IsDev()
	if !topUps {
		d.Logger.Warn("no card acquirer configured, balance top-up disabled")
	}
	fundingSvc := funding.NewService(balances, d.Acquirer, d.Clock, d.Metrics, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  d.Clock.Now().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, otp.NewHandler(otpSvc), auth.NewHandler(authSvc), AuthLimits{
		Login:  middleware.RateLimit(d.Cache, "login", d.Cfg.LoginRateLimit, d.Logger),
		Verify: middleware.RateLimit(d.Cache, "verify", d.Cfg.LoginRateLimit, d.Logger),
	})

	protected := api.Group("", middleware.JWTAuth(authSvc))
	protected.Post("/auth/logout", auth.NewHandler(authSvc).Logout)
	RegisterIdentityRoutes(protected, identity.NewHandler(balances))
	RegisterOrderRoutes(protected, orders.NewHandler(orderSvc), acceptance.NewHandler(acceptSvc))
	var idempotency fiber.Handler
	if topUps {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterFundingRoutes(protected, funding.NewHandler(fundingSvc), idempotency)

	return nil
}

func notifierFromConfig(cfg config.Config, logger *slog.Logger) notification.Notifier {
	var sms, email notification.Notifier = notification.NewLoggerNotifier(logger), notification.NewLoggerNotifier(logger)
	if cfg.SMS.DeliveryEnabled {
		sms = notification.NewSMSCGateway(notification.SMSCConfig{
			Login:     cfg.SMS.Login,
			Password:  cfg.SMS.Password,
			APIURL:    cfg.SMS.APIURL,
			WarnBelow: cfg.SMS.BalanceWarnBelow,
		}, logger)
	}
	if cfg.Email.DeliveryEnabled {
		email = notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}
	return notification.NewDispatcher(sms, email)
}
