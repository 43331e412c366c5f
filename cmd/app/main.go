package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"storefront/cmd/fx/account_fx"
	"storefront/cmd/fx/config_fx"
	"storefront/cmd/fx/controllers_fx"
	"storefront/cmd/fx/db_fx"
	"storefront/cmd/fx/events_fx"
	"storefront/cmd/fx/mail_fx"
	"storefront/cmd/fx/memcache_fx"
	"storefront/cmd/fx/metrics_fx"
	"storefront/cmd/fx/order_fx"
	"storefront/cmd/fx/payment_service_fx"
	"storefront/internal/api/controllers"
	"storefront/internal/config"
	"storefront/pkg/middleware"
)

func main() {
	app := fx.New(
		config_fx.Module,
		metrics_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		payment_service_fx.Module,
		order_fx.Module,
		account_fx.Module,
		events_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRateLimiters),
		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

type RateLimiters struct {
	API      *middleware.RateLimiter
	Webhook  *middleware.RateLimiter
	Payments *middleware.RateLimiter
	Recovery *middleware.RateLimiter
}

func ProvideRateLimiters(lc fx.Lifecycle, cfg config.Config) *RateLimiters {
	rule := func(name string, r config.RateRule) *middleware.RateLimiter {
		if !cfg.RateLimit.Enabled {
			return middleware.NewRateLimiter(name, 0, 0)
		}
		return middleware.NewRateLimiter(name, r.Limit, r.Window)
	}
	rl := &RateLimiters{
		API:      rule("api", cfg.RateLimit.API),
		Webhook:  rule("webhook", cfg.RateLimit.Webhook),
		Payments: rule("payments", cfg.RateLimit.Payments),
		Recovery: rule("recovery", cfg.RateLimit.Recovery),
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, l := range []*middleware.RateLimiter{rl.API, rl.Webhook, rl.Payments, rl.Recovery} {
				go l.RunJanitor(ctx)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return rl
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, logger *slog.Logger) {
	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("HTTP server listening", "addr", srv.Addr, "env", cfg.App.Env)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server stopped", "error", err.Error())
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type RouterParams struct {
	fx.In

	Config      config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	HTTPMetrics *middleware.HTTPMetrics
	Limiters    *RateLimiters

	Payments *controllers.PaymentController
	Orders   *controllers.OrderController
	Accounts *controllers.AccountController
	System   *controllers.SystemController
}

func ProvideRouter(p RouterParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.Logging(p.Logger))
	r.Use(p.HTTPMetrics.Middleware())
	r.Use(middleware.CORS(p.Config.HTTP.CORSOrigins, !p.Config.IsProduction()))

	RegisterRoutes(r, p)

	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	r.GET("/health", p.System.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))

	// gateway callbacks live outside /api so the general limiter never throttles them
	flowGroup := r.Group("/flow")
	flowGroup.POST("/confirm", p.Limiters.Webhook.Middleware(), p.Payments.Confirm)
	flowGroup.GET("/return", p.Payments.Return)
	flowGroup.POST("/return", p.Payments.Return)
	flowGroup.GET("/retorno", p.Payments.Return)
	flowGroup.POST("/retorno", p.Payments.Return)

	api := r.Group("/api", p.Limiters.API.Middleware())
	api.GET("/health", p.System.Health)
	api.GET("/email-config", p.System.EmailConfig)
	api.POST("/test-email", middleware.RequireSharedKey(middleware.TestKeyHeader, p.Config.Mail.TestKey), p.System.TestEmail)

	paymentsGroup := api.Group("/payments", p.Limiters.Payments.Middleware())
	paymentsGroup.POST("/session", p.Payments.CreateSession)
	paymentsGroup.POST("/flow", p.Payments.CreateSession)

	ordersGroup := api.Group("/orders")
	ordersGroup.POST("/transfer", p.Orders.CreateTransferOrder)
	ordersGroup.GET("/by-email", p.Orders.ListByEmail)

	adminGroup := api.Group("/admin", middleware.RequireSharedKey(middleware.AdminKeyHeader, p.Config.Admin.Key))
	adminGroup.GET("/orders", p.Orders.ListAll)
	adminGroup.POST("/orders/:id/mark-paid", p.Orders.MarkPaid)

	api.POST("/send-password-recovery", p.Limiters.Recovery.Middleware(), p.Accounts.ForgotPassword)
	api.POST("/reset-password", p.Limiters.Recovery.Middleware(), p.Accounts.ResetPassword)
	api.POST("/send-registration-email", p.Accounts.SendRegistrationEmail)
}
