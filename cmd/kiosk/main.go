package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"printkiosk/docs"
	"printkiosk/internal/applog"
	"printkiosk/internal/config"
	handlers "printkiosk/internal/http/handler"
	"printkiosk/internal/http/middleware"
	"printkiosk/internal/netid"
	kioskotel "printkiosk/internal/otel"
	"printkiosk/internal/printer"
	"printkiosk/internal/service"
	"printkiosk/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Print Kiosk API
// @version 1.0
// @description Upload from a phone, preview on the counter screen, print to the shop printer.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := applog.New(os.Stdout, cfg.Location())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := kioskotel.Init(ctx, logger)
	if err != nil {
		fatal(logger, "tracing_init_failed", err)
	}

	store, err := newStorage(cfg)
	if err != nil {
		fatal(logger, "storage_init_failed", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bridge, err := printer.NewBridge(cfg.Printer, reg)
	if err != nil {
		fatal(logger, "printer_init_failed", err)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal(logger, "metrics_init_failed", err)
	}

	svc := service.NewKioskService(store, bridge, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(logger),
		BodyLimit:             cfg.Storage.BodyLimit(),
		DisableStartupMessage: true,
	})

	// Request contexts are cancelled when the shutdown grace period ends.
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	app.Use(middleware.BaseContext(jobsCtx))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger.Location()))
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	resolver := netid.NewResolver(cfg.Network.ProbeAddr, cfg.Network.FallbackIP)
	handlers.RegisterRoutes(app, svc, handlers.Options{
		Port:        cfg.Port,
		StrictPrint: cfg.Printer.Strict,
		Resolver:    resolver,
		Logger:      logger,
	})

	id := resolver.Resolve()
	if id.Fallback {
		logger.Warn("network_identity_fallback", map[string]any{
			"probe_addr":  cfg.Network.ProbeAddr,
			"fallback_ip": id.IP,
		})
	}
	logger.Info("server_starting", map[string]any{
		"port":            cfg.Port,
		"storage_backend": cfg.Storage.Backend,
		"storage_dir":     cfg.Storage.Dir,
		"upload_url":      id.UploadURL(cfg.Port),
		"ip_fallback":     id.Fallback,
		"print_share":     bridge.Service(),
		"print_strict":    cfg.Printer.Strict,
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("server_stopping", nil)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server_shutdown_failed", err, nil)
		}
		cancelJobs()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		fatal(logger, "server_failed", err)
	}
	<-stopped

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("tracing_shutdown_failed", err, nil)
	}
	logger.Info("server_stopped", nil)
}

func newStorage(cfg *config.AppConfig) (storage.Storage, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinIO(cfg.MinIO)
	}
	return storage.NewLocal(cfg.Storage)
}

func fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, err, nil)
	os.Exit(1)
}
