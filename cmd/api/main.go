package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stockflow/stockflow/internal/config"
	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/handlers"
	"github.com/stockflow/stockflow/internal/repository"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/pg"
	"github.com/stockflow/stockflow/pkg/prom"
	"github.com/stockflow/stockflow/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 15))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		logger.Error("failed to get hostname", "error", err)
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(":9100", "/metrics")

	daraja, err := gateway.NewClient(&gateway.Config{
		Environment:    config.Get().MpesaEnvironment,
		BaseURL:        config.Get().MpesaBaseURL,
		ConsumerKey:    config.Get().MpesaConsumerKey,
		ConsumerSecret: config.Get().MpesaConsumerSecret,
		Shortcode:      config.Get().MpesaShortcode,
		Passkey:        config.Get().MpesaPasskey,
		CallbackURL:    config.Get().MpesaCallbackURL,
		Timeout:        config.Get().MpesaTimeout,
	}, redisAdap)
	if err != nil {
		logger.Error("failed creating daraja client", "error", err)
		return
	}

	productRepo := repository.NewProductRepository(db, config.Get().LowStockFallbackThreshold)
	categoryRepo := repository.NewCategoryRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// services
	productService := services.NewProductService(productRepo, categoryRepo)
	saleService := services.NewSaleService(saleRepo, productRepo, counterRepo, db)
	mpesaService := services.NewMpesaService(saleRepo, daraja)
	customerService := services.NewCustomerService(customerRepo)
	analyticsService := services.NewAnalyticsService(saleRepo, productRepo)
	settingsService := services.NewSettingsService(settingsRepo, redisAdap)
	healthService := services.NewHealthService(db)

	// v1 handlers
	productHandler := handlers.NewProductHandler(productService)
	saleHandler := handlers.NewSaleHandler(saleService)
	paymentHandler := handlers.NewPaymentHandler(mpesaService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterProductRoutes(g, productHandler)
	handlers.RegisterSaleRoutes(g, saleHandler)
	handlers.RegisterPaymentRoutes(g, paymentHandler)
	handlers.RegisterCustomerRoutes(g, customerHandler)
	handlers.RegisterAnalyticsRoutes(g, analyticsHandler)
	handlers.RegisterSettingsRoutes(g, settingsHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
