// Command server runs the FuelSync HTTP API: it loads configuration,
// opens the database pool, wires every domain service to its postgres
// repository, and serves the chi router with a graceful shutdown path.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/audit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authn"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/credit"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dashboard"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/expense"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/handover"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/httpapi"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/locks"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/logger"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/observability"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/plan"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/reading"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/repository/postgres"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/shift"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/tank"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/transaction"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	pool, err := dbx.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database pool")
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("database is not reachable")
	}
	cancel()

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(redisCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis is not reachable")
	}
	redisCancel()

	clk := clock.System{}
	lockRegistry := locks.NewRedisRegistry(redisClient)
	metrics := observability.NewMetrics(log)
	issuer := authn.NewIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)

	auditSink := &postgres.AuditSink{Pool: pool}
	auditLogger := audit.NewLogger(auditSink, clk, log)

	stations := &postgres.Stations{Pool: pool}
	pumps := &postgres.Pumps{Pool: pool}
	nozzles := &postgres.Nozzles{Pool: pool}
	prices := &postgres.FuelPrices{Pool: pool}
	plans := &postgres.Plans{Pool: pool}
	readingsRepo := &postgres.Readings{Pool: pool}
	tanksRepo := &postgres.Tanks{Pool: pool}
	creditorsRepo := &postgres.Creditors{Pool: pool}
	transactionsRepo := &postgres.Transactions{Pool: pool}
	handoversRepo := &postgres.Handovers{Pool: pool}
	shiftsRepo := &postgres.Shifts{Pool: pool}
	expensesRepo := &postgres.Expenses{Pool: pool}
	usersRepo := &postgres.Users{Pool: pool}
	planCounters := &postgres.Counters{Pool: pool}
	planResources := &postgres.ResourceCounter{Pool: pool}

	tankService := tank.NewService(tanksRepo, lockRegistry, auditLogger, clk)
	readingService := reading.NewService(pool, readingsRepo, nozzles, pumps, stations, prices, tankService, plans, lockRegistry, auditLogger, clk)
	creditService := credit.NewService(creditorsRepo, lockRegistry, auditLogger, clk)
	transactionService := transaction.NewService(pool, transactionsRepo, readingsRepo, creditorsRepo, creditService, lockRegistry, auditLogger, clk)
	handoverService := handover.NewService(handoversRepo, shiftsRepo, lockRegistry, auditLogger, clk)
	shiftService := shift.NewService(pool, shiftsRepo, shiftsRepo, handoverService, auditLogger, clk)
	expenseService := expense.NewService(expensesRepo, plans, auditLogger, clk)
	dashboardService := dashboard.NewService(stations, nozzles, transactionsRepo, tanksRepo)
	planEngine := plan.NewEngine(planCounters, planResources, cfg.DowngradeGraceDays)

	handlers := &httpapi.Handlers{
		UOW:          pool,
		Issuer:       issuer,
		Users:        usersRepo,
		Stations:     stations,
		PlanLookup:   plans,
		Readings:     readingService,
		Transactions: transactionService,
		Handovers:    handoverService,
		Shifts:       shiftService,
		Tanks:        tankService,
		Credits:      creditService,
		Expenses:     expenseService,
		Dashboard:    dashboardService,
		Plans:        planEngine,
		Metrics:      metrics,
		Clock:        clk,
	}

	router := httpapi.NewRouter(cfg, log, metrics, issuer, handlers)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("fuelsync server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
