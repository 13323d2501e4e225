// Command shopfloor-server starts the shopfloor TCP application server.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/shopfloor/internal/auth"
	"github.com/and161185/shopfloor/internal/config"
	pkgcrypto "github.com/and161185/shopfloor/internal/crypto"
	"github.com/and161185/shopfloor/internal/dispatch"
	"github.com/and161185/shopfloor/internal/limiter"
	"github.com/and161185/shopfloor/internal/metrics"
	"github.com/and161185/shopfloor/internal/migrate"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/repository"
	"github.com/and161185/shopfloor/internal/repository/postgres"
	"github.com/and161185/shopfloor/internal/repository/redisstore"
	tcpserver "github.com/and161185/shopfloor/internal/server/tcp"
	"github.com/and161185/shopfloor/internal/service"
	"github.com/and161185/shopfloor/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires the stores and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
		zap.String("cache", cfg.CacheEngine),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		be  backend
		lim limiter.Limiter = limiter.NewMemory(limiter.DefaultPolicy)
	)
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		be.pg = db
		lim = limiter.NewPG(db.Pool, limiter.DefaultPolicy)
	case config.StoreRedis:
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		be.rdb = rdb
	default:
		logger.Warn("using in-memory store; data is lost on exit")
	}

	// Cached repositories
	accounts := mustRepo[model.Account](be, repository.KindAccounts, cfg, logger)
	items := mustRepo[model.InventoryItem](be, repository.KindItems, cfg, logger)
	devices := mustRepo[model.Device](be, repository.KindDevices, cfg, logger)
	workItems := mustRepo[model.WorkItem](be, repository.KindWorkItems, cfg, logger)
	orders := mustRepo[model.Order](be, repository.KindOrders, cfg, logger)
	shifts := mustRepo[model.Shift](be, repository.KindShifts, cfg, logger)
	defer func() {
		for _, c := range []interface{ Close() }{accounts, items, devices, workItems, orders, shifts} {
			c.Close()
		}
	}()

	// Services
	tokens, err := auth.NewTokenService([]byte(cfg.JWTKey), cfg.TokenTTL)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}
	authSvc := service.NewAuthService(accounts, tokens, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), lim)
	if cfg.AdminEmail != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("admin account created", zap.String("email", cfg.AdminEmail))
		}
	}

	v := validate.New()
	disp := dispatch.New(dispatch.Deps{
		Repos: dispatch.Repos{
			Accounts:  accounts,
			Items:     items,
			Devices:   devices,
			WorkItems: workItems,
			Orders:    orders,
			Shifts:    shifts,
		},
		Tokens:    tokens,
		Accounts:  authSvc,
		Validator: v,
		Logger:    logger,
	})

	// Metrics
	m := metrics.New()
	if err := m.WatchRepositories(accounts, items, devices, workItems, orders, shifts); err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	if cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		lis = tls.NewListener(lis, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	}

	// Health
	var hsrv *grpc.Server
	hs := health.NewServer()
	if cfg.HealthAddr != "" {
		hl, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			logger.Fatal("health listen", zap.Error(err))
		}
		hsrv = grpc.NewServer()
		healthpb.RegisterHealthServer(hsrv, hs)
		go func() {
			if err := hsrv.Serve(hl); err != nil {
				logger.Error("health server", zap.Error(err))
			}
		}()
	}

	router := tcpserver.NewRouter(authSvc, disp, v)
	handler := tcpserver.Standard(router.Handle, logger, m)
	srv := tcpserver.New(tcpserver.Config{
		MaxConns:       cfg.MaxConns,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		HandlerTimeout: cfg.HandlerTimeout,
		MaxFrame:       uint32(cfg.MaxFrame),
	}, handler, m, logger)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
	if err := srv.Serve(ctx, lis); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	// graceful shutdown
	hs.Shutdown()
	if hsrv != nil {
		hsrv.GracefulStop()
	}
	if metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(sctx)
		cancel()
	}
	logger.Info("shutdown complete")
}
