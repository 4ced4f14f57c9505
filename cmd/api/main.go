package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"optibid.com/internal/activity"
	"optibid.com/internal/audit"
	"optibid.com/internal/auth"
	"optibid.com/internal/config"
	"optibid.com/internal/httpapi"
	"optibid.com/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		obs.Logger().Fatal("load config", zap.Error(err))
	}

	log := obs.InitLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// observability: metrics registration + build info
	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal("open credential store", zap.Error(err))
	}
	defer closeStore()

	issuer, err := auth.NewIssuer([]byte(cfg.AuthSecret), auth.WithIssuerName(cfg.TokenIssuer))
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}

	auditLog := audit.New(log)
	feed := activity.New(cfg.ActivityHistory)
	svc, err := auth.NewService(store, issuer,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
		auth.WithAudit(auditLog),
		auth.WithLoginObserver(feed),
		auth.WithLogger(log),
	)
	if err != nil {
		log.Fatal("auth service", zap.Error(err))
	}

	probe := httpapi.ReadyProbe{Store: store}
	api := httpapi.New(probe, version, svc,
		httpapi.WithRegistrar(auth.NewRegistrar(auditLog)),
		httpapi.WithActivity(feed),
		httpapi.WithAuditSink(auditLog),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
		httpapi.WithTrustedProxy(cfg.TrustProxy),
		httpapi.WithAPILogger(log),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.RequestTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		// no write deadline: activity SSE streams stay open; other
		// handlers are bounded by httpapi.Timeout
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var grpcSrv *httpapi.GRPCServer
	if cfg.GRPCEnabled() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal("grpc listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		}
		grpcSrv = httpapi.NewGRPCServer(probe, log)
		go grpcSrv.Watch(ctx, 10*time.Second)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
		log.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
	}

	go func() {
		log.Info("starting optibid auth api",
			zap.String("version", version),
			zap.String("addr", srv.Addr),
			zap.Duration("access_ttl", cfg.AccessTTL),
			zap.Duration("refresh_ttl", cfg.RefreshTTL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.Shutdown(shutdownCtx)
	}
	log.Info("stopped")
}

// openStore picks PostgreSQL, a YAML principals file, or the built-in demo
// accounts, in that order.
func openStore(cfg config.Config) (auth.CredentialStore, func(), error) {
	switch {
	case cfg.PGDSN != "":
		db, err := auth.OpenPG(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewPGStore(db), func() { _ = db.Close() }, nil
	case cfg.PrincipalsFile != "":
		seeds, err := auth.LoadSeeds(cfg.PrincipalsFile)
		if err != nil {
			return nil, nil, err
		}
		store, err := auth.NewMemoryStore(seeds)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		obs.Logger().Warn("using built-in demo principals; set OPTIBID_PG_DSN or OPTIBID_PRINCIPALS_FILE for real accounts")
		store, err := auth.NewMemoryStore(auth.DemoSeeds())
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
