// Package main provides the battle server binary: the combat engine behind a
// gRPC service and an HTTP/JSON API, backed by PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/shinobi/internal/battle"
	"github.com/cory-johannsen/shinobi/internal/battleserver"
	"github.com/cory-johannsen/shinobi/internal/config"
	"github.com/cory-johannsen/shinobi/internal/game/character"
	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/httpapi"
	"github.com/cory-johannsen/shinobi/internal/observability"
	"github.com/cory-johannsen/shinobi/internal/scripting"
	"github.com/cory-johannsen/shinobi/internal/server"
	"github.com/cory-johannsen/shinobi/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/battleserver.yaml", "path to configuration file; empty = defaults and environment only")
	healthInterval := flag.Duration("db-health", 30*time.Second, "database health check interval")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "battleserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Sync(logger) }()

	logger.Info("starting battle server",
		zap.String("grpc_addr", cfg.GRPC.Addr()),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	contentStart := time.Now()
	c, err := content.Load(cfg.Content.Dir)
	if err != nil {
		logger.Fatal("loading content", zap.String("dir", cfg.Content.Dir), zap.Error(err))
	}
	logger.Info("content loaded",
		zap.String("dir", cfg.Content.Dir),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	selector, release, err := scripting.Build(cfg.Combat.Selection, cfg.Combat.Script, c.Techniques, logger)
	if err != nil {
		logger.Fatal("building attack selector", zap.Error(err))
	}
	defer release()
	engine := combat.NewEngine(c, cfg.Combat.Tuning, selector, logger)

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	profiles := postgres.NewProfileRepository(pool.DB())
	engagements := postgres.NewEngagementRepository(pool.DB(), logger)

	svc := battle.NewService(engine, character.NewBuilder(c), profiles, engagements, logger)

	grpcServer := grpc.NewServer()
	battleserver.RegisterBattleServiceServer(grpcServer, battleserver.NewServer(svc, logger))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		logger.Fatal("listening for gRPC", zap.String("addr", cfg.GRPC.Addr()), zap.Error(err))
	}

	gin.SetMode(cfg.HTTP.Mode)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      httpapi.NewRouter(httpapi.NewHandler(svc, profiles, c.PowerStates, pool, logger)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("grpc", server.GRPCService(grpcServer, lis))
	lifecycle.Add("http", server.HTTPService(httpServer, server.DefaultStopTimeout))

	healthCtx, stopHealth := context.WithCancel(ctx)
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(*healthInterval)
			defer ticker.Stop()
			for {
				select {
				case <-healthCtx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(healthCtx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			stopHealth()
			pool.Close()
		},
	})

	logger.Info("battle server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("selection", string(cfg.Combat.Selection)),
		zap.Int("max_turns", engine.Tuning().MaxTurns),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
