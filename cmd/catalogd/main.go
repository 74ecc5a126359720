package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookstore/catalog/internal/cache"
	"github.com/bookstore/catalog/internal/config"
	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/events"
	grpcserver "github.com/bookstore/catalog/internal/grpc"
	"github.com/bookstore/catalog/internal/httpapi"
	"github.com/bookstore/catalog/internal/metrics"
	"github.com/bookstore/catalog/internal/query"
	"github.com/bookstore/catalog/internal/repo"
	"github.com/bookstore/catalog/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Must(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Catalog service failed", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Catalog service starting")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	log.Info("Connecting to database...")
	database, err := db.Connect(cfg.PGDSN, db.DefaultPoolConfig(), log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	catalogRepo := repo.NewCatalogRepository(database, log)
	categoryRepo := repo.NewCategoryRepository(database, log)
	tagRepo := repo.NewTagRepository(database, log)
	likeRepo := repo.NewLikeRepository(database, log)
	metrics.RegisterCatalogGauges(reg, catalogRepo)

	var resolver query.DescendantResolver = query.NewCategoryHierarchyResolver(categoryRepo, cfg.HierarchyMaxDepth)
	var invalidator httpapi.CacheInvalidator
	if cfg.CacheEnabled() {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("Redis unavailable, hierarchy cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			hc := cache.NewHierarchyCache(client, resolver, cfg.HierarchyCacheTTL, m, log)
			resolver, invalidator = hc, hc
		}
	}

	deps := map[string]grpcserver.Dependency{}
	var publisher httpapi.EventPublisher = events.NopPublisher{}
	var consumer *events.Consumer
	if cfg.EventsEnabled {
		log.Info("Connecting to RabbitMQ")
		p, err := events.NewPublisher(cfg.RabbitMQURL, m, log)
		if err != nil {
			return fmt.Errorf("connect publisher: %w", err)
		}
		defer p.Close()
		publisher = p
		deps["rabbitmq"] = p

		consumer, err = events.NewConsumer(cfg.RabbitMQURL, cfg.ServiceName, likeRepo, m, log)
		if err != nil {
			return fmt.Errorf("connect consumer: %w", err)
		}
		defer consumer.Close()
		deps["rabbitmq-consumer"] = consumer
	}

	likes := query.NewLikeEnricher(likeRepo, cfg.AnonymousUserID)
	engine := query.NewEngine(query.Deps{
		Resolver:  resolver,
		Executor:  query.NewPageQueryExecutor(database, catalogRepo, m, log),
		Assembler: query.NewResponseAssembler(catalogRepo, likes),
		Likes:     likes,
		Metrics:   m,
		Log:       log,
	}, query.Options{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize})

	health := grpcserver.NewHealthServer(database, deps, log)
	handler := httpapi.NewHandler(httpapi.Deps{
		Catalog:         engine,
		Books:           catalogRepo,
		Categories:      categoryRepo,
		Tags:            tagRepo,
		Publisher:       publisher,
		Invalidator:     invalidator,
		Validator:       httpapi.NewValidator(),
		Log:             log,
		AnonymousUserID: cfg.AnonymousUserID,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(handler, reg, health, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	grpcServer := grpcserver.NewServer(health, log)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		return grpcServer.Serve(grpcListener)
	})
	if consumer != nil {
		g.Go(func() error {
			log.Info("Starting like event consumer", zap.String("queue", consumer.QueueName()))
			if err := consumer.Start(gctx); err != nil {
				return fmt.Errorf("consume like events: %w", err)
			}
			if gctx.Err() == nil {
				return errors.New("like event delivery channel closed")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
