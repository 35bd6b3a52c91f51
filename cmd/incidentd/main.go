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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/jmerrifield20/incidentai/internal/alerts"
	"github.com/jmerrifield20/incidentai/internal/api"
	"github.com/jmerrifield20/incidentai/internal/auth"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/config"
	"github.com/jmerrifield20/incidentai/internal/health"
	"github.com/jmerrifield20/incidentai/internal/history"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/modelledger"
	"github.com/jmerrifield20/incidentai/internal/seal"
	"github.com/jmerrifield20/incidentai/internal/textnorm"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// grpcServiceName is the service name reported by the gRPC health server.
const grpcServiceName = "incident.Classifier"

func main() {
	cfg, found, err := config.Load("incidentd")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	if cfg.Log.Development {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync() //nolint:errcheck

	if !found {
		logger.Warn("no config file found, using defaults and env vars")
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("incidentd exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Classifier ────────────────────────────────────────────────────────────
	svc, err := classifier.Build(cfg.Lexicon.Path, logger)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	svc.SetVectorizerConfig(vectorize.Config{
		MaxFeatures: cfg.Model.MaxFeatures,
		MinDF:       cfg.Model.MinDF,
		MaxDF:       cfg.Model.MaxDF,
	})

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		store  history.Store
		ledger modelledger.Ledger
		pool   *pgxpool.Pool
	)
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database")
		store = history.NewPostgres(pool)
		ledger = modelledger.NewPostgres(pool, logger)
	} else {
		logger.Warn("database.url not set, history and model ledger are in-memory")
		store = history.NewMemory()
		ledger = modelledger.NewMemory()
	}

	sealer, err := seal.FromHex(cfg.Seal.Key)
	if err != nil {
		return fmt.Errorf("seal key: %w", err)
	}
	if cfg.Seal.Key == "" {
		logger.Warn("seal.key not set, stored descriptions are readable only by this process")
		if pool != nil {
			logger.Warn("descriptions saved before a restart will be reported as unreadable; set seal.key to keep them")
		}
	}
	sealed := history.NewSealed(store, sealer)
	sealed.SetLogger(logger)
	store = sealed

	// ── gRPC health ───────────────────────────────────────────────────────────
	healthSvc := grpchealth.NewServer()
	healthSvc.SetServingStatus(grpcServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	// ── Model lifecycle ───────────────────────────────────────────────────────
	svc.SetOnTrained(func(src classifier.TrainingSource, report incident.TrainingReport) {
		if st, _ := textnorm.Resources(); report.Status == incident.TrainingSuccess && st == textnorm.StateReady {
			healthSvc.SetServingStatus(grpcServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
		}
		actor := "api"
		if src == classifier.SourceBootstrap {
			actor = "incidentd"
			api.RecordTraining(report)
		}
		appendCtx, appendCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer appendCancel()
		if _, err := ledger.Append(appendCtx, modelledger.EventFor(report, actor, src == classifier.SourceBootstrap)); err != nil {
			logger.Error("model ledger append failed", zap.Error(err))
			return
		}
		api.RecordLedgerAppend()
	})

	if path := cfg.Model.BootstrapCorpus; path != "" {
		records, err := classifier.LoadCorpus(path)
		if err != nil {
			logger.Error("bootstrap corpus unavailable, starting with rule fallback", zap.Error(err))
		} else {
			bootCtx, bootCancel := context.WithTimeout(ctx, cfg.Model.TrainingTimeout)
			report := svc.Bootstrap(bootCtx, records)
			bootCancel()
			if report.Status != incident.TrainingSuccess {
				logger.Error("bootstrap training failed, starting with rule fallback",
					zap.String("status", string(report.Status)),
					zap.String("error", report.Error),
				)
			}
		}
	}

	// ── Alert webhooks ────────────────────────────────────────────────────────
	dispatcher := alerts.NewDispatcher(cfg.Alerts.Webhooks, cfg.Alerts.Secret, logger)
	dispatcher.SetMetricsRecorder(api.RecordWebhookDelivery)
	if dispatcher.Enabled() && cfg.Alerts.Secret == "" {
		logger.Warn("alerts.secret not set, webhook deliveries are unsigned")
	}

	// ── Operator tokens ───────────────────────────────────────────────────────
	var tokens *auth.TokenIssuer
	if cfg.Auth.Secret != "" {
		tokens, err = auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}
	} else {
		logger.Warn("auth.secret not set, model training endpoint is unauthenticated")
	}

	// ── Health checker ────────────────────────────────────────────────────────
	checker := health.New(version, health.Config{}, logger,
		health.Component{
			Name:     "text_normalizer",
			Critical: true,
			Probe: func(context.Context) (string, error) {
				state, err := textnorm.Resources()
				return state.String(), err
			},
		},
		health.Component{
			Name: "incident_classifier",
			Probe: func(context.Context) (string, error) {
				if !svc.IsLoaded() {
					return "rule_fallback", errors.New("no trained model loaded")
				}
				return "loaded", nil
			},
		},
		health.Component{
			Name: "database",
			Probe: func(ctx context.Context) (string, error) {
				if pool == nil {
					return "memory", nil
				}
				if err := pool.Ping(ctx); err != nil {
					return "postgres", err
				}
				return "postgres", nil
			},
		},
	)
	checker.SetMetricsRecord(api.RecordHealthCheck)
	checker.SetTransition(func(component string, healthy bool) {
		if component != "incident_classifier" && component != "text_normalizer" {
			return
		}
		st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if healthy && svc.IsLoaded() {
			st = grpc_health_v1.HealthCheckResponse_SERVING
		}
		healthSvc.SetServingStatus(grpcServiceName, st)
	})
	checker.Check(ctx)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.Server.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(api.SecurityHeaders())
	router.Use(api.BodyLimit(cfg.Server.MaxBodyBytes))
	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(api.RateLimiter(rps, rps*2))
	}
	router.Use(api.PrometheusMiddleware())
	router.Use(api.RequestLogger(logger))

	router.GET("/metrics", api.MetricsHandler())
	api.NewHealthHandler(checker).Register(router)

	incidentHandler := api.NewIncidentHandler(svc, store, logger)
	incidentHandler.SetDispatcher(dispatcher)
	incidentHandler.SetLedger(ledger)
	incidentHandler.SetTrainingTimeout(cfg.Model.TrainingTimeout)
	if tokens != nil {
		incidentHandler.SetTokenIssuer(tokens)
	}
	incidentHandler.Register(router.Group("/api/v1"))

	// ── Servers ───────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopChecks := make(chan struct{})
	go checker.Start(stopChecks)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("gRPC listen on :%d: %w", cfg.Server.GRPCPort, err)
		}
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
		grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
		reflection.Register(grpcServer)

		go func() {
			logger.Info("incidentd gRPC health listening", zap.Int("port", cfg.Server.GRPCPort))
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Fatal("gRPC serve error", zap.Error(err))
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("incidentd HTTP listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("version", version),
			zap.Bool("model_loaded", svc.IsLoaded()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down incidentd...")
	close(stopChecks)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		healthSvc.Shutdown()
		grpcServer.GracefulStop()
	}
	dispatcher.Wait()

	logger.Info("incidentd stopped")
	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
