package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kpitracker/config"
	"kpitracker/database"
	"kpitracker/handlers"
	"kpitracker/identity"
	"kpitracker/logging"
	repository "kpitracker/repositories"
	"kpitracker/repositories/memstore"
	routes "kpitracker/routes"
	services "kpitracker/services"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// store bundles the repositories of whichever document store driver is configured.
type store struct {
	masters     repository.MasterKPIRepository
	assignments repository.AssignmentRepository
	profiles    repository.UserProfileRepository
	pinger      repository.Pinger
	close       func(context.Context) error
}

func main() {
	loader := config.NewLoader(".")
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, level, err := logging.Init(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	loader.OnChange(func(next *config.Config) {
		if l, err := zapcore.ParseLevel(next.Logging.Level); err == nil {
			level.SetLevel(l)
			logger.Info("Log level reloaded", zap.String("level", l.String()))
		}
	}, func(err error) {
		logger.Warn("Ignoring invalid configuration reload", zap.Error(err))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			logger.Error("Failed to close document store", zap.Error(err))
		}
	}()

	if cfg.KPI.SeedMasterKPIs {
		if err := database.SeedMasterKPIs(ctx, st.masters, logger); err != nil {
			logger.Warn("Failed to seed master KPIs", zap.Error(err))
		}
	}

	directory, err := openDirectory(ctx, cfg.Identity, logger)
	if err != nil {
		logger.Fatal("Failed to initialize identity directory", zap.Error(err))
	}
	verifier := identity.NewVerifier(cfg.Identity, nil)

	kpiHandler := handlers.NewKPIHandler(
		services.NewKPIService(st.masters, st.assignments, logger),
		services.NewSubmissionService(st.masters, st.assignments, cfg.KPI.AllowUnassignedSubmissions, logger),
		services.NewAssignmentService(st.masters, st.assignments, logger),
		logger,
		cfg.Server.RequestTimeout,
	)
	userHandler := handlers.NewUserHandler(
		services.NewUserService(directory, st.profiles, cfg.Identity.ListUsersLimit, logger),
		logger,
		cfg.Server.RequestTimeout,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           routes.SetupRoutes(kpiHandler, userHandler, verifier, st.pinger, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory document store, data is lost on restart")
		mem := memstore.New()
		return &store{
			masters:     mem.MasterKPIs(),
			assignments: mem.Assignments(),
			profiles:    mem.UserProfiles(),
			pinger:      mem,
			close:       func(context.Context) error { return nil },
		}, nil
	}

	conn, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.CreateIndexes(conn.DB, logger); err != nil {
		logger.Warn("Failed to create indexes", zap.Error(err))
	}
	if !conn.ReplicaSet {
		logger.Warn("Transactions unavailable, batch assignments fall back to ordered bulk writes")
	}

	return &store{
		masters:     repository.NewMasterKPIRepository(conn.DB),
		assignments: repository.NewAssignmentRepository(conn.DB, conn.ReplicaSet),
		profiles:    repository.NewUserProfileRepository(conn.DB),
		pinger:      conn,
		close:       conn.Disconnect,
	}, nil
}

func openDirectory(ctx context.Context, cfg config.IdentityConfig, logger *zap.Logger) (services.Directory, error) {
	if cfg.Credentials == "" {
		logger.Warn("No identity provider credentials configured, role changes only affect an in-memory directory")
		return identity.NewMemoryDirectory(), nil
	}
	return identity.NewFirebaseDirectory(ctx, cfg)
}
