package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/modelchain/internal/app"
	"github.com/asakaida/modelchain/internal/handlers"
	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/infrastructure/metrics"
	pb "github.com/asakaida/modelchain/proto/modelchain/v1"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

const defaultEnv = "dev"

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	core, err := app.New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer core.Close()

	if cfg.Database.Driver == config.DriverSQLite {
		log.Printf("Connected to sqlite database: %s", cfg.Database.Path)
	} else {
		log.Printf("Connected to database: %s@%s:%d/%s",
			cfg.Database.User,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database)
	}

	// Load every field list up front so schema problems surface at startup
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	err = core.Warm(warmCtx)
	cancelWarm()
	if err != nil {
		log.Fatalf("Failed to load entity field lists: %v", err)
	}
	log.Printf("Loaded %d entity definitions from %s", len(core.Names()), cfg.Registry.DefinitionsPath)

	dataHandler := handlers.NewDataHandler(core, core.Resolver, core.Renderer)

	// Create gRPC server
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(core.Collector, core.Exporter)),
	)
	pb.RegisterDataServiceServer(grpcServer, dataHandler)

	adminServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort),
		Handler:           handlers.NewAdminRouter(core, prometheus.DefaultGatherer, core.Exporter.Update),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start listening
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	log.Printf("gRPC server listening on %s", listener.Addr())
	log.Printf("Admin server listening on %s", adminServer.Addr)

	// Start servers in goroutines
	serverErrors := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)
		grpcServer.Stop()
		adminServer.Close()
		core.Close()
		os.Exit(1)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down admin server: %v", err)
		}

		// Channel to notify when graceful stop completes
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		// Wait for graceful stop or timeout
		select {
		case <-stopped:
			log.Println("Server stopped gracefully")
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}

		log.Println("Shutdown complete")
	}
}
