// Command graphdb is an example driver for the storage-and-query
// engine: it loads configuration, builds the configured BlobBackend,
// constructs a graphdb.Engine, and serves a small HTTP API over it for
// manual exercising.
//
//	graphdb serve --config graphdb.yaml
//
// Every request the server handles is authorized as a single
// configured identity (auth.isAdmin / auth.permissions in config) —
// resolving a per-request caller identity is the job of whatever sits
// in front of this driver in a real deployment, not of this package.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/graphdb"
	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/model"
)

var cfgFile string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "graphdb",
	Short: "Example driver for the graph storage-and-query engine",
	Long: `graphdb wires a blob backend, the cache/index store, and the query
planner into a graphdb.Engine and serves a small HTTP API over it, for
exercising the engine by hand without writing Go.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml/toml/json)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable development-mode logging")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	log, err := buildLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	backend, err := buildBackend(cmd.Context(), cfg.Backend)
	if err != nil {
		return fmt.Errorf("building backend: %w", err)
	}

	engine := graphdb.New(backend, graphdb.Config{
		Shard:             cfg.Shard,
		Validate:          cfg.Validate,
		Index:             cfg.Index,
		CacheCapacity:     cfg.CacheCapacity,
		DefaultQueryLimit: cfg.DefaultQueryLimit,
		MaxQueryLimit:     cfg.MaxQueryLimit,
		Logger:            log,
	})

	auth := model.AuthContext{
		IsAdmin:         cfg.Auth.IsAdmin,
		UserPermissions: model.NewPermissions(cfg.Auth.Permissions...),
	}

	srv := newServer(engine, auth, log)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("graphdb listening", zap.String("addr", cfg.Listen), zap.String("backend", cfg.Backend.Kind))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	log.Info("graphdb stopped")
	return nil
}

// buildBackend constructs the configured blobstore.Backend. Credential
// and endpoint resolution for S3 goes through the AWS SDK's own config
// loading (environment, shared config file, instance profile) — this
// driver never reads those directly.
func buildBackend(ctx context.Context, bc backendConfig) (blobstore.Backend, error) {
	switch bc.Kind {
	case "", "memory":
		return blobstore.NewMemoryBackend(), nil

	case "fs":
		return blobstore.NewFSBackend(afero.NewOsFs(), bc.FSRoot)

	case "s3":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(bc.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return blobstore.NewS3Backend(client, bc.S3Bucket), nil

	default:
		return nil, fmt.Errorf("unknown backend kind %q (want memory, fs, or s3)", bc.Kind)
	}
}
