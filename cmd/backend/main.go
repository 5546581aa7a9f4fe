package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"filedrop/internal/config"
	"filedrop/internal/db"
	"filedrop/internal/passphrase"
	"filedrop/internal/server"
	"filedrop/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "invalid_configuration", err)
		os.Exit(1)
	}

	logOpts := server.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if cfg.Log.ToFile {
		logOpts.Dir = cfg.LogDir()
	}
	log, flush, err := server.NewLogger(logOpts, time.Now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "logger_init_failed", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("backend exited", zap.Error(err))
		flush()
		os.Exit(1)
	}
	flush()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	words, err := passphrase.Load(cfg.WordlistPath)
	if err != nil {
		return fmt.Errorf("load wordlist: %w", err)
	}
	log.Info("wordlist loaded", zap.Int("words", words.Size()))

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("close metadata store", zap.Error(err))
		}
	}()

	blob, err := openBlob(ctx, cfg)
	if err != nil {
		return err
	}

	if sweeper, ok := blob.(server.TempSweeper); ok {
		go server.StartCleanupJob(ctx, server.CleanupConfig{
			Interval: cfg.CleanupInterval,
			MaxAge:   cfg.CleanupMaxAge,
			Sweeper:  sweeper,
			Logger:   log,
		})
	}

	srv := server.New(server.Config{
		Addr:            cfg.Addr,
		APIKey:          cfg.APIKey,
		MaxUploadSize:   cfg.MaxUploadSize,
		MaxRequestBytes: cfg.MaxRequestBytes(),
		PublicDir:       cfg.PublicDir,
		Version:         version,
	}, server.Deps{
		Store:       store,
		Blob:        blob,
		Layout:      storage.NewLayout(cfg.UploadDir()),
		Passphrases: words,
		Logger:      log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting",
			zap.String("addr", cfg.Addr),
			zap.String("version", version),
			zap.String("metadata", cfg.MetadataBackend),
			zap.String("storage", cfg.StorageBackend),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

// openStore connects the configured metadata backend. Postgres schemas
// are migrated before the store is returned.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (db.Store, error) {
	switch cfg.MetadataBackend {
	case config.BackendMongo:
		store, err := db.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))
		return store, nil

	case config.BackendPostgres:
		conn, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("running migrations")
		if err := db.RunMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations complete")
		return db.NewPostgresStore(conn), nil
	}
	return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
}

// openBlob returns the configured file store.
func openBlob(ctx context.Context, cfg config.Config) (storage.Blob, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		local, err := storage.NewLocalBlob(cfg.UploadDir())
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.StorageMinio:
		remote, err := storage.NewMinioBlob(ctx, storage.MinioConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
