package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/tallywatch/blobstore"
	"github.com/danielhkuo/tallywatch/cliparse"
	"github.com/danielhkuo/tallywatch/db"
	"github.com/danielhkuo/tallywatch/districts"
	"github.com/danielhkuo/tallywatch/ingest"
	"github.com/danielhkuo/tallywatch/manifest"
	"github.com/danielhkuo/tallywatch/metadata"
	"github.com/danielhkuo/tallywatch/middleware"
	"github.com/danielhkuo/tallywatch/router"
	"github.com/danielhkuo/tallywatch/tracker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("tallywatch stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the sync journal
	journal, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer journal.Close()
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: time.Minute}
	decoder := ingest.NewZipDecoder()

	blobs := blobstore.New(cfg.CacheDir, baseURL, client)

	synchronizer := manifest.New(manifest.Options{
		BaseURL:   baseURL,
		Client:    client,
		LocalPath: filepath.Join(cfg.CacheDir, manifest.FileName),
		Blobs:     blobs,
		Decoder:   decoder,
		State:     journal,
	})
	if err := synchronizer.Load(ctx); err != nil {
		return err
	}

	store := districts.NewStore(synchronizer, blobs, decoder)
	synchronizer.SetEvictor(store)

	catalog, err := metadata.Load(cfg.MetadataPath)
	if err != nil {
		return err
	}

	t := tracker.New(tracker.Config{
		Election:        cfg.Election,
		Occasion:        cfg.Occasion,
		Follow:          cfg.Follow,
		Delay:           cfg.Delay,
		Level:           cfg.Level,
		CollectionLevel: cfg.CollectionLevel,
		Wednesday:       cfg.Wednesday,
		Workers:         cfg.FetchWorkers,
	}, tracker.Deps{
		Manifest: synchronizer,
		Blobs:    blobs,
		Bundles:  store,
		Catalog:  catalog,
		Journal:  journal,
		Output:   os.Stdout,
	})

	if cfg.Port > 0 {
		mux := router.NewRouter(router.Deps{
			Snapshots: t,
			Catalog:   catalog,
			Manifest:  synchronizer,
			Runs:      journal,
		})
		server := &http.Server{
			Handler: middleware.CORS(mux),
			Addr:    ":" + strconv.Itoa(cfg.Port),
		}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		go func() {
			slog.Info("Listening", "port", cfg.Port)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server closed", "error", err)
				stop()
			}
		}()
	}

	slog.Info("tracking results",
		"url", cfg.BaseURL,
		"election", cfg.Election,
		"occasion", cfg.Occasion,
		"follow", cfg.Follow,
	)
	if err := t.Run(ctx); err != nil {
		return err
	}

	// A single run keeps serving its snapshot until interrupted
	if cfg.Port > 0 {
		<-ctx.Done()
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
