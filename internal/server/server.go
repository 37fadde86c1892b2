// Package server wires the services together and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"plantframe/internal/api"
	"plantframe/internal/conf"
	"plantframe/internal/frame"
	"plantframe/internal/identify"
	"plantframe/internal/kvstore"
	"plantframe/internal/logging"
	"plantframe/internal/observability"
	"plantframe/internal/photos"
	"plantframe/internal/plantnet"
)

const shutdownTimeout = 10 * time.Second

// Store namespaces. The cache namespaces expire, the rest are durable.
const (
	nsPhotoCache  = "photocache"
	nsAlbumCache  = "albumcache"
	nsFrame       = "frame"
	nsGroups      = "groups"
	nsMediaGroups = "mediagroups"
)

// Run builds the full service stack from settings and serves HTTP until the
// process receives an interrupt or termination signal.
func Run(settings *conf.Settings) error {
	logLevel := slog.LevelInfo
	if settings.Debug {
		logLevel = slog.LevelDebug
	}
	logging.Init(logLevel)
	logger := logging.Structured().With("component", "server")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store, err := kvstore.Open(settings.Store.Path, kvstore.WithMetrics(metrics.Store))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	identifier, err := plantnet.NewClient(plantnet.Config{
		Endpoint:    settings.PlantNet.Endpoint,
		APIKey:      settings.PlantNet.APIKey,
		Timeout:     settings.PlantNet.Timeout,
		RateLimitMS: settings.PlantNet.RateLimitMS,
	}, metrics.Identify)
	if err != nil {
		return err
	}

	library := photos.NewClient(photos.Config{
		APIEndpoint:    settings.Photos.APIEndpoint,
		SearchPageSize: settings.Photos.SearchPageSize,
		AlbumPageSize:  settings.Photos.AlbumPageSize,
		PhotosToLoad:   settings.Photos.PhotosToLoad,
		Timeout:        settings.Photos.Timeout,
		DetailCacheTTL: settings.Photos.DetailCacheTTL,
	}, metrics.Photos)
	defer library.Close()

	// The quota key shares the durable frame namespace.
	frameBucket := store.Namespace(nsFrame, 0)

	identifySvc := identify.NewService(
		identify.NewGroupStore(store.Namespace(nsGroups, 0)),
		identify.NewMediaIndex(store.Namespace(nsMediaGroups, 0)),
		identifier,
		library,
		frameBucket,
		metrics.Identify,
	)
	defer identifySvc.Close()

	frameSvc := frame.NewService(
		library,
		store.Namespace(nsPhotoCache, settings.Store.PhotoCacheTTL),
		store.Namespace(nsAlbumCache, settings.Store.AlbumCacheTTL),
		frameBucket,
	)
	defer frameSvc.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	controller := api.New(e, settings, identifySvc, frameSvc,
		log.New(os.Stderr, "api: ", log.LstdFlags), metrics)
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("starting HTTP server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
