// Package main is the entry point for the vulneromics server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vulneromics/server/internal/abc"
	"github.com/vulneromics/server/internal/api"
	"github.com/vulneromics/server/internal/cache"
	"github.com/vulneromics/server/internal/config"
	"github.com/vulneromics/server/internal/dataset"
	"github.com/vulneromics/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting vulneromics server on port %d", cfg.Server.Port)

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		TableEntries: cfg.Cache.TableEntries,
		QuerySizeMB:  cfg.Cache.QuerySizeMB,
		QueryTTL:     time.Duration(cfg.Cache.QueryTTLMinutes) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize the cache resolver (shared cache root for all datasets)
	resolver := abc.NewDirCache(cfg.Data.CacheDir)
	log.Printf("Cache root: %s", cfg.Data.CacheDir)

	// Loader shared across datasets; tables are keyed per file
	loader := &dataset.Loader{
		Cache:   cacheManager,
		Columns: cfg.Columns,
	}

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	if len(datasetIDs) == 0 {
		log.Fatal("No datasets configured (set data.metadata_path or add a dataset block)")
	}
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset, datasetIDs, cfg.Server.Title)

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	for _, datasetID := range datasetIDs {
		ds := cfg.Data.Datasets[datasetID]

		panelName := ds.Panel
		if panelName == "" {
			panelName = config.DefaultPanel
		}
		panel, ok := cfg.Panels[panelName]
		if !ok {
			log.Fatalf("  [%s] Unknown gene panel %q", datasetID, panelName)
		}

		explorer := service.NewExplorer(service.ExplorerConfig{
			DatasetID:        datasetID,
			Resolver:         resolver,
			Loader:           loader,
			Cache:            cacheManager,
			MetadataPath:     ds.MetadataPath,
			ExpressionPath:   ds.ExpressionPath,
			ExpressionFormat: ds.ExpressionFormat,
			Panel:            panel,
			MaxPoints3D:      cfg.Plot.MaxPoints3D,
			Seed:             cfg.Plot.Seed,
		})
		registry.Register(datasetID, explorer)

		log.Printf("  [%s] metadata: %s", datasetID, ds.MetadataPath)
		if ds.ExpressionPath != "" {
			log.Printf("  [%s] expression: %s (panel %s, %d genes)", datasetID, ds.ExpressionPath, panelName, len(panel))
		} else {
			log.Printf("  [%s] metadata only (panel %s)", datasetID, panelName)
		}
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
