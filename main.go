package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal"
	"sjsage522/consoledealworker/internal/api"
	"sjsage522/consoledealworker/internal/runstate"
	"sjsage522/consoledealworker/internal/source"
	"sjsage522/consoledealworker/internal/storage"
	"sjsage522/consoledealworker/internal/store"
	"sjsage522/consoledealworker/internal/vision"
	"sjsage522/consoledealworker/logger"
	"sjsage522/consoledealworker/services/cache"
	"sjsage522/consoledealworker/services/publisher"
	"sjsage522/consoledealworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	filters, err := config.LoadFilters(cfg.FiltersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load filters")
	}

	settings, err := config.LoadSettings(cfg.SettingsFile, config.DefaultSettings(cfg))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings, using defaults")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("check_interval_minutes", settings.CheckInterval).
		Bool("ai_detection", settings.AIDetection).
		Bool("description_scan", settings.DescriptionScan).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg, filters)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Create sources
	services.Renderer = source.NewChromeRenderer(cfg.ChromeBin, cfg.ChromeWait)
	sources := source.CreateSources(source.BuiltinConfigs(cfg), services.Deps.Cache, services.Renderer)
	if len(sources) == 0 {
		log.Fatal().Msg("No sources were created")
	}

	// Create worker
	w := worker.NewWorker(
		ctx,
		sources,
		services.Deps,
		filters,
		settings,
		runstate.New(),
		cfg.CheckInterval,
	)
	if cfg.AutoStart {
		w.Start()
	}

	// Start control API
	server := api.NewServer(cfg.APIAddr, w, services.Deps.Store, cfg.SettingsFile, cfg.Environment != "production")
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil {
			log.Error().Err(err).Msg("Control API exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Control API shutdown failed")
	}
	cancel()
	w.Stop()
}

// Services holds all the initialized services
type Services struct {
	Deps     internal.Dependencies
	Renderer *source.ChromeRenderer
	closers  []func() error
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Renderer != nil {
		s.Renderer.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("cleanup: %v", err)
		}
	}
}

// initializeServices initializes all required services. A seen set that
// cannot be loaded is fatal; optional services degrade with a warning.
func initializeServices(ctx context.Context, cfg *config.Config, filters *config.Filters) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	services.Deps.Cache = newCache(cfg)

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(); err != nil {
		logger.Warn("Redis at %s not reachable yet: %v", cfg.RedisAddr, err)
	}
	services.Deps.Publisher = redisPublisher
	services.closers = append(services.closers, redisPublisher.Close)

	logger.Info("Publishing to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	// Load the seen set
	var backend store.Backend
	switch cfg.SeenStoreBackend {
	case "redis":
		rb := store.NewRedisBackend(cfg.RedisAddr, cfg.RedisDB, cfg.SeenStoreKey)
		services.closers = append(services.closers, rb.Close)
		backend = rb
	default:
		backend = store.NewFileBackend(cfg.SeenStoreFile)
	}
	seen := store.New(backend)
	if err := seen.Load(ctx); err != nil {
		services.Cleanup()
		return nil, fmt.Errorf("load seen listings: %w", err)
	}
	services.Deps.Store = seen

	// Initialize listing sink
	services.Deps.Sink = storage.NopSink{}
	if cfg.DatabaseURL != "" {
		sink, err := storage.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("Listing sink disabled: %v", err)
		} else {
			services.Deps.Sink = sink
			services.closers = append(services.closers, sink.Close)
		}
	}

	// Initialize image classifier. Without a key every image check fails
	// open and the listing is flagged unverified.
	google := vision.NewGoogleVision(cfg.VisionAPIKey, "", vision.NewScorer(filters.Vision))
	cached := vision.NewCached(google, services.Deps.Cache, cfg.VisionCache)
	services.Deps.Image = vision.NewFailOpen(cached, cfg.VisionTimeout)
	if cfg.VisionAPIKey == "" {
		logger.Warn("No vision API key, image checks will mark listings unverified")
	}

	return services, nil
}

// newCache connects to memcache, falling back to an in-process cache when no
// server is configured or reachable
func newCache(cfg *config.Config) cache.CacheService {
	if cfg.MemcacheAddr == "" {
		return cache.NewMemoryCache()
	}
	mc := cache.NewMemcacheService(cfg.MemcacheAddr, "consoledeal:")
	if err := mc.Ping(); err != nil {
		logger.Warn("Memcache at %s not reachable, using in-process cache: %v", cfg.MemcacheAddr, err)
		return cache.NewMemoryCache()
	}
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	return mc
}
