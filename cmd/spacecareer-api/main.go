package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/api"
	"github.com/snarg/spacecareer-api/internal/audio"
	"github.com/snarg/spacecareer-api/internal/catalog"
	"github.com/snarg/spacecareer-api/internal/config"
	"github.com/snarg/spacecareer-api/internal/database"
	"github.com/snarg/spacecareer-api/internal/docstore"
	"github.com/snarg/spacecareer-api/internal/metrics"
	"github.com/snarg/spacecareer-api/internal/mqttclient"
	"github.com/snarg/spacecareer-api/internal/storage"
	"github.com/snarg/spacecareer-api/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL DSN (overrides DATABASE_URL)")
	flag.StringVar(&overrides.StoreBackend, "store", "", "document store: postgres, sqlite or firestore (overrides STORE_BACKEND)")
	flag.StringVar(&overrides.FFmpegPath, "ffmpeg", "", "ffmpeg binary (overrides FFMPEG_PATH)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("spacecareer-api starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Document store
	storeLog := log.With().Str("component", "store").Str("backend", cfg.StoreBackend).Logger()
	store, closeStore, err := docstore.Open(ctx, cfg, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	defer closeStore()

	// ffmpeg
	ffVersion, err := audio.CheckFFmpeg(ctx, cfg.FFmpegPath)
	if err != nil {
		log.Fatal().Err(err).Str("ffmpeg", cfg.FFmpegPath).Msg("ffmpeg is not usable")
	}
	log.Info().Str("ffmpeg", cfg.FFmpegPath).Str("ffmpeg_version", ffVersion).Msg("ffmpeg found")

	// MQTT (optional)
	var publisher *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		publisher, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Log:         mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer publisher.Close()
	}

	// Catalog sync
	catalogLog := log.With().Str("component", "catalog").Logger()
	client := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogPageSize, cfg.CatalogRetries, cfg.CatalogTimeout)
	syncer := catalog.NewSyncer(client, store, catalogLog)
	if publisher != nil {
		syncer.SetEventPublisher(publisher.PublishEvent)
	}

	// Audio archive (optional)
	archiveLog := log.With().Str("component", "archive").Logger()
	archive, err := storage.New(cfg, archiveLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio archive")
	}

	// Speech to text. Without a key the handler answers every request with
	// the configuration error.
	var transcriber api.Transcriber
	if cfg.SpeechAPIKey != "" {
		recognizer, closeRecognizer, err := newRecognizer(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create speech recognizer")
		}
		defer closeRecognizer()

		transcoder := audio.NewTranscoder(cfg.FFmpegPath, cfg.TranscodeTimeout)
		transcoder.SetMaxConcurrent(cfg.TranscodeWorkers)

		opts := transcribe.ServiceOptions{
			Recognizer:      recognizer,
			Transcoder:      transcoder,
			DefaultLanguage: cfg.SpeechLanguage,
			Archive:         archive,
			Log:             log.With().Str("component", "transcribe").Logger(),
		}
		if publisher != nil {
			opts.PublishEvent = publisher.PublishEvent
		}
		transcriber = transcribe.NewService(opts)
		log.Info().Str("recognizer", recognizer.Name()).Str("language", cfg.SpeechLanguage).Msg("speech to text enabled")
	} else {
		log.Warn().Msg("GOOGLE_SPEECH_API_KEY not set, /speech_to_text will return 500")
	}

	// Scrape-time gauges
	pool := poolOf(store)
	var mqttProbe metrics.MQTTProbe
	var connCheck api.ConnChecker
	if publisher != nil {
		mqttProbe = publisher
		connCheck = publisher
	}
	prometheus.MustRegister(metrics.NewCollector(store, cfg.StoreBackend, pool, mqttProbe))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.ServerOptions{
		Store:       store,
		Syncer:      syncer,
		Transcriber: transcriber,
		MQTT:        connCheck,
		Archive:     archive,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("spacecareer-api stopped")
}

// newRecognizer builds the backend named by SPEECH_BACKEND.
func newRecognizer(ctx context.Context, cfg *config.Config) (transcribe.Recognizer, func(), error) {
	switch cfg.SpeechBackend {
	case "grpc":
		gc, err := transcribe.NewGRPCClient(ctx, cfg.SpeechAPIKey, cfg.SpeechTimeout)
		if err != nil {
			return nil, nil, err
		}
		return gc, func() { gc.Close() }, nil
	default:
		return transcribe.NewGoogleClient(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.SpeechTimeout), func() {}, nil
	}
}

// poolOf exposes the pgx pool for the pool gauges when the store is postgres.
func poolOf(store docstore.Store) *pgxpool.Pool {
	if db, ok := store.(*database.DB); ok {
		return db.Pool
	}
	return nil
}
