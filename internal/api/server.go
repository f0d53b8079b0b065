package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/config"
	"github.com/snarg/spacecareer-api/internal/metrics"
	"github.com/snarg/spacecareer-api/internal/storage"
)

// CourseStore is the read side of the document store plus its health check.
type CourseStore interface {
	StoreChecker
	CourseReader
}

// ServerOptions holds the dependencies wired in main.
type ServerOptions struct {
	Store       CourseStore
	Syncer      CourseSyncer
	Transcriber Transcriber        // nil when GOOGLE_SPEECH_API_KEY is unset
	MQTT        ConnChecker        // nil when event publishing is disabled
	Archive     storage.AudioStore // nil when AUDIO_ARCHIVE=none
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, opts ServerOptions) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// NewRouter builds the route tree. Split out of NewServer so tests can drive
// it with httptest.
func NewRouter(cfg *config.Config, opts ServerOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORSWithOrigins(cfg.CORSOriginList()))
	r.Use(metrics.InstrumentHandler)

	// Health and metrics: no auth
	health := NewHealthHandler(opts.Store, cfg.StoreBackend, opts.MQTT, opts.Transcriber != nil, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	courses := NewCoursesHandler(opts.Syncer, opts.Store)
	speech := NewSpeechHandler(opts.Transcriber, cfg.MaxBodyBytes)
	clips := NewClipsHandler(opts.Archive)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		r.Get("/scrape_courses", courses.Scrape)
		r.With(RateLimiter(cfg.SpeechRateLimit, cfg.SpeechRateBurst)).
			Post("/speech_to_text", speech.ServeHTTP)

		r.Route("/api/v1/courses", func(r chi.Router) {
			r.Get("/", courses.List)
			r.Get("/{title}", courses.Get)
		})
		r.Get("/api/v1/clips/{date}/{id}", clips.Get)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
