package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/config"
)

// AudioStore abstracts where transcoded clips are archived.
type AudioStore interface {
	// Save stores audio data. key format: stt/{YYYY-MM-DD}/{request-id}.wav
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for a previously saved clip.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key has been saved.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates the AudioStore named by cfg.AudioArchive. It returns a nil
// store for "none". An S3 archive is checked against the bucket before it is
// returned so bad credentials fail at startup.
func New(cfg *config.Config, log zerolog.Logger) (AudioStore, error) {
	switch cfg.AudioArchive {
	case "", "none":
		return nil, nil
	case "local":
		ls := NewLocalStore(cfg.AudioDir)
		log.Info().Str("dir", ls.Dir()).Msg("archiving transcoded audio locally")
		return ls, nil
	case "s3":
	default:
		return nil, fmt.Errorf("unknown audio archive %q", cfg.AudioArchive)
	}

	s3store, err := NewS3Store(cfg.S3, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3.Bucket, cfg.S3.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3.Bucket).Str("endpoint", cfg.S3.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}
