package transcribe

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/audio"
	"github.com/snarg/spacecareer-api/internal/metrics"
	"github.com/snarg/spacecareer-api/internal/storage"
)

// DefaultLanguage is used when neither the caller nor config names one.
const DefaultLanguage = "en-US"

// Transcoder converts arbitrary input audio to LINEAR16 WAV.
type Transcoder interface {
	ToLinear16WAV(ctx context.Context, data []byte) ([]byte, audio.Format, error)
}

// EventPublishFunc is a callback for publishing domain events.
type EventPublishFunc func(eventType string, payload map[string]any)

// Request is one transcription call.
type Request struct {
	AudioContent string // base64
	LanguageCode string // optional
	RequestID    string // optional, used for archive keys and logs
}

// Result is a successful transcription.
type Result struct {
	Transcript string
	Raw        json.RawMessage
	Language   string
	Format     audio.Format
}

// ServiceOptions configures the transcription service.
type ServiceOptions struct {
	Recognizer      Recognizer
	Transcoder      Transcoder
	DefaultLanguage string
	Archive         storage.AudioStore // nil disables archiving
	PublishEvent    EventPublishFunc   // nil disables events
	Log             zerolog.Logger
}

// Service runs the decode → transcode → recognize pipeline.
type Service struct {
	opts ServiceOptions
	log  zerolog.Logger
}

// NewService creates a transcription service.
func NewService(opts ServiceOptions) *Service {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultLanguage
	}
	return &Service{opts: opts, log: opts.Log}
}

// Transcribe runs one request to completion. Errors are *Error values
// tagged with the failing stage.
func (s *Service) Transcribe(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.transcribe(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.TranscriptionsTotal.WithLabelValues(outcome).Inc()
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) transcribe(ctx context.Context, req Request) (*Result, error) {
	log := s.log.With().Str("request_id", req.RequestID).Logger()

	// 1. base64 → raw bytes
	raw, err := DecodeAudioContent(req.AudioContent)
	if err != nil {
		return nil, errorOf(KindDecode, err)
	}

	// 2. any container → LINEAR16 WAV
	tcStart := time.Now()
	wav, format, err := s.opts.Transcoder.ToLinear16WAV(ctx, raw)
	if err != nil {
		return nil, errorOf(KindTranscode, err)
	}
	metrics.TranscodeDuration.Observe(time.Since(tcStart).Seconds())
	log.Debug().
		Int("input_bytes", len(raw)).
		Int("wav_bytes", len(wav)).
		Int("channels", format.Channels).
		Int("sample_rate", format.SampleRate).
		Dur("audio_duration", format.Duration).
		Msg("audio transcoded")

	// 3. archive (best effort)
	if s.opts.Archive != nil {
		s.archive(ctx, log, req.RequestID, wav)
	}

	// 4. recognize
	lang := strings.TrimSpace(req.LanguageCode)
	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	rec, err := s.opts.Recognizer.Recognize(ctx, wav, lang)
	if err != nil {
		if KindOf(err) == "" {
			err = errorOf(KindNetwork, err)
		}
		return nil, err
	}

	log.Debug().
		Str("recognizer", s.opts.Recognizer.Name()).
		Str("language", lang).
		Int("transcript_chars", len(rec.Transcript)).
		Msg("transcription complete")

	if s.opts.PublishEvent != nil {
		s.opts.PublishEvent("speech.transcribed", map[string]any{
			"request_id":     req.RequestID,
			"language":       lang,
			"transcript":     rec.Transcript,
			"audio_duration": format.Duration.Seconds(),
			"recognizer":     s.opts.Recognizer.Name(),
		})
	}

	return &Result{
		Transcript: rec.Transcript,
		Raw:        rec.Raw,
		Language:   lang,
		Format:     format,
	}, nil
}

func (s *Service) archive(ctx context.Context, log zerolog.Logger, requestID string, wav []byte) {
	id := requestID
	if id == "" {
		id = randomID()
	}
	key := ArchiveKey(time.Now(), id)
	if err := s.opts.Archive.Save(ctx, key, wav, "audio/wav"); err != nil {
		log.Warn().Err(err).Str("key", key).Str("store", s.opts.Archive.Type()).Msg("audio archive failed")
		return
	}
	log.Debug().Str("key", key).Str("store", s.opts.Archive.Type()).Msg("audio archived")
}

// ArchiveKey returns the storage key for an archived clip.
func ArchiveKey(t time.Time, id string) string {
	return fmt.Sprintf("stt/%s/%s.wav", t.UTC().Format("2006-01-02"), sanitizeKey(id))
}

func sanitizeKey(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

var errEmptyContent = errors.New("audio content is empty")

// DecodeAudioContent decodes base64 audio. Standard and URL-safe alphabets,
// with or without padding, are accepted, as are embedded whitespace and a
// leading data URI header ("data:audio/m4a;base64,").
func DecodeAudioContent(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, errEmptyContent
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("invalid base64 audio content: %w", firstErr)
}
