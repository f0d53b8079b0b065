package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/spacecareer-api/internal/transcribe"
)

const (
	msgKeyNotSet     = "GOOGLE_SPEECH_API_KEY not set"
	msgAudioRequired = "audioContent (base64) is required"
	msgInternalSTT   = "Internal STT error"
	msgBodyTooLarge  = "request body too large"
)

// Transcriber runs the speech-to-text pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

type SpeechHandler struct {
	svc          Transcriber // nil when no API key is configured
	maxBodyBytes int64
}

func NewSpeechHandler(svc Transcriber, maxBodyBytes int64) *SpeechHandler {
	return &SpeechHandler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// speechRequest keeps the fields raw so a missing audioContent can be told
// apart from one of the wrong type.
type speechRequest struct {
	AudioContent json.RawMessage `json:"audioContent"`
	Config       json.RawMessage `json:"config"`
}

type speechConfig struct {
	LanguageCode string `json:"languageCode"`
}

// errMalformedRequest marks a body whose fields are present but mistyped.
var errMalformedRequest = errors.New("malformed speech request")

// fields extracts the audio and language. ok is false when audioContent is
// absent, null or empty; err is set when a field has the wrong JSON type.
func (sr speechRequest) fields() (audio, lang string, ok bool, err error) {
	if isJSONNull(sr.AudioContent) {
		return "", "", false, nil
	}
	if err := json.Unmarshal(sr.AudioContent, &audio); err != nil {
		return "", "", false, fmt.Errorf("%w: audioContent: %v", errMalformedRequest, err)
	}
	if audio == "" {
		return "", "", false, nil
	}
	if !isJSONNull(sr.Config) {
		var cfg speechConfig
		if err := json.Unmarshal(sr.Config, &cfg); err != nil {
			return "", "", false, fmt.Errorf("%w: config: %v", errMalformedRequest, err)
		}
		lang = cfg.LanguageCode
	}
	return audio, lang, true, nil
}

func isJSONNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

type speechResponse struct {
	Transcript string          `json:"transcript"`
	Raw        json.RawMessage `json:"raw"`
}

// ServeHTTP handles POST /speech_to_text.
func (h *SpeechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if h.svc == nil {
		log.Error().Msg("speech request rejected: api key not configured")
		WriteError(w, http.StatusInternalServerError, msgKeyNotSet)
		return
	}

	if h.maxBodyBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	var req speechRequest
	if err := DecodeJSON(r, &req); err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		log.Debug().Err(err).Msg("speech request body not decodable")
		WriteError(w, http.StatusBadRequest, msgAudioRequired)
		return
	}
	audio, lang, ok, err := req.fields()
	if err != nil {
		log.Error().Err(err).Str("kind", "request").Msg("speech to text failed")
		WriteError(w, http.StatusInternalServerError, msgInternalSTT)
		return
	}
	if !ok {
		WriteError(w, http.StatusBadRequest, msgAudioRequired)
		return
	}

	res, err := h.svc.Transcribe(r.Context(), transcribe.Request{
		AudioContent: audio,
		LanguageCode: lang,
		RequestID:    requestIDFrom(w),
	})
	if err != nil {
		if remote, ok := transcribe.RemoteDetail(err); ok {
			log.Warn().Err(err).Msg("speech recognizer returned an error")
			WriteJSON(w, http.StatusInternalServerError, map[string]json.RawMessage{"error": remote})
			return
		}
		log.Error().Err(err).Str("kind", string(transcribe.KindOf(err))).Msg("speech to text failed")
		WriteError(w, http.StatusInternalServerError, msgInternalSTT)
		return
	}

	raw := res.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	WriteJSON(w, http.StatusOK, speechResponse{Transcript: res.Transcript, Raw: raw})
}
