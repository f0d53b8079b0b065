package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/spacecareer-api/internal/storage"
	"github.com/snarg/spacecareer-api/internal/transcribe"
)

// ClipsHandler serves archived transcoded audio back by date and request ID.
type ClipsHandler struct {
	archive storage.AudioStore // nil when AUDIO_ARCHIVE=none
}

func NewClipsHandler(archive storage.AudioStore) *ClipsHandler {
	return &ClipsHandler{archive: archive}
}

// Get handles GET /api/v1/clips/{date}/{id}. The ID is the X-Request-ID the
// transcription was served under.
func (h *ClipsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		WriteError(w, http.StatusNotFound, "audio archive disabled")
		return
	}

	date := chi.URLParam(r, "date")
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid date", "want YYYY-MM-DD, got "+strconv.Quote(date))
		return
	}
	id, err := PathString(r, "id")
	if err != nil || id == "" {
		WriteError(w, http.StatusBadRequest, "invalid clip id")
		return
	}

	key := transcribe.ArchiveKey(day, id)
	if !h.archive.Exists(r.Context(), key) {
		WriteError(w, http.StatusNotFound, "clip not found")
		return
	}

	rc, err := h.archive.Open(r.Context(), key)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Str("store", h.archive.Type()).Msg("failed to open archived clip")
		WriteErrorDetail(w, http.StatusInternalServerError, "failed to read clip", h.archive.Type()+" archive unavailable")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("clip download interrupted")
	}
}
