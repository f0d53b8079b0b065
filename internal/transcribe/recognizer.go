package transcribe

import (
	"context"
	"encoding/json"
)

// Recognizer is the interface for speech-to-text backends. Audio is always
// 16-bit linear PCM in a WAV container.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte, languageCode string) (*Recognition, error)
	Name() string // "google-rest", "google-grpc"
}

// Recognition is a recognizer's answer: the first transcript and the full
// response for diagnostics.
type Recognition struct {
	Transcript string
	Raw        json.RawMessage
}
