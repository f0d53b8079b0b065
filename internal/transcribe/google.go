package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleClient calls the Cloud Speech-to-Text v1 REST endpoint
// (speech:recognize) authenticated with an API key.
// Implements the Recognizer interface.
type GoogleClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding                   string `json:"encoding"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleResult struct {
	Alternatives []struct {
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
	} `json:"alternatives"`
}

// NewGoogleClient creates a REST recognizer. baseURL is normally
// https://speech.googleapis.com.
func NewGoogleClient(baseURL, apiKey string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the recognizer name.
func (gc *GoogleClient) Name() string { return "google-rest" }

// Recognize base64-encodes the WAV, submits it and extracts the first
// alternative of the first result. A response without results is a valid
// empty transcript. Any response carrying an "error" field, whatever its
// HTTP status, is returned as a KindRemote error with the field attached.
func (gc *GoogleClient) Recognize(ctx context.Context, wav []byte, languageCode string) (*Recognition, error) {
	payload, err := json.Marshal(googleRecognizeRequest{
		Config: googleRecognitionConfig{
			Encoding:                   "LINEAR16",
			LanguageCode:               languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: googleRecognitionAudio{Content: base64.StdEncoding.EncodeToString(wav)},
	})
	if err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("encode request: %w", err))
	}

	endpoint := gc.baseURL + "/v1/speech:recognize?" + url.Values{"key": {gc.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := gc.client.Do(req)
	if err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("speech request: %s", gc.redact(err.Error())))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("read response: %w", err))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}

	if remote, ok := fields["error"]; ok {
		return nil, &Error{
			Kind:   KindRemote,
			Err:    fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(remote)),
			Remote: remote,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorOf(KindRemote, fmt.Errorf("speech API status %d: %s", resp.StatusCode, string(body)))
	}

	rec := &Recognition{Raw: json.RawMessage(body)}
	if raw, ok := fields["results"]; ok {
		var results []googleResult
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, errorOf(KindNetwork, fmt.Errorf("decode results: %w", err))
		}
		if len(results) > 0 && len(results[0].Alternatives) > 0 {
			rec.Transcript = results[0].Alternatives[0].Transcript
		}
	}
	return rec, nil
}

// redact strips the API key from msg; url.Error embeds the request URL.
func (gc *GoogleClient) redact(msg string) string {
	if gc.apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(gc.apiKey), "REDACTED")
}
