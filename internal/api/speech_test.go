package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snarg/spacecareer-api/internal/transcribe"
)

type fakeTranscriber struct {
	got transcribe.Request
	res *transcribe.Result
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req transcribe.Request) (*transcribe.Result, error) {
	f.got = req
	return f.res, f.err
}

func postSpeech(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/speech_to_text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	s, _ := body["error"].(string)
	return s
}

func TestSpeechHandler(t *testing.T) {
	t.Run("missing_key_checked_first", func(t *testing.T) {
		// body is also invalid; the key error still wins
		rec := postSpeech(NewSpeechHandler(nil, 0), `{}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if got := errorBody(t, rec); got != "GOOGLE_SPEECH_API_KEY not set" {
			t.Errorf("error = %q", got)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"empty_object", `{}`},
		{"empty_string", `{"audioContent":""}`},
		{"null", `{"audioContent":null,"config":{"languageCode":"en-US"}}`},
		{"other_fields_only", `{"config":{"languageCode":"en-US"}}`},
		{"not_json", `audio please`},
		{"empty_body", ``},
	}
	for _, tt := range tests {
		t.Run("missing_audio_"+tt.name, func(t *testing.T) {
			svc := &fakeTranscriber{}
			rec := postSpeech(NewSpeechHandler(svc, 0), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := errorBody(t, rec); got != "audioContent (base64) is required" {
				t.Errorf("error = %q", got)
			}
			if svc.got.AudioContent != "" {
				t.Error("transcriber should not be called")
			}
		})
	}

	mistyped := []struct {
		name string
		body string
	}{
		{"audio_number", `{"audioContent":12345}`},
		{"audio_object", `{"audioContent":{"data":"UklGRg=="}}`},
		{"config_string", `{"audioContent":"UklGRg==","config":"fr-FR"}`},
		{"language_number", `{"audioContent":"UklGRg==","config":{"languageCode":5}}`},
	}
	for _, tt := range mistyped {
		t.Run("mistyped_"+tt.name, func(t *testing.T) {
			svc := &fakeTranscriber{}
			rec := postSpeech(NewSpeechHandler(svc, 0), tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if got := errorBody(t, rec); got != "Internal STT error" {
				t.Errorf("error = %q", got)
			}
			if svc.got.AudioContent != "" {
				t.Error("transcriber should not be called")
			}
		})
	}

	t.Run("hello_world_passthrough", func(t *testing.T) {
		stub := `{"results":[{"alternatives":[{"transcript":"hello world","confidence":0.98}]}]}`
		svc := &fakeTranscriber{res: &transcribe.Result{Transcript: "hello world", Raw: json.RawMessage(stub)}}
		rec := postSpeech(NewSpeechHandler(svc, 0), `{"audioContent":"AAAA","config":{"languageCode":"fr-FR"}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
		}
		var body struct {
			Transcript string          `json:"transcript"`
			Raw        json.RawMessage `json:"raw"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Transcript != "hello world" {
			t.Errorf("transcript = %q", body.Transcript)
		}
		if string(body.Raw) != stub {
			t.Errorf("raw = %s, want %s", body.Raw, stub)
		}
		if svc.got.LanguageCode != "fr-FR" || svc.got.AudioContent != "AAAA" {
			t.Errorf("request = %+v", svc.got)
		}
	})

	t.Run("zero_results_is_200", func(t *testing.T) {
		svc := &fakeTranscriber{res: &transcribe.Result{Raw: json.RawMessage(`{}`)}}
		rec := postSpeech(NewSpeechHandler(svc, 0), `{"audioContent":"AAAA"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"transcript":""`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("remote_error_passthrough", func(t *testing.T) {
		remote := json.RawMessage(`{"code":400,"message":"Invalid recognition 'config': bad encoding.","status":"INVALID_ARGUMENT"}`)
		svc := &fakeTranscriber{err: &transcribe.Error{Kind: transcribe.KindRemote, Err: errors.New("rejected"), Remote: remote}}
		rec := postSpeech(NewSpeechHandler(svc, 0), `{"audioContent":"AAAA"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		var body struct {
			Error json.RawMessage `json:"error"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if string(body.Error) != string(remote) {
			t.Errorf("error = %s, want %s", body.Error, remote)
		}
	})

	internal := []struct {
		name string
		err  error
	}{
		{"decode", &transcribe.Error{Kind: transcribe.KindDecode, Err: errors.New("illegal base64 data at input byte 4")}},
		{"transcode", &transcribe.Error{Kind: transcribe.KindTranscode, Err: errors.New("Invalid data found when processing input")}},
		{"network", &transcribe.Error{Kind: transcribe.KindNetwork, Err: errors.New("dial tcp: i/o timeout")}},
		{"remote_without_body", &transcribe.Error{Kind: transcribe.KindRemote, Err: errors.New("status 503")}},
		{"untyped", errors.New("boom")},
	}
	for _, tt := range internal {
		t.Run("internal_"+tt.name, func(t *testing.T) {
			rec := postSpeech(NewSpeechHandler(&fakeTranscriber{err: tt.err}, 0), `{"audioContent":"AAAA"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if got := errorBody(t, rec); got != "Internal STT error" {
				t.Errorf("error = %q", got)
			}
			if strings.Contains(rec.Body.String(), tt.err.Error()) {
				t.Error("cause leaked to client")
			}
		})
	}

	t.Run("body_too_large", func(t *testing.T) {
		big := `{"audioContent":"` + strings.Repeat("A", 1024) + `"}`
		rec := postSpeech(NewSpeechHandler(&fakeTranscriber{}, 64), big)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})

	t.Run("request_id_forwarded", func(t *testing.T) {
		svc := &fakeTranscriber{res: &transcribe.Result{}}
		h := RequestID(NewSpeechHandler(svc, 0))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/speech_to_text", strings.NewReader(`{"audioContent":"AAAA"}`))
		req.Header.Set("X-Request-ID", "req-42")
		h.ServeHTTP(rec, req)
		if svc.got.RequestID != "req-42" {
			t.Errorf("RequestID = %q, want req-42", svc.got.RequestID)
		}
	})
}
