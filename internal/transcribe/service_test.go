package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/audio"
)

type fakeTranscoder struct {
	gotInput []byte
	err      error
}

func (f *fakeTranscoder) ToLinear16WAV(_ context.Context, data []byte) ([]byte, audio.Format, error) {
	f.gotInput = data
	if f.err != nil {
		return nil, audio.Format{}, f.err
	}
	return append([]byte("WAV:"), data...), audio.Format{Channels: 1, SampleRate: 16000, BitDepth: 16}, nil
}

type fakeRecognizer struct {
	gotWAV  []byte
	gotLang string
	rec     *Recognition
	err     error
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(_ context.Context, wav []byte, lang string) (*Recognition, error) {
	f.gotWAV = wav
	f.gotLang = lang
	return f.rec, f.err
}

type memArchive struct {
	saved map[string][]byte
	err   error
}

func (m *memArchive) Save(_ context.Context, key string, data []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.saved[key] = data
	return nil
}

func (m *memArchive) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memArchive) Exists(_ context.Context, key string) bool {
	_, ok := m.saved[key]
	return ok
}

func (m *memArchive) Type() string { return "memory" }

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func newTestService(tc *fakeTranscoder, rec *fakeRecognizer) *Service {
	return NewService(ServiceOptions{
		Recognizer: rec,
		Transcoder: tc,
		Log:        zerolog.Nop(),
	})
}

func TestServiceTranscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("pipeline_order", func(t *testing.T) {
		tc := &fakeTranscoder{}
		rec := &fakeRecognizer{rec: &Recognition{Transcript: "hello world", Raw: json.RawMessage(`{"results":[]}`)}}
		res, err := newTestService(tc, rec).Transcribe(ctx, Request{AudioContent: b64("m4a-bytes")})
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if string(tc.gotInput) != "m4a-bytes" {
			t.Errorf("transcoder input = %q", tc.gotInput)
		}
		if string(rec.gotWAV) != "WAV:m4a-bytes" {
			t.Errorf("recognizer got %q, want transcoded audio", rec.gotWAV)
		}
		if rec.gotLang != "en-US" {
			t.Errorf("language = %q, want en-US default", rec.gotLang)
		}
		if res.Transcript != "hello world" || string(res.Raw) != `{"results":[]}` {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("caller_language", func(t *testing.T) {
		rec := &fakeRecognizer{rec: &Recognition{}}
		_, err := newTestService(&fakeTranscoder{}, rec).Transcribe(ctx, Request{AudioContent: b64("x"), LanguageCode: "ms-MY"})
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if rec.gotLang != "ms-MY" {
			t.Errorf("language = %q, want ms-MY", rec.gotLang)
		}
	})

	t.Run("configured_default_language", func(t *testing.T) {
		rec := &fakeRecognizer{rec: &Recognition{}}
		svc := NewService(ServiceOptions{Recognizer: rec, Transcoder: &fakeTranscoder{}, DefaultLanguage: "id-ID", Log: zerolog.Nop()})
		if _, err := svc.Transcribe(ctx, Request{AudioContent: b64("x")}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if rec.gotLang != "id-ID" {
			t.Errorf("language = %q, want id-ID", rec.gotLang)
		}
	})

	t.Run("bad_base64_is_decode_error", func(t *testing.T) {
		tc := &fakeTranscoder{}
		_, err := newTestService(tc, &fakeRecognizer{}).Transcribe(ctx, Request{AudioContent: "%%%not-base64%%%"})
		if KindOf(err) != KindDecode {
			t.Errorf("kind = %q, want decode", KindOf(err))
		}
		if tc.gotInput != nil {
			t.Error("transcoder should not run after a decode failure")
		}
	})

	t.Run("transcode_failure", func(t *testing.T) {
		rec := &fakeRecognizer{}
		_, err := newTestService(&fakeTranscoder{err: errors.New("ffmpeg: invalid data")}, rec).Transcribe(ctx, Request{AudioContent: b64("junk")})
		if KindOf(err) != KindTranscode {
			t.Errorf("kind = %q, want transcode", KindOf(err))
		}
		if rec.gotWAV != nil {
			t.Error("recognizer should not run after a transcode failure")
		}
	})

	t.Run("recognizer_error_kind_kept", func(t *testing.T) {
		remote := &Error{Kind: KindRemote, Err: errors.New("quota"), Remote: json.RawMessage(`{"code":429}`)}
		_, err := newTestService(&fakeTranscoder{}, &fakeRecognizer{err: remote}).Transcribe(ctx, Request{AudioContent: b64("x")})
		if d, ok := RemoteDetail(err); !ok || string(d) != `{"code":429}` {
			t.Errorf("RemoteDetail = %s, %v", d, ok)
		}
	})

	t.Run("untyped_recognizer_error_is_network", func(t *testing.T) {
		_, err := newTestService(&fakeTranscoder{}, &fakeRecognizer{err: errors.New("dial tcp: refused")}).Transcribe(ctx, Request{AudioContent: b64("x")})
		if KindOf(err) != KindNetwork {
			t.Errorf("kind = %q, want network", KindOf(err))
		}
	})

	t.Run("archives_and_publishes", func(t *testing.T) {
		arch := &memArchive{saved: map[string][]byte{}}
		var events []string
		svc := NewService(ServiceOptions{
			Recognizer:   &fakeRecognizer{rec: &Recognition{Transcript: "hi"}},
			Transcoder:   &fakeTranscoder{},
			Archive:      arch,
			PublishEvent: func(eventType string, payload map[string]any) { events = append(events, eventType) },
			Log:          zerolog.Nop(),
		})
		if _, err := svc.Transcribe(ctx, Request{AudioContent: b64("clip"), RequestID: "req/1"}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		want := ArchiveKey(time.Now(), "req/1")
		if string(arch.saved[want]) != "WAV:clip" {
			t.Errorf("archive missing %s: %v", want, arch.saved)
		}
		if len(events) != 1 || events[0] != "speech.transcribed" {
			t.Errorf("events = %v", events)
		}
	})

	t.Run("archive_failure_does_not_fail_request", func(t *testing.T) {
		svc := NewService(ServiceOptions{
			Recognizer: &fakeRecognizer{rec: &Recognition{Transcript: "ok"}},
			Transcoder: &fakeTranscoder{},
			Archive:    &memArchive{err: errors.New("bucket gone")},
			Log:        zerolog.Nop(),
		})
		res, err := svc.Transcribe(ctx, Request{AudioContent: b64("clip")})
		if err != nil || res.Transcript != "ok" {
			t.Errorf("res=%+v err=%v", res, err)
		}
	})
}

func TestDecodeAudioContent(t *testing.T) {
	raw := []byte{0xff, 0xfb, 0x90, 0x64, 0x00, 0x0f}
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"std", base64.StdEncoding.EncodeToString(raw), false},
		{"std_unpadded", base64.RawStdEncoding.EncodeToString(raw[:4]), false},
		{"url_safe", base64.URLEncoding.EncodeToString(raw), false},
		{"with_newlines", "//uQ\nZAAP", false},
		{"data_uri", "data:audio/m4a;base64," + base64.StdEncoding.EncodeToString(raw), false},
		{"empty", "", true},
		{"whitespace_only", " \n ", true},
		{"garbage", "this is not base64!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := DecodeAudioContent(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(b) == 0 {
				t.Error("decoded to nothing")
			}
		})
	}
}

func TestArchiveKey(t *testing.T) {
	ts := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	got := ArchiveKey(ts, "ab/../cd")
	if got != "stt/2026-03-09/ab____cd.wav" {
		t.Errorf("ArchiveKey = %q", got)
	}
	if strings.Contains(got, "..") {
		t.Error("key must not contain path traversal")
	}
}
