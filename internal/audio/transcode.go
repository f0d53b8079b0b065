package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyInput is returned when there are no audio bytes to transcode.
var ErrEmptyInput = errors.New("empty audio input")

// Transcoder converts audio of any container/codec ffmpeg understands into
// 16-bit little-endian PCM in a WAV container. Channel count and sample rate
// are kept as found in the input.
type Transcoder struct {
	ffmpegPath string
	timeout    time.Duration
	slots      chan struct{} // nil means unbounded
}

// NewTranscoder creates a transcoder running the ffmpeg binary at ffmpegPath.
// timeout bounds a single conversion; zero means no limit beyond ctx.
func NewTranscoder(ffmpegPath string, timeout time.Duration) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath, timeout: timeout}
}

// SetMaxConcurrent caps how many ffmpeg processes run at once. Callers over
// the cap wait for a slot or for their context to end. n <= 0 removes the cap.
func (t *Transcoder) SetMaxConcurrent(n int) {
	if n <= 0 {
		t.slots = nil
		return
	}
	t.slots = make(chan struct{}, n)
}

// CheckFFmpeg verifies that the binary at path runs. Call once at startup.
func CheckFFmpeg(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -version: %w", path, err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

// ToLinear16WAV transcodes data and returns the WAV bytes together with the
// verified output format.
//
// Input and output go through temp files rather than pipes: containers such
// as MP4/M4A need a seekable input, and a WAV written to a pipe carries no
// chunk sizes.
func (t *Transcoder) ToLinear16WAV(ctx context.Context, data []byte) ([]byte, Format, error) {
	if len(data) == 0 {
		return nil, Format{}, ErrEmptyInput
	}
	if t.slots != nil {
		select {
		case t.slots <- struct{}{}:
			defer func() { <-t.slots }()
		case <-ctx.Done():
			return nil, Format{}, fmt.Errorf("waiting for transcode slot: %w", ctx.Err())
		}
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	in, err := os.CreateTemp("", "spacecareer-in-*")
	if err != nil {
		return nil, Format{}, fmt.Errorf("create temp input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, Format{}, fmt.Errorf("write temp input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, Format{}, fmt.Errorf("close temp input: %w", err)
	}

	out, err := os.CreateTemp("", "spacecareer-out-*.wav")
	if err != nil {
		return nil, Format{}, fmt.Errorf("create temp output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y",
		"-i", in.Name(),
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, Format{}, fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		return nil, Format{}, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, Format{}, fmt.Errorf("read transcoded audio: %w", err)
	}
	f, err := VerifyLinear16(wav)
	if err != nil {
		return nil, Format{}, err
	}
	return wav, f, nil
}
