package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// WAV format tags accepted as linear PCM.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// ErrNotLinear16 is returned when audio is not 16-bit PCM in a WAV container.
var ErrNotLinear16 = errors.New("audio is not 16-bit linear PCM WAV")

// Format describes a verified WAV stream.
type Format struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Duration   time.Duration
}

// VerifyLinear16 checks that b is a WAV file holding 16-bit linear PCM, the
// only encoding the recognizer accepts as LINEAR16.
func VerifyLinear16(b []byte) (Format, error) {
	d := wav.NewDecoder(bytes.NewReader(b))
	if !d.IsValidFile() {
		return Format{}, fmt.Errorf("%w: invalid WAV header", ErrNotLinear16)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return Format{}, fmt.Errorf("%w: format tag %#x", ErrNotLinear16, d.WavAudioFormat)
	}
	if d.BitDepth != 16 {
		return Format{}, fmt.Errorf("%w: bit depth %d", ErrNotLinear16, d.BitDepth)
	}

	f := Format{
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
		BitDepth:   int(d.BitDepth),
	}
	f.Duration = pcmDuration(d)
	return f, nil
}

// pcmDuration measures the data chunk only. Decoder.Duration derives the
// length from the RIFF size, which also counts the header chunks.
func pcmDuration(d *wav.Decoder) time.Duration {
	if err := d.FwdToPCM(); err != nil {
		return 0
	}
	bytesPerSec := int64(d.SampleRate) * int64(d.NumChans) * int64(d.BitDepth/8)
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(d.PCMLen() * int64(time.Second) / bytesPerSec)
}
