package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a transcription failure by the stage that produced it.
type Kind string

const (
	KindDecode    Kind = "decode"    // payload is not valid base64
	KindTranscode Kind = "transcode" // audio could not be converted to LINEAR16 WAV
	KindNetwork   Kind = "network"   // recognizer unreachable, timed out, or sent an unreadable body
	KindRemote    Kind = "remote"    // recognizer answered with an error
)

// Error is a failure in the transcription pipeline. Remote holds the
// recognizer's error object verbatim when Kind is KindRemote and the
// recognizer supplied one.
type Error struct {
	Kind   Kind
	Err    error
	Remote json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errorOf(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RemoteDetail returns the recognizer's error object carried by err, if any.
func RemoteDetail(err error) (json.RawMessage, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRemote && len(e.Remote) > 0 {
		return e.Remote, true
	}
	return nil, false
}
