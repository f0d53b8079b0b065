package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// GRPCClient calls Cloud Speech-to-Text v1 over gRPC.
// Implements the Recognizer interface.
type GRPCClient struct {
	client  *speech.Client
	timeout time.Duration
}

// NewGRPCClient dials the speech service with an API key. Extra client
// options (endpoint overrides, test transports) are appended.
func NewGRPCClient(ctx context.Context, apiKey string, timeout time.Duration, opts ...option.ClientOption) (*GRPCClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech grpc client: %w", err)
	}
	return &GRPCClient{client: c, timeout: timeout}, nil
}

// Name returns the recognizer name.
func (gc *GRPCClient) Name() string { return "google-grpc" }

// Close releases the underlying connection.
func (gc *GRPCClient) Close() error { return gc.client.Close() }

// Recognize sends the WAV as LINEAR16 with automatic punctuation. The raw
// response is the protojson rendering, which matches the REST wire shape.
func (gc *GRPCClient) Recognize(ctx context.Context, wav []byte, languageCode string) (*Recognition, error) {
	if gc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gc.timeout)
		defer cancel()
	}
	resp, err := gc.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			LanguageCode:               languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wav},
		},
	})
	if err != nil {
		return nil, grpcError(err)
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return nil, errorOf(KindNetwork, fmt.Errorf("render response: %w", err))
	}

	rec := &Recognition{Raw: json.RawMessage(raw)}
	if results := resp.GetResults(); len(results) > 0 {
		if alts := results[0].GetAlternatives(); len(alts) > 0 {
			rec.Transcript = alts[0].GetTranscript()
		}
	}
	return rec, nil
}

// grpcError maps a gRPC failure onto the pipeline's error kinds. Transport
// level codes are network errors; everything else is the service rejecting
// the request and carries a REST-style error object.
func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errorOf(KindNetwork, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return errorOf(KindNetwork, err)
	}

	remote, _ := json.Marshal(map[string]any{
		"code":    httpStatusFromCode(st.Code()),
		"message": st.Message(),
		"status":  screamingSnake(st.Code().String()),
	})
	return &Error{Kind: KindRemote, Err: err, Remote: remote}
}

// httpStatusFromCode follows the mapping Google APIs use for REST errors.
func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.AlreadyExists, codes.Aborted:
		return 409
	case codes.ResourceExhausted:
		return 429
	case codes.Unimplemented:
		return 501
	case codes.Unavailable:
		return 503
	case codes.DeadlineExceeded:
		return 504
	}
	return 500
}

// screamingSnake turns "InvalidArgument" into "INVALID_ARGUMENT".
func screamingSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(rune(s[i-1])) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
