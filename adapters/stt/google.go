package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

const (
	// Synchronous Recognize accepts at most one minute of audio
	maxSyncSeconds = 55
	// StreamingRecognize rejects audio_content frames above ~25KB
	streamFrameBytes = 25 * 1024
)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

// NewGoogleSpeechToText creates a client using Application Default Credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// TranscribeAudio converts audio data to text. Short clips go through the
// synchronous API, longer ones are streamed.
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}

	recognitionConfig, err := recognitionConfig(config)
	if err != nil {
		return "", err
	}

	if exceedsSyncLimit(len(audioData), config) {
		g.logger.Debug("Using streaming recognition for long audio", zap.Int("audioSize", len(audioData)))
		return g.transcribeStreaming(ctx, audioData, recognitionConfig)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize failed: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *GoogleSpeechToText) transcribeStreaming(ctx context.Context, audioData []byte, cfg *speechpb.RecognitionConfig) (string, error) {
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         cfg,
				InterimResults: false,
			},
		},
	}); err != nil {
		return "", fmt.Errorf("failed to send streaming config: %w", err)
	}

	for start := 0; start < len(audioData); start += streamFrameBytes {
		end := start + streamFrameBytes
		if end > len(audioData) {
			end = len(audioData)
		}
		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: audioData[start:end],
			},
		}); err != nil {
			return "", fmt.Errorf("failed to send audio data: %w", err)
		}
	}

	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var parts []string
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return strings.Join(parts, " "), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive response: %w", err)
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
			}
		}
	}
}

func recognitionConfig(config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	language := config.Language
	if language == "" {
		language = "en-US"
	}

	return &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}, nil
}

// exceedsSyncLimit estimates duration for uncompressed encodings only
func exceedsSyncLimit(size int, config repositories.AudioConfig) bool {
	bytesPerSample := 0
	switch strings.ToUpper(config.Encoding) {
	case "WAV", "LINEAR16":
		bytesPerSample = 2
	case "MULAW":
		bytesPerSample = 1
	}
	if bytesPerSample == 0 || config.SampleRate <= 0 {
		return false
	}
	return size > config.SampleRate*bytesPerSample*maxSyncSeconds
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("%w: %s", repositories.ErrUnsupportedEncoding, encoding)
	}
}
