package usecase

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/streaming"
)

var errNonPublicAddress = errors.New("address is not publicly routable")

// TranscriptionService serves both batch and streaming speech recognition
type TranscriptionService struct {
	speechToText  repositories.SpeechToText
	transcripts   repositories.TranscriptRepository
	streamAudio   repositories.AudioConfig
	httpClient    *http.Client
	maxAudioBytes int64
	allowPrivate  bool
	logger        *zap.Logger
}

var _ streaming.Transcriber = (*TranscriptionService)(nil)

// TranscriptionOption customises a TranscriptionService
type TranscriptionOption func(*TranscriptionService)

// WithPrivateNetworks lets FetchAudio reach loopback and private addresses
func WithPrivateNetworks() TranscriptionOption {
	return func(s *TranscriptionService) {
		s.allowPrivate = true
	}
}

// NewTranscriptionService creates a new transcription service. streamAudio
// describes the raw audio clients send over the streaming channel.
func NewTranscriptionService(
	stt repositories.SpeechToText,
	transcripts repositories.TranscriptRepository,
	streamAudio repositories.AudioConfig,
	maxAudioBytes int64,
	logger *zap.Logger,
	opts ...TranscriptionOption,
) *TranscriptionService {
	s := &TranscriptionService{
		speechToText:  stt,
		transcripts:   transcripts,
		streamAudio:   streamAudio,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !s.allowPrivate {
		dialer.Control = rejectNonPublic
	}
	s.httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return s
}

// rejectNonPublic runs after name resolution, so every redirect hop and
// every resolved address is checked.
func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return fmt.Errorf("%w: %s", errNonPublicAddress, addr)
	}
	return nil
}

// Transcribe implements streaming.Transcriber
func (s *TranscriptionService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return s.speechToText.TranscribeAudio(ctx, audio, s.streamAudio)
}

// BatchResult is the outcome of a one-shot transcription
type BatchResult struct {
	Text             string `json:"text"`
	Language         string `json:"language"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// TranscribeFile transcribes a complete audio file. The container is
// inferred from the filename extension.
func (s *TranscriptionService) TranscribeFile(ctx context.Context, data []byte, filename, language string) (*BatchResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: audio file is empty", ErrInvalidInput)
	}
	if s.maxAudioBytes > 0 && int64(len(data)) > s.maxAudioBytes {
		return nil, ErrAudioTooLarge
	}

	config, err := s.audioConfigFor(filename, data)
	if err != nil {
		return nil, err
	}
	if language != "" {
		config.Language = language
	}

	s.logger.Info("Transcribing audio file",
		zap.String("filename", filename),
		zap.String("encoding", config.Encoding),
		zap.Int("audioSize", len(data)))

	start := time.Now()
	text, err := s.speechToText.TranscribeAudio(ctx, data, config)
	if errors.Is(err, repositories.ErrUnsupportedEncoding) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAudio, err)
	}
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return &BatchResult{
		Text:             text,
		Language:         config.Language,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// FetchAudio downloads audio from an http(s) URL, bounded by the size limit
func (s *TranscriptionService) FetchAudio(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: audio_url must be an absolute http(s) URL", ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if errors.Is(err, errNonPublicAddress) {
		return nil, "", fmt.Errorf("%w: audio_url must point to a public host", ErrInvalidInput)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download audio: status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if s.maxAudioBytes > 0 {
		reader = io.LimitReader(resp.Body, s.maxAudioBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio: %w", err)
	}
	if s.maxAudioBytes > 0 && int64(len(data)) > s.maxAudioBytes {
		return nil, "", ErrAudioTooLarge
	}

	return data, path.Base(u.Path), nil
}

func (s *TranscriptionService) audioConfigFor(filename string, data []byte) (repositories.AudioConfig, error) {
	config := repositories.AudioConfig{Language: s.streamAudio.Language}

	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		config.Encoding = "WAV"
		config.SampleRate = wavSampleRate(data)
	case ".flac":
		config.Encoding = "FLAC"
	case ".mp3":
		config.Encoding = "MP3"
	case ".ogg", ".opus":
		config.Encoding = "OGG_OPUS"
	case ".webm":
		config.Encoding = "WEBM_OPUS"
	case ".raw", ".pcm":
		config.Encoding = s.streamAudio.Encoding
		config.SampleRate = s.streamAudio.SampleRate
	default:
		return config, fmt.Errorf("%w: %q", ErrUnsupportedAudio, path.Ext(filename))
	}
	return config, nil
}

// wavSampleRate reads the sample rate from a canonical RIFF header, or 0
func wavSampleRate(data []byte) int {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data[24:28]))
}

// SaveTranscript persists the outcome of a streaming session. Sessions that
// were aborted or never recorded anything are skipped.
func (s *TranscriptionService) SaveTranscript(ctx context.Context, userID string, summary streaming.Summary) error {
	var status entities.TranscriptStatus
	switch summary.Reason {
	case streaming.ReasonCompleted:
		status = entities.TranscriptStatusCompleted
	case streaming.ReasonDegraded:
		status = entities.TranscriptStatusDegraded
	case streaming.ReasonExpired:
		status = entities.TranscriptStatusExpired
	case streaming.ReasonOverflow:
		status = entities.TranscriptStatusOverflow
	default:
		return nil
	}
	if summary.StartedAt.IsZero() {
		return nil
	}

	transcript := entities.NewTranscript(userID, summary.SessionID, summary.Segments, status)
	transcript.Error = summary.Error
	transcript.ChunkCount = summary.ChunkCount
	transcript.AudioBytes = summary.TotalBytes
	transcript.StartedAt = summary.StartedAt
	transcript.EndedAt = summary.EndedAt

	if err := s.transcripts.Create(ctx, transcript); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	s.logger.Info("Transcript saved",
		zap.String("userID", userID),
		zap.String("sessionID", summary.SessionID),
		zap.String("status", string(status)))
	return nil
}

// ListTranscripts returns the user's newest transcripts first
func (s *TranscriptionService) ListTranscripts(ctx context.Context, userID string, limit int) ([]*entities.Transcript, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	transcripts, err := s.transcripts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	return transcripts, nil
}

// IsClientError reports whether err was caused by the request rather than a provider
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnsupportedAudio) || errors.Is(err, ErrAudioTooLarge)
}
