package streaming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle position of a Session
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateFinalizing:
		return "FINALIZING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CloseReason records why a session reached CLOSED
type CloseReason string

const (
	ReasonNone         CloseReason = ""
	ReasonCompleted    CloseReason = "completed"
	ReasonDegraded     CloseReason = "degraded"
	ReasonOverflow     CloseReason = "overflow"
	ReasonExpired      CloseReason = "expired"
	ReasonDisconnected CloseReason = "disconnected"
)

// PassKind tells partial passes apart from the final one
type PassKind string

const (
	PassPartial PassKind = "partial"
	PassFinal   PassKind = "final"
)

// Transcriber turns accumulated audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// TranscriberFunc adapts a plain function to Transcriber
type TranscriberFunc func(ctx context.Context, audio []byte) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}

// Observer receives session events for instrumentation
type Observer interface {
	SessionOpened()
	SessionClosed(reason CloseReason)
	ChunkReceived(size int)
	TranscriptionPass(kind PassKind, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                                   {}
func (nopObserver) SessionClosed(CloseReason)                        {}
func (nopObserver) ChunkReceived(int)                                {}
func (nopObserver) TranscriptionPass(PassKind, time.Duration, error) {}

// Summary is a snapshot of a session used for persistence
type Summary struct {
	SessionID    string
	ConnectionID string
	Reason       CloseReason
	Segments     []string
	FullText     string
	ChunkCount   int
	TotalBytes   int
	StartedAt    time.Time
	EndedAt      time.Time
	Error        string
}

// Session is the per-connection streaming transcription state machine.
// It is not safe for concurrent use: only the owning connection's worker
// may call its methods. LastActivity is the exception.
type Session struct {
	ID           string
	ConnectionID string
	CreatedAt    time.Time

	state        State
	buffer       []byte
	segments     []string
	chunkCount   int
	totalBytes   int
	startedAt    time.Time
	endedAt      time.Time
	closeReason  CloseReason
	lastError    string
	lastActivity atomic.Int64

	cfg         Config
	transcriber Transcriber
	observer    Observer
	logger      *zap.Logger
	now         func() time.Time
}

func newSession(connID string, cfg Config, tr Transcriber, obs Observer, logger *zap.Logger, now func() time.Time) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		ConnectionID: connID,
		state:        StateIdle,
		cfg:          cfg,
		transcriber:  tr,
		observer:     obs,
		now:          now,
	}
	s.CreatedAt = now()
	s.lastActivity.Store(s.CreatedAt.UnixNano())
	s.logger = logger.With(zap.String("sessionID", s.ID), zap.String("connectionID", connID))
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State { return s.state }

// CloseReason returns why the session closed, or ReasonNone while open
func (s *Session) CloseReason() CloseReason { return s.closeReason }

// BufferedBytes returns the audio awaiting transcription
func (s *Session) BufferedBytes() int { return len(s.buffer) }

// Segments returns a copy of the transcript segments so far
func (s *Session) Segments() []string {
	out := make([]string, len(s.segments))
	copy(out, s.segments)
	return out
}

// FullText joins the segments with a single space
func (s *Session) FullText() string {
	return strings.Join(s.segments, " ")
}

// LastActivity is safe to call from any goroutine
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(s.now().UnixNano())
}

// Connected builds the greeting sent once the connection is accepted
func (s *Session) Connected() *ConnectedMessage {
	return &ConnectedMessage{
		BaseMessage:           newBase(TypeConnected, s.ID, s.now()),
		ConnectionID:          s.ConnectionID,
		PartialThresholdBytes: s.cfg.PartialThresholdBytes,
		MaxBufferBytes:        s.cfg.MaxBufferBytes,
	}
}

// Handle applies one inbound frame and returns the messages to push, in order
func (s *Session) Handle(ctx context.Context, in Inbound) []Outbound {
	s.touch()

	if s.state == StateClosed || s.state == StateFinalizing {
		return s.fail(CodeProtocolViolation, fmt.Sprintf("session is %s", s.state))
	}

	switch in.Kind {
	case InboundBinary:
		return s.handleChunk(ctx, in.Data)
	case InboundText:
		cmd, err := ParseControl(in.Data)
		if err != nil {
			return s.fail(CodeMalformedMessage, err.Error())
		}
		switch cmd {
		case CommandStartRecording:
			return s.handleStart()
		case CommandStopRecording:
			return s.handleStop(ctx)
		default:
			return s.fail(CodeMalformedMessage, fmt.Sprintf("unknown command %q", cmd))
		}
	default:
		return s.fail(CodeMalformedMessage, "unsupported frame kind")
	}
}

func (s *Session) handleStart() []Outbound {
	if s.state != StateIdle {
		return s.fail(CodeProtocolViolation, "recording already in progress")
	}

	s.buffer = nil
	s.segments = nil
	s.chunkCount = 0
	s.totalBytes = 0
	s.startedAt = s.now()
	s.state = StateRecording

	s.logger.Info("Recording started")
	return []Outbound{&RecordingStartedMessage{BaseMessage: newBase(TypeRecordingStarted, s.ID, s.now())}}
}

func (s *Session) handleChunk(ctx context.Context, chunk []byte) []Outbound {
	if s.state != StateRecording {
		return s.fail(CodeProtocolViolation, "audio received before start_recording")
	}
	if len(chunk) == 0 {
		return s.fail(CodeMalformedMessage, "empty audio chunk")
	}

	s.buffer = append(s.buffer, chunk...)
	s.chunkCount++
	s.totalBytes += len(chunk)
	s.observer.ChunkReceived(len(chunk))

	out := []Outbound{&ChunkReceivedMessage{
		BaseMessage:   newBase(TypeChunkReceived, s.ID, s.now()),
		ChunkIndex:    s.chunkCount,
		ChunkSize:     len(chunk),
		BufferedBytes: len(s.buffer),
	}}

	if len(s.buffer) < s.cfg.PartialThresholdBytes {
		return out
	}
	return append(out, s.partialPass(ctx)...)
}

func (s *Session) partialPass(ctx context.Context) []Outbound {
	text, err := s.transcribe(ctx, PassPartial)
	if err != nil {
		s.logger.Warn("Partial transcription failed, keeping buffer",
			zap.Int("bufferedBytes", len(s.buffer)),
			zap.Error(err))

		out := s.fail(CodeTranscriptionFailed, err.Error())
		if len(s.buffer) > s.cfg.MaxBufferBytes {
			s.logger.Error("Buffer exceeded limit without a successful transcription",
				zap.Int("bufferedBytes", len(s.buffer)),
				zap.Int("maxBufferBytes", s.cfg.MaxBufferBytes))
			out = append(out, s.fail(CodeBufferOverflow,
				fmt.Sprintf("buffered audio exceeds %d bytes", s.cfg.MaxBufferBytes))...)
			s.close(ReasonOverflow)
		}
		return out
	}

	s.appendSegment(text)
	s.buffer = nil

	return []Outbound{&PartialTranscriptionMessage{
		BaseMessage:  newBase(TypePartialTranscription, s.ID, s.now()),
		Text:         text,
		ChunkIndex:   s.chunkCount,
		SegmentIndex: len(s.segments),
	}}
}

func (s *Session) handleStop(ctx context.Context) []Outbound {
	if s.state != StateRecording {
		return s.fail(CodeProtocolViolation, "stop_recording received while not recording")
	}

	s.state = StateFinalizing
	complete := &SessionCompleteMessage{}

	reason := ReasonCompleted
	if err := s.finalPass(ctx); err != nil {
		reason = ReasonDegraded
		complete.ErrorCode = CodeTranscriptionFailed
		complete.Error = err.Error()
	}
	s.close(reason)

	complete.BaseMessage = newBase(TypeSessionComplete, s.ID, s.now())
	complete.FullText = s.FullText()
	complete.Segments = len(s.segments)
	complete.ChunkCount = s.chunkCount

	s.logger.Info("Session complete",
		zap.Int("segments", len(s.segments)),
		zap.Int("chunks", s.chunkCount),
		zap.String("reason", string(reason)))
	return []Outbound{complete}
}

// finalPass transcribes whatever remains in the buffer exactly once
func (s *Session) finalPass(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}

	text, err := s.transcribe(ctx, PassFinal)
	if err != nil {
		s.lastError = err.Error()
		s.logger.Warn("Final transcription failed", zap.Error(err))
		return err
	}

	s.appendSegment(text)
	s.buffer = nil
	return nil
}

// Expire closes an idle session. Any remainder is transcribed so it can be
// persisted, but nothing is emitted to the client.
func (s *Session) Expire(ctx context.Context) {
	if s.state == StateClosed {
		return
	}
	if s.state == StateRecording {
		s.state = StateFinalizing
		_ = s.finalPass(ctx)
	}
	s.close(ReasonExpired)
	s.logger.Info("Session expired after inactivity")
}

// Abort discards buffered audio and closes without emitting anything
func (s *Session) Abort() {
	if s.state == StateClosed {
		return
	}
	s.buffer = nil
	s.close(ReasonDisconnected)
	s.logger.Info("Session aborted")
}

// Summary snapshots the session for persistence
func (s *Session) Summary() Summary {
	return Summary{
		SessionID:    s.ID,
		ConnectionID: s.ConnectionID,
		Reason:       s.closeReason,
		Segments:     s.Segments(),
		FullText:     s.FullText(),
		ChunkCount:   s.chunkCount,
		TotalBytes:   s.totalBytes,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Error:        s.lastError,
	}
}

// Recorded reports whether the session ever started a recording
func (s *Session) Recorded() bool {
	return !s.startedAt.IsZero()
}

func (s *Session) close(reason CloseReason) {
	s.state = StateClosed
	s.closeReason = reason
	s.endedAt = s.now()
}

// release drops the buffer; called by the Manager on teardown
func (s *Session) release() {
	s.buffer = nil
}

func (s *Session) appendSegment(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.segments = append(s.segments, text)
}

func (s *Session) transcribe(ctx context.Context, kind PassKind) (string, error) {
	if s.cfg.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
		defer cancel()
	}

	// Capped slice: later appends reallocate instead of writing into the
	// array the transcriber may still hold.
	audio := s.buffer[:len(s.buffer):len(s.buffer)]

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, audio)
	elapsed := time.Since(start)
	s.observer.TranscriptionPass(kind, elapsed, err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("transcription timed out after %s", elapsed.Round(time.Millisecond))
		}
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	s.logger.Debug("Transcription pass finished",
		zap.String("kind", string(kind)),
		zap.Int("audioBytes", len(audio)),
		zap.Duration("elapsed", elapsed))
	return text, nil
}

func (s *Session) fail(code ErrorCode, message string) []Outbound {
	return []Outbound{&ErrorMessage{
		BaseMessage: newBase(TypeError, s.ID, s.now()),
		Code:        code,
		Message:     message,
	}}
}
