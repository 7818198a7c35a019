package streaming

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// fakeTranscriber records every pass and replays scripted results
type fakeTranscriber struct {
	mu      sync.Mutex
	calls   [][]byte
	results []fakeResult
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]byte(nil), audio...))
	if len(f.results) == 0 {
		return "", errors.New("no scripted result")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.text, r.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestSession(t *testing.T, cfg Config, tr Transcriber) *Session {
	t.Helper()
	m := NewManager(cfg, tr, zaptest.NewLogger(t))
	s, err := m.Open("conn-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func testConfig(threshold, max int) Config {
	return Config{PartialThresholdBytes: threshold, MaxBufferBytes: max}
}

func messageTypes(out []Outbound) []MessageType {
	types := make([]MessageType, len(out))
	for i, m := range out {
		types[i] = m.MessageType()
	}
	return types
}

func expectTypes(t *testing.T, out []Outbound, want ...MessageType) {
	t.Helper()
	if got := messageTypes(out); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected messages %v, got %v", want, got)
	}
}

func expectErrorCode(t *testing.T, out Outbound, code ErrorCode) {
	t.Helper()
	msg, ok := out.(*ErrorMessage)
	if !ok {
		t.Fatalf("Expected *ErrorMessage, got %T", out)
	}
	if msg.Code != code {
		t.Errorf("Expected error code %s, got %s (%s)", code, msg.Code, msg.Message)
	}
}

func TestSessionThreeChunkScenario(t *testing.T) {
	tr := &fakeTranscriber{results: []fakeResult{{text: "hello"}, {text: "world"}}}
	s := newTestSession(t, testConfig(4096, 65536), tr)
	ctx := context.Background()
	chunk := bytes.Repeat([]byte{1}, 2048)

	expectTypes(t, s.Handle(ctx, TextFrame("start_recording")), TypeRecordingStarted)

	out := s.Handle(ctx, AudioFrame(chunk))
	expectTypes(t, out, TypeChunkReceived)
	ack := out[0].(*ChunkReceivedMessage)
	if ack.ChunkIndex != 1 || ack.ChunkSize != 2048 || ack.BufferedBytes != 2048 {
		t.Errorf("Unexpected first ack: %+v", ack)
	}

	out = s.Handle(ctx, AudioFrame(chunk))
	expectTypes(t, out, TypeChunkReceived, TypePartialTranscription)
	partial := out[1].(*PartialTranscriptionMessage)
	if partial.Text != "hello" || partial.ChunkIndex != 2 {
		t.Errorf("Unexpected partial: %+v", partial)
	}
	if s.BufferedBytes() != 0 {
		t.Errorf("Expected buffer cleared after partial pass, got %d bytes", s.BufferedBytes())
	}

	out = s.Handle(ctx, AudioFrame(chunk))
	expectTypes(t, out, TypeChunkReceived)
	if got := out[0].(*ChunkReceivedMessage).BufferedBytes; got != 2048 {
		t.Errorf("Expected 2048 buffered bytes, got %d", got)
	}

	out = s.Handle(ctx, TextFrame("stop_recording"))
	expectTypes(t, out, TypeSessionComplete)
	complete := out[0].(*SessionCompleteMessage)
	if complete.FullText != "hello world" {
		t.Errorf("Expected full text 'hello world', got %q", complete.FullText)
	}
	if complete.ChunkCount != 3 || complete.Error != "" {
		t.Errorf("Unexpected completion: %+v", complete)
	}

	if len(tr.calls) != 2 || len(tr.calls[0]) != 4096 || len(tr.calls[1]) != 2048 {
		t.Errorf("Unexpected transcription calls: %d", len(tr.calls))
	}
	if s.State() != StateClosed || s.CloseReason() != ReasonCompleted {
		t.Errorf("Expected CLOSED/completed, got %s/%s", s.State(), s.CloseReason())
	}
}

func TestSessionPartialThresholdBoundary(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		wantPartial bool
	}{
		{"one below threshold", 99, false},
		{"exactly threshold", 100, true},
		{"above threshold", 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranscriber{results: []fakeResult{{text: "x"}}}
			s := newTestSession(t, testConfig(100, 1000), tr)
			ctx := context.Background()

			s.Handle(ctx, TextFrame("start_recording"))
			out := s.Handle(ctx, AudioFrame(make([]byte, tt.size)))

			if tt.wantPartial {
				expectTypes(t, out, TypeChunkReceived, TypePartialTranscription)
			} else {
				expectTypes(t, out, TypeChunkReceived)
			}
			if got := tr.callCount() == 1; got != tt.wantPartial {
				t.Errorf("Expected transcriber invoked = %v, got %d calls", tt.wantPartial, tr.callCount())
			}
		})
	}
}

func TestSessionProtocolViolations(t *testing.T) {
	ctx := context.Background()

	t.Run("audio before start", func(t *testing.T) {
		tr := &fakeTranscriber{}
		s := newTestSession(t, testConfig(10, 100), tr)

		out := s.Handle(ctx, AudioFrame([]byte{1, 2, 3}))
		expectTypes(t, out, TypeError)
		expectErrorCode(t, out[0], CodeProtocolViolation)
		if s.State() != StateIdle || s.BufferedBytes() != 0 {
			t.Errorf("Expected untouched IDLE session, got %s with %d bytes", s.State(), s.BufferedBytes())
		}
	})

	t.Run("duplicate start", func(t *testing.T) {
		s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
		s.Handle(ctx, TextFrame("start_recording"))
		s.Handle(ctx, AudioFrame([]byte{1, 2, 3}))

		out := s.Handle(ctx, TextFrame("start_recording"))
		expectTypes(t, out, TypeError)
		expectErrorCode(t, out[0], CodeProtocolViolation)
		if s.State() != StateRecording || s.BufferedBytes() != 3 {
			t.Errorf("Duplicate start must not reset the session, got %s with %d bytes", s.State(), s.BufferedBytes())
		}
	})

	t.Run("stop while idle", func(t *testing.T) {
		s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
		out := s.Handle(ctx, TextFrame("stop_recording"))
		expectTypes(t, out, TypeError)
		expectErrorCode(t, out[0], CodeProtocolViolation)
		if s.State() != StateIdle {
			t.Errorf("Expected IDLE, got %s", s.State())
		}
	})

	t.Run("frames after close", func(t *testing.T) {
		s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
		s.Handle(ctx, TextFrame("start_recording"))
		s.Handle(ctx, TextFrame("stop_recording"))

		out := s.Handle(ctx, AudioFrame([]byte{1}))
		expectTypes(t, out, TypeError)
		expectErrorCode(t, out[0], CodeProtocolViolation)
	})
}

func TestSessionMalformedControl(t *testing.T) {
	frames := []string{"", "   ", "{not json", `{"foo":"bar"}`, "pause_recording", `{"type":"dance"}`}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
			out := s.Handle(context.Background(), TextFrame(frame))
			expectTypes(t, out, TypeError)
			expectErrorCode(t, out[0], CodeMalformedMessage)
			if s.State() != StateIdle {
				t.Errorf("Malformed frame changed state to %s", s.State())
			}
		})
	}
}

func TestSessionEmptyChunkIsMalformed(t *testing.T) {
	s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
	ctx := context.Background()
	s.Handle(ctx, TextFrame("start_recording"))

	out := s.Handle(ctx, AudioFrame(nil))
	expectTypes(t, out, TypeError)
	expectErrorCode(t, out[0], CodeMalformedMessage)
}

func TestSessionJSONControl(t *testing.T) {
	s := newTestSession(t, testConfig(10, 100), &fakeTranscriber{})
	out := s.Handle(context.Background(), TextFrame(`{"type": "start_recording"}`))
	expectTypes(t, out, TypeRecordingStarted)
}

func TestSessionPartialFailureKeepsBuffer(t *testing.T) {
	tr := &fakeTranscriber{results: []fakeResult{
		{err: errors.New("backend unavailable")},
		{text: "recovered"},
	}}
	s := newTestSession(t, testConfig(4, 100), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))

	out := s.Handle(ctx, AudioFrame([]byte{1, 2, 3, 4}))
	expectTypes(t, out, TypeChunkReceived, TypeError)
	expectErrorCode(t, out[1], CodeTranscriptionFailed)
	if s.State() != StateRecording || s.BufferedBytes() != 4 {
		t.Fatalf("Expected RECORDING with 4 bytes retained, got %s with %d", s.State(), s.BufferedBytes())
	}

	out = s.Handle(ctx, AudioFrame([]byte{5, 6}))
	expectTypes(t, out, TypeChunkReceived, TypePartialTranscription)

	// The retry covers the retained audio plus the new chunk, in order
	if !bytes.Equal(tr.calls[1], []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Expected retry over all buffered audio, got %v", tr.calls[1])
	}
}

func TestSessionFinalFailureIsDegraded(t *testing.T) {
	tr := &fakeTranscriber{results: []fakeResult{
		{text: "first part"},
		{err: errors.New("quota exceeded")},
	}}
	s := newTestSession(t, testConfig(4, 100), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	s.Handle(ctx, AudioFrame([]byte{1, 2, 3, 4}))
	s.Handle(ctx, AudioFrame([]byte{5, 6}))

	out := s.Handle(ctx, TextFrame("stop_recording"))
	expectTypes(t, out, TypeSessionComplete)

	complete := out[0].(*SessionCompleteMessage)
	if complete.FullText != "first part" {
		t.Errorf("Expected text accumulated so far, got %q", complete.FullText)
	}
	if complete.ErrorCode != CodeTranscriptionFailed || !strings.Contains(complete.Error, "quota exceeded") {
		t.Errorf("Expected degraded completion, got %+v", complete)
	}
	if s.State() != StateClosed || s.CloseReason() != ReasonDegraded {
		t.Errorf("Expected CLOSED/degraded, got %s/%s", s.State(), s.CloseReason())
	}
	if s.Summary().Error == "" {
		t.Error("Expected summary to carry the final error")
	}
}

func TestSessionBufferOverflow(t *testing.T) {
	failing := TranscriberFunc(func(context.Context, []byte) (string, error) {
		return "", errors.New("down")
	})
	s := newTestSession(t, testConfig(4, 8), failing)
	ctx := context.Background()
	chunk := []byte{1, 2, 3, 4}

	s.Handle(ctx, TextFrame("start_recording"))

	expectTypes(t, s.Handle(ctx, AudioFrame(chunk)), TypeChunkReceived, TypeError)
	expectTypes(t, s.Handle(ctx, AudioFrame(chunk)), TypeChunkReceived, TypeError)

	out := s.Handle(ctx, AudioFrame(chunk))
	expectTypes(t, out, TypeChunkReceived, TypeError, TypeError)
	expectErrorCode(t, out[1], CodeTranscriptionFailed)
	expectErrorCode(t, out[2], CodeBufferOverflow)

	if s.State() != StateClosed || s.CloseReason() != ReasonOverflow {
		t.Errorf("Expected CLOSED/overflow, got %s/%s", s.State(), s.CloseReason())
	}
}

func TestSessionEmptyStopSkipsFinalPass(t *testing.T) {
	tr := &fakeTranscriber{}
	s := newTestSession(t, testConfig(4, 100), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	out := s.Handle(ctx, TextFrame("stop_recording"))

	expectTypes(t, out, TypeSessionComplete)
	if got := out[0].(*SessionCompleteMessage).FullText; got != "" {
		t.Errorf("Expected empty transcript, got %q", got)
	}
	if tr.callCount() != 0 {
		t.Errorf("Expected no transcription call, got %d", tr.callCount())
	}
}

func TestSessionBlankSegmentsAreSkipped(t *testing.T) {
	tr := &fakeTranscriber{results: []fakeResult{{text: "  "}, {text: "spoken"}}}
	s := newTestSession(t, testConfig(2, 100), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	s.Handle(ctx, AudioFrame([]byte{0, 0}))
	s.Handle(ctx, AudioFrame([]byte{1, 1}))
	out := s.Handle(ctx, TextFrame("stop_recording"))

	if got := out[0].(*SessionCompleteMessage).FullText; got != "spoken" {
		t.Errorf("Expected 'spoken', got %q", got)
	}
}

func TestSessionGaplessCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var seen bytes.Buffer
	tr := TranscriberFunc(func(_ context.Context, audio []byte) (string, error) {
		// Fail one pass in five so retained buffers are exercised too
		if rng.Intn(5) == 0 {
			return "", errors.New("flaky")
		}
		seen.Write(audio)
		return "seg", nil
	})

	s := newTestSession(t, testConfig(500, 1<<20), tr)
	ctx := context.Background()
	s.Handle(ctx, TextFrame("start_recording"))

	var sent bytes.Buffer
	for i := 0; i < 200; i++ {
		chunk := make([]byte, 1+rng.Intn(300))
		rng.Read(chunk)
		sent.Write(chunk)
		s.Handle(ctx, AudioFrame(chunk))
	}

	// Make sure the final pass succeeds
	s.transcriber = TranscriberFunc(func(_ context.Context, audio []byte) (string, error) {
		seen.Write(audio)
		return "tail", nil
	})
	out := s.Handle(ctx, TextFrame("stop_recording"))
	expectTypes(t, out, TypeSessionComplete)

	if !bytes.Equal(seen.Bytes(), sent.Bytes()) {
		t.Errorf("Transcribed audio (%d bytes) does not equal sent audio (%d bytes)", seen.Len(), sent.Len())
	}
}

func TestSessionCompleteIsLast(t *testing.T) {
	tr := TranscriberFunc(func(context.Context, []byte) (string, error) { return "w", nil })
	s := newTestSession(t, testConfig(3, 100), tr)
	ctx := context.Background()

	var all []Outbound
	all = append(all, s.Handle(ctx, TextFrame("start_recording"))...)
	for i := 0; i < 5; i++ {
		all = append(all, s.Handle(ctx, AudioFrame([]byte{1, 2}))...)
	}
	all = append(all, s.Handle(ctx, TextFrame("stop_recording"))...)

	last := all[len(all)-1]
	if last.MessageType() != TypeSessionComplete {
		t.Fatalf("Expected session_complete last, got %s", last.MessageType())
	}
	for _, m := range all[:len(all)-1] {
		if m.MessageType() == TypeSessionComplete {
			t.Error("session_complete emitted before the end")
		}
	}
}

func TestSessionAbort(t *testing.T) {
	tr := &fakeTranscriber{}
	s := newTestSession(t, testConfig(100, 1000), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	s.Handle(ctx, AudioFrame([]byte{1, 2, 3}))
	s.Abort()
	s.Abort()

	if s.State() != StateClosed || s.CloseReason() != ReasonDisconnected {
		t.Errorf("Expected CLOSED/disconnected, got %s/%s", s.State(), s.CloseReason())
	}
	if s.BufferedBytes() != 0 {
		t.Errorf("Expected buffer discarded, got %d bytes", s.BufferedBytes())
	}
	if tr.callCount() != 0 {
		t.Errorf("Abort must not transcribe, got %d calls", tr.callCount())
	}
}

func TestSessionExpireTranscribesRemainder(t *testing.T) {
	tr := &fakeTranscriber{results: []fakeResult{{text: "left over"}}}
	s := newTestSession(t, testConfig(100, 1000), tr)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	s.Handle(ctx, AudioFrame([]byte{1, 2, 3}))
	s.Expire(ctx)

	summary := s.Summary()
	if summary.Reason != ReasonExpired || summary.FullText != "left over" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.TotalBytes != 3 || summary.ChunkCount != 1 {
		t.Errorf("Unexpected counters: %+v", summary)
	}
}

func TestSessionTranscribeTimeout(t *testing.T) {
	blocking := TranscriberFunc(func(ctx context.Context, _ []byte) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testConfig(2, 100)
	cfg.TranscribeTimeout = 20 * time.Millisecond
	s := newTestSession(t, cfg, blocking)
	ctx := context.Background()

	s.Handle(ctx, TextFrame("start_recording"))
	out := s.Handle(ctx, AudioFrame([]byte{1, 2}))

	expectTypes(t, out, TypeChunkReceived, TypeError)
	expectErrorCode(t, out[1], CodeTranscriptionFailed)
	if msg := out[1].(*ErrorMessage).Message; !strings.Contains(msg, "timed out") {
		t.Errorf("Expected timeout message, got %q", msg)
	}
}

func TestSessionRestartResetsCounters(t *testing.T) {
	tr := TranscriberFunc(func(context.Context, []byte) (string, error) { return "a", nil })
	m := NewManager(testConfig(100, 1000), tr, zaptest.NewLogger(t))
	ctx := context.Background()

	first, _ := m.Open("conn")
	first.Handle(ctx, TextFrame("start_recording"))
	first.Handle(ctx, AudioFrame([]byte{1}))
	first.Handle(ctx, TextFrame("stop_recording"))
	m.Close("conn")

	second, err := m.Open("conn")
	if err != nil {
		t.Fatalf("Reopen after close failed: %v", err)
	}
	second.Handle(ctx, TextFrame("start_recording"))
	out := second.Handle(ctx, AudioFrame([]byte{1, 2}))
	if idx := out[0].(*ChunkReceivedMessage).ChunkIndex; idx != 1 {
		t.Errorf("Expected chunk index to restart at 1, got %d", idx)
	}
	if first.ID == second.ID {
		t.Error("Expected a fresh session ID")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:       "IDLE",
		StateRecording:  "RECORDING",
		StateFinalizing: "FINALIZING",
		StateClosed:     "CLOSED",
		State(9):        "State(9)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
