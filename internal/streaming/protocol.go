package streaming

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// InboundKind distinguishes control frames from audio frames
type InboundKind int

const (
	InboundText InboundKind = iota
	InboundBinary
)

// Inbound is one frame received from the client
type Inbound struct {
	Kind InboundKind
	Data []byte
}

// TextFrame builds a control frame
func TextFrame(s string) Inbound {
	return Inbound{Kind: InboundText, Data: []byte(s)}
}

// AudioFrame builds an audio frame
func AudioFrame(b []byte) Inbound {
	return Inbound{Kind: InboundBinary, Data: b}
}

// Control commands accepted on text frames
const (
	CommandStartRecording = "start_recording"
	CommandStopRecording  = "stop_recording"
)

// ParseControl extracts the command from a text frame. Both the bare
// literal and a JSON object with a "type" field are accepted.
func ParseControl(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	if trimmed[0] != '{' {
		return string(trimmed), nil
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if envelope.Type == "" {
		return "", fmt.Errorf("%w: missing type field", ErrMalformedMessage)
	}
	return envelope.Type, nil
}

// MessageType is the "type" field of every outbound message
type MessageType string

const (
	TypeConnected            MessageType = "connected"
	TypeRecordingStarted     MessageType = "recording_started"
	TypeChunkReceived        MessageType = "chunk_received"
	TypePartialTranscription MessageType = "partial_transcription"
	TypeSessionComplete      MessageType = "session_complete"
	TypeError                MessageType = "error"
)

// Outbound is any message pushed to the client
type Outbound interface {
	MessageType() MessageType
}

// BaseMessage holds the fields shared by all outbound messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (b BaseMessage) MessageType() MessageType {
	return b.Type
}

func newBase(t MessageType, sessionID string, now time.Time) BaseMessage {
	return BaseMessage{Type: t, SessionID: sessionID, Timestamp: now.Unix()}
}

// ConnectedMessage greets a freshly accepted connection
type ConnectedMessage struct {
	BaseMessage
	ConnectionID          string `json:"connection_id"`
	PartialThresholdBytes int    `json:"partial_threshold_bytes"`
	MaxBufferBytes        int    `json:"max_buffer_bytes"`
}

type RecordingStartedMessage struct {
	BaseMessage
}

type ChunkReceivedMessage struct {
	BaseMessage
	ChunkIndex    int `json:"chunk_index"`
	ChunkSize     int `json:"chunk_size"`
	BufferedBytes int `json:"buffered_bytes"`
}

type PartialTranscriptionMessage struct {
	BaseMessage
	Text         string `json:"text"`
	ChunkIndex   int    `json:"chunk_index"`
	SegmentIndex int    `json:"segment_index"`
}

type SessionCompleteMessage struct {
	BaseMessage
	FullText   string    `json:"full_text"`
	Segments   int       `json:"segments"`
	ChunkCount int       `json:"chunk_count"`
	ErrorCode  ErrorCode `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type ErrorMessage struct {
	BaseMessage
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
