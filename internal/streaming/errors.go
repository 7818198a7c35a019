package streaming

import (
	"errors"
	"fmt"
)

// ErrDuplicateSession is returned by Open when the connection already owns a session
var ErrDuplicateSession = errors.New("session already exists for connection")

// ErrMalformedMessage is returned when a control frame cannot be parsed
var ErrMalformedMessage = errors.New("malformed control message")

// DuplicateSessionError carries the offending connection identity
type DuplicateSessionError struct {
	ConnectionID string
	SessionID    string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("connection %s already owns session %s", e.ConnectionID, e.SessionID)
}

func (e *DuplicateSessionError) Is(target error) bool {
	return target == ErrDuplicateSession
}

// ErrorCode is the machine-readable code carried by outbound error messages
type ErrorCode string

const (
	CodeProtocolViolation   ErrorCode = "protocol_violation"
	CodeMalformedMessage    ErrorCode = "malformed_message"
	CodeTranscriptionFailed ErrorCode = "transcription_failed"
	CodeBufferOverflow      ErrorCode = "buffer_overflow"
)
