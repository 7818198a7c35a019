package usecase

import "errors"

var (
	// ErrInvalidInput marks request validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists is returned when registering a taken username or email
	ErrUserExists = errors.New("username or email already registered")
	// ErrInactiveUser is returned when a disabled account tries to log in
	ErrInactiveUser = errors.New("user account is inactive")
	// ErrUnsupportedAudio is returned for audio formats no provider accepts
	ErrUnsupportedAudio = errors.New("unsupported audio format")
	// ErrAudioTooLarge is returned when uploaded or fetched audio exceeds the limit
	ErrAudioTooLarge = errors.New("audio exceeds size limit")
	// ErrUnsupportedVideo is returned for uploads with a disallowed extension
	ErrUnsupportedVideo = errors.New("unsupported video format")
	// ErrVideoTooLarge is returned when an uploaded video exceeds the limit
	ErrVideoTooLarge = errors.New("video exceeds size limit")
	// ErrForbidden is returned when a user acts on a video they do not own
	ErrForbidden = errors.New("not enough permissions")
)
