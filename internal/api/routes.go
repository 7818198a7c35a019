package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/auth"
	"github.com/jbergloda1/swha-backend/internal/streaming"
	"github.com/jbergloda1/swha-backend/internal/websocket"
	"github.com/jbergloda1/swha-backend/usecase"
)

// Dependencies are the services the HTTP layer routes to
type Dependencies struct {
	Users         *usecase.UserService
	Transcription *usecase.TranscriptionService
	QA            *usecase.QAService
	Speech        *usecase.SpeechService
	Videos        *usecase.VideoService
	Tokens        *auth.TokenManager
	Hub           *websocket.Hub
	Sessions      *streaming.Manager
	// Metrics serves /metrics when set
	Metrics        http.Handler
	Version        string
	MaxUploadBytes int64
}

type handler struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handler{Dependencies: deps, logger: logger}

	// Health check
	e.GET("/health", h.health)
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	protected := v1.Group("", requireAuth(deps.Tokens, logger))

	protected.GET("/users/me", h.me)
	protected.PUT("/users/me", h.updateMe)

	protected.POST("/stt/transcribe", h.transcribe)
	protected.GET("/stt/sessions", h.listTranscripts)

	protected.POST("/tts/generate", h.synthesize)
	protected.GET("/tts/voices", h.voices)

	protected.POST("/qa/answer", h.answer)
	protected.POST("/qa/answer-batch", h.answerBatch)

	protected.POST("/upload/video", h.uploadVideo)
	protected.POST("/upload/videos", h.uploadVideos)

	protected.GET("/videos", h.listVideos)
	protected.GET("/videos/:id", h.getVideo)
	protected.PUT("/videos/:id", h.updateVideo)
	protected.DELETE("/videos/:id", h.deleteVideo)
	protected.GET("/videos/:id/stream", h.streamVideo)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Service:        "swha-backend",
		Version:        h.Version,
		ActiveSessions: h.Sessions.Len(),
	})
}

// websocketWithAuth accepts the token from the Authorization header or, for
// browsers that cannot set headers on an upgrade, the token query parameter.
func (h *handler) websocketWithAuth(c echo.Context) error {
	token, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		token = c.QueryParam("token")
	}

	if token == "" {
		h.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header or token query parameter",
		})
	}

	claims, err := h.Tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	h.logger.Info("WebSocket connection authenticated",
		zap.String("user_id", claims.UserID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocketWithAuth(h.Hub, c, claims.UserID, h.logger)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

// serviceError maps usecase errors onto HTTP responses
func (h *handler) serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrUnsupportedAudio),
		errors.Is(err, usecase.ErrUnsupportedVideo):
		return badRequest(c, err.Error())
	case errors.Is(err, usecase.ErrAudioTooLarge), errors.Is(err, usecase.ErrVideoTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "too_large", Message: err.Error()})
	case errors.Is(err, usecase.ErrUserExists):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication_failed", Message: err.Error()})
	case errors.Is(err, repositories.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"})
	case errors.Is(err, usecase.ErrInactiveUser):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "inactive_user", Message: err.Error()})
	case errors.Is(err, usecase.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
	}

	h.logger.Error("Request failed",
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusBadGateway, ErrorResponse{
		Error:   "upstream_error",
		Message: "The request could not be completed",
	})
}
