package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/internal/streaming"
)

// SessionCleanupService expires streaming sessions that have gone quiet
type SessionCleanupService struct {
	manager  *streaming.Manager
	hub      *Hub
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(manager *streaming.Manager, hub *Hub, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	return &SessionCleanupService{
		manager:  manager,
		hub:      hub,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run checks for idle sessions every interval until ctx is done
func (s *SessionCleanupService) Run(ctx context.Context) error {
	if s.interval <= 0 || s.manager.Config().IdleTimeout <= 0 {
		s.logger.Info("Session cleanup disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Session cleanup service started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session cleanup service stopped")
			return nil
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup hands every idle session to its connection's worker; the
// cleanup loop never touches a session itself.
func (s *SessionCleanupService) runCleanup() int {
	expired := 0
	for _, connID := range s.manager.Idle(s.now()) {
		if s.hub.Expire(connID) {
			expired++
			continue
		}
		// Close belongs to the owning worker, which removes the session
		// before leaving the hub; the next tick sees it gone.
		s.logger.Debug("Idle session has no live connection", zap.String("connectionID", connID))
	}

	if expired > 0 {
		s.logger.Info("Expired idle sessions", zap.Int("count", expired))
	}
	return expired
}
