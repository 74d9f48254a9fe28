package auth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenSweeper is the slice of the refresh-token store the cleanup needs.
type TokenSweeper interface {
	CleanupDead(ctx context.Context, now time.Time, revokedCutoff time.Time) error
}

// TokenCleanupService periodically deletes expired tokens and revoked tokens
// past the prune window. Inline pruning on login is the primary bound; this
// sweeper catches accounts that stopped logging in.
type TokenCleanupService struct {
	tokens      TokenSweeper
	interval    time.Duration
	pruneWindow time.Duration
	stopChan    chan bool
}

func NewTokenCleanupService(tokens TokenSweeper, pruneWindow time.Duration) *TokenCleanupService {
	return &TokenCleanupService{
		tokens:      tokens,
		interval:    24 * time.Hour,
		pruneWindow: pruneWindow,
		stopChan:    make(chan bool),
	}
}

// Start starts the token cleanup service
func (s *TokenCleanupService) Start() {
	go s.run()
	logrus.Info("Token cleanup service started")
}

// Stop stops the token cleanup service
func (s *TokenCleanupService) Stop() {
	s.stopChan <- true
	logrus.Info("Token cleanup service stopped")
}

func (s *TokenCleanupService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *TokenCleanupService) cleanup() {
	logrus.Info("Starting token cleanup...")

	now := time.Now()
	if err := s.tokens.CleanupDead(context.Background(), now, now.Add(-s.pruneWindow)); err != nil {
		logrus.Errorf("Failed to cleanup tokens: %v", err)
		return
	}

	logrus.Info("Token cleanup completed")
}

// SetInterval sets the cleanup interval
func (s *TokenCleanupService) SetInterval(interval time.Duration) {
	s.interval = interval
}
