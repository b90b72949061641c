package cache

import (
	"context"
	"errors"
	"time"

	"activation-backend/internal/models"
)

// Dashboard keys are dropped after every successful promotion
const (
	DashboardPattern       = "dashboard:*"
	DashboardAssignmentFmt = "dashboard:assignments:%s"
	sessionKeyFmt          = "session:%s"
)

var ErrSessionNotFound = errors.New("session not found")

// Store holds login sessions and short-lived dashboard responses
type Store interface {
	PutSession(ctx context.Context, s *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	GetCached(ctx context.Context, key string) ([]byte, bool)
	SetCached(ctx context.Context, key string, data []byte, ttl time.Duration)
	// InvalidatePattern removes all keys matching a glob pattern
	InvalidatePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
}
