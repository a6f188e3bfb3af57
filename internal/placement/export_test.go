package placement

import (
	"context"
	"time"
)

// SetSleep replaces the service's retry sleep function in tests.
func SetSleep(s *Service, fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}
