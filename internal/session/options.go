package session

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a session.
type Option func(*Session)

// WithRetryInterval sets the fixed delay between resync attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Session) { s.retryInterval = d }
}

// WithLogger sets the session's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}
