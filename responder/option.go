package responder

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
)

// Option is a function that applies an option to a Responder created by
// New().
type Option func(*Responder) error

// WithLogger sets the logger used by the Responder.
func WithLogger(l logging.Logger) Option {
	return func(r *Responder) error {
		r.logger = l
		return nil
	}
}

// WithRefreshInterval sets how often the Responder re-snapshots its
// LinkProvider and reconciles its sockets. The default is 60 seconds.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Responder) error {
		r.refreshInterval = d
		return nil
	}
}

// WithJitterInterval overrides the default 100ms JITTER_INTERVAL used
// before sending a response.
func WithJitterInterval(d time.Duration) Option {
	return func(r *Responder) error {
		r.jitterInterval = d
		return nil
	}
}

// WithRFC4795EmptyResponses switches the Responder from the default
// Microsoft silent-drop-when-empty behavior to RFC 4795's
// RCODE=0/empty-answer-section behavior for queries we are authoritative
// for but have no data to answer.
func WithRFC4795EmptyResponses() Option {
	return func(r *Responder) error {
		r.rfc4795EmptyResponses = true
		return nil
	}
}
