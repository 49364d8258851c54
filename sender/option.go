package sender

import (
	"net/netip"
	"time"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/mjsolti/llmnrd/link"
)

// Option is a function that applies an option to a Sender created by
// New().
type Option func(*Sender) error

// WithLogger sets the logger used by the Sender.
func WithLogger(l logging.Logger) Option {
	return func(s *Sender) error {
		s.logger = l
		return nil
	}
}

// WithSourceAddress binds the Sender's UDP multicast socket to a
// specific local address instead of the wildcard.
func WithSourceAddress(addr netip.Addr) Option {
	return func(s *Sender) error {
		s.source = addr
		return nil
	}
}

// WithLinks supplies the link.Provider used to resolve an IPv6 zone
// index for the TCP path. Without this
// option, TCP queries to a link-local IPv6 server fail with
// ErrNoIPv6Link.
func WithLinks(links link.Provider) Option {
	return func(s *Sender) error {
		s.links = links
		return nil
	}
}

// WithJitterInterval overrides the default 100ms JITTER_INTERVAL applied
// before sending a query.
func WithJitterInterval(d time.Duration) Option {
	return func(s *Sender) error {
		s.jitterInterval = d
		return nil
	}
}

// WithInitialTimeout overrides the default 200ms initial per-attempt UDP
// receive timeout.
func WithInitialTimeout(d time.Duration) Option {
	return func(s *Sender) error {
		s.initialTimeout = d
		return nil
	}
}

// WithMaxAttempts overrides the default 3 UDP collection attempts.
func WithMaxAttempts(n int) Option {
	return func(s *Sender) error {
		s.maxAttempts = n
		return nil
	}
}

// WithCollectionWindow overrides the default LLMNR_TIMEOUT +
// JITTER_INTERVAL (~1.1s) absolute deadline for a UDP collection window.
func WithCollectionWindow(d time.Duration) Option {
	return func(s *Sender) error {
		s.collectionWindow = d
		return nil
	}
}

// ConflictHandler is invoked when a response has its C bit set. The
// default handler does nothing and returns nil, nil.
type ConflictHandler func(hostname string) ([]Answer, error)

// WithConflictHandler overrides the default conflict handler.
func WithConflictHandler(h ConflictHandler) Option {
	return func(s *Sender) error {
		s.conflictHandler = h
		return nil
	}
}
