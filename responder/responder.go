// Package responder implements the LLMNR responder side: it listens for
// queries on the configured links and answers those it is authoritative
// for.
package responder

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/sync/errgroup"

	"github.com/mjsolti/llmnrd/answer"
	"github.com/mjsolti/llmnrd/codec"
	"github.com/mjsolti/llmnrd/internal/clock"
	"github.com/mjsolti/llmnrd/link"
	"github.com/mjsolti/llmnrd/transport"
)

// defaultTTL is used for every answer record; LLMNR has no persistent
// cache to amortize, so the exact value is not load-bearing.
const defaultTTL = 30

const (
	defaultRefreshInterval = 60 * time.Second
	defaultJitterInterval  = 100 * time.Millisecond
)

// command is a unit of work executed within the Responder's single-
// threaded main loop.
type command interface {
	Execute(ctx context.Context, r *Responder) error
}

// Responder answers LLMNR queries on behalf of the links reported by a
// link.Provider, using an answer.Oracle to decide what to say.
type Responder struct {
	links  link.Provider
	oracle answer.Oracle
	logger logging.Logger

	refreshInterval       time.Duration
	jitterInterval        time.Duration
	rfc4795EmptyResponses bool

	sockets *transport.SocketSet

	done     chan struct{}
	commands chan command
}

// New returns a Responder for the given links and oracle.
func New(links link.Provider, oracle answer.Oracle, opts ...Option) (*Responder, error) {
	r := &Responder{
		links:           links,
		oracle:          oracle,
		refreshInterval: defaultRefreshInterval,
		jitterInterval:  defaultJitterInterval,
		done:            make(chan struct{}),
		commands:        make(chan command),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.sockets = transport.NewSocketSet(r.logger)

	return r, nil
}

// execute enqueues c on the command loop and blocks until it has been
// accepted (not until it has finished running).
func (r *Responder) execute(ctx context.Context, c command) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	case r.commands <- c:
		return nil
	}
}

// Run answers LLMNR queries until ctx is canceled. It refreshes the
// socket set immediately and then on every refreshInterval tick, and
// closes every socket on return.
func (r *Responder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.sockets.Close()

	r.sockets.Refresh(r.links.Snapshot())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pumpQueries(ctx)
	})

	g.Go(func() error {
		return r.refreshLoop(ctx)
	})

	g.Go(func() error {
		return r.run(ctx)
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// run is the Responder's single-threaded main loop.
func (r *Responder) run(ctx context.Context) error {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.commands:
			if err := c.Execute(ctx, r); err != nil {
				return err
			}
		}
	}
}

// refreshLoop periodically re-snapshots the link provider and
// reconciles the socket set against it.
func (r *Responder) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sockets.Refresh(r.links.Snapshot())
		}
	}
}

// pumpQueries feeds inbound queries from the socket set into the
// command loop.
func (r *Responder) pumpQueries(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-r.sockets.Queries():
			if !ok {
				return nil
			}
			c := &handleQuery{Query: q}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.commands <- c:
			}
		}
	}
}

// handleQuery is the command that validates, answers and replies to a
// single inbound query.
type handleQuery struct {
	Query *transport.Query
}

func (c *handleQuery) Execute(ctx context.Context, r *Responder) error {
	defer c.Query.Close()

	if !c.Query.Multicast {
		// Unicast UDP queries are silently discarded. TCP queries set
		// Multicast unconditionally and are exempt.
		return nil
	}

	p, err := codec.Decode(c.Query.Data)
	if err != nil {
		logging.Log(r.logger, "responder: malformed packet from %s: %s", c.Query.Source, err)
		return nil
	}

	if !validateQuery(p) {
		return nil
	}

	q := p.Questions[0]
	answers := composeAnswers(r.oracle, q)
	if len(answers) == 0 {
		// An empty RFC 4795 response is only sent for an A or AAAA
		// question about a name the oracle answers to.
		name := q.Name.Lower().String()
		_, v4 := r.oracle.GetAddress(name, link.V4)
		_, v6 := r.oracle.GetAddress(name, link.V6)
		owned := (q.Type == codec.TypeA || q.Type == codec.TypeAAAA) && (v4 || v6)
		if !r.rfc4795EmptyResponses || !owned {
			return nil
		}
	}

	resp := &codec.Packet{
		ID:        p.ID,
		Flags:     codec.Flags{QR: true},
		Questions: p.Questions,
		Answers:   answers,
	}

	if err := clock.Sleep(ctx, clock.Jitter(r.jitterInterval)); err != nil {
		return nil
	}

	data, err := codec.Encode(resp)
	if err != nil {
		logging.Log(r.logger, "responder: encoding response: %s", err)
		return nil
	}

	if err := c.Query.Reply(data); err != nil {
		logging.Log(r.logger, "responder: replying to %s: %s", c.Query.Source, err)
	}

	return nil
}
