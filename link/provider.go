package link

import (
	"net"
	"net/netip"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
)

// Static is a Provider that always returns a fixed set of links. It is
// useful for tests, and for embedding a hand-authored link list when no
// OS-backed discovery is wanted.
type Static struct {
	Links []Link
}

// Snapshot returns the static link list.
func (s Static) Snapshot() []Link {
	return s.Links
}

// System is a Provider backed by the standard library's net.Interfaces.
//
// System tolerates transient OS failures by returning the last good
// snapshot (or an empty one, before any snapshot has succeeded).
type System struct {
	logger logging.Logger

	mu   sync.Mutex
	last []Link
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithLogger sets the logger used to report transient enumeration
// failures.
func WithLogger(l logging.Logger) SystemOption {
	return func(s *System) {
		s.logger = l
	}
}

// NewSystem returns a Provider backed by the host's network interfaces.
func NewSystem(opts ...SystemOption) *System {
	s := &System{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot enumerates the host's network interfaces. On failure it logs
// and returns the previous successful snapshot.
func (s *System) Snapshot() []Link {
	ifaces, err := net.Interfaces()
	if err != nil {
		logging.Log(s.logger, "link: unable to enumerate interfaces: %s", err)
		return s.previous()
	}

	links := make([]Link, 0, len(ifaces))
	for _, iface := range ifaces {
		links = append(links, fromInterface(iface))
	}

	s.mu.Lock()
	s.last = links
	s.mu.Unlock()

	return links
}

func (s *System) previous() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func fromInterface(iface net.Interface) Link {
	l := Link{
		Name:  iface.Name,
		State: Down,
		MTU:   uint32(iface.MTU),
	}

	if iface.Flags&net.FlagUp != 0 {
		l.State = Up
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return l
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}

		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()

		if addr.IsLoopback() {
			continue
		}

		if addr.Is4() {
			l.V4 = append(l.V4, addr)
			continue
		}

		if addr.Is6() && addr.IsLinkLocalUnicast() {
			addr = addr.WithZone(iface.Name)
		}
		l.V6 = append(l.V6, addr)
	}

	return l
}
