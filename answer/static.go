package answer

import (
	"net/netip"
	"os"
	"strings"
	"sync"

	"github.com/mjsolti/llmnrd/link"
)

// Static is a reference, in-memory Oracle implementation. A config parser
// (out of scope) constructs one from the parsed configuration file;
// Names maps a link's interface name to the hostname it should answer
// to.
//
// Link names lacking an explicit entry in Names fall back to the short
// form of the host's node name, lowercased.
type Static struct {
	Links link.Provider
	Names map[string]string
}

// NewStatic returns an Oracle backed by links and the per-link hostname
// overrides in names. A nil or empty names map is valid; every link then
// answers to the default short hostname.
func NewStatic(links link.Provider, names map[string]string) *Static {
	return &Static{Links: links, Names: names}
}

// Addresses returns the primary IPv4 and IPv6 address of every UP link in
// the current snapshot.
func (s *Static) Addresses() AddressSet {
	var set AddressSet

	for _, l := range s.Links.Snapshot() {
		if l.State != link.Up {
			continue
		}
		if v4, ok := l.PrimaryV4(); ok {
			set.V4 = append(set.V4, v4)
		}
		if v6, ok := l.PrimaryV6(); ok {
			set.V6 = append(set.V6, v6)
		}
	}

	return set
}

// GetAddress returns the primary address of the UP link configured (or
// defaulted) to answer to hostname.
func (s *Static) GetAddress(hostname string, family link.Family) (netip.Addr, bool) {
	for _, l := range s.Links.Snapshot() {
		if l.State != link.Up {
			continue
		}
		if !strings.EqualFold(s.nameFor(l), hostname) {
			continue
		}

		if family == link.V6 {
			return l.PrimaryV6()
		}
		return l.PrimaryV4()
	}

	return netip.Addr{}, false
}

// GetName returns the hostname assigned to the UP link whose primary
// address (of either family) equals addr.
func (s *Static) GetName(addr netip.Addr) (string, bool) {
	addr = addr.WithZone("")

	for _, l := range s.Links.Snapshot() {
		if l.State != link.Up {
			continue
		}

		if v4, ok := l.PrimaryV4(); ok && v4 == addr {
			return s.nameFor(l), true
		}
		if v6, ok := l.PrimaryV6(); ok && v6.WithZone("") == addr {
			return s.nameFor(l), true
		}
	}

	return "", false
}

func (s *Static) nameFor(l link.Link) string {
	if name, ok := s.Names[l.Name]; ok && name != "" {
		return strings.ToLower(name)
	}
	return defaultHostname()
}

var (
	defaultHostnameOnce  sync.Once
	defaultHostnameValue string
)

// defaultHostname returns the short form (up to the first dot) of the
// host's node name, lowercased.
func defaultHostname() string {
	defaultHostnameOnce.Do(func() {
		name, err := os.Hostname()
		if err != nil {
			name = "localhost"
		}
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		defaultHostnameValue = strings.ToLower(name)
	})
	return defaultHostnameValue
}
