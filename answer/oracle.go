// Package answer maps hostnames to addresses and back.
//
// The on-disk config-file parser that ultimately feeds an Oracle is an
// external collaborator; this package defines the Oracle seam consumed
// by the responder, plus Static, a reference in-memory implementation a
// config parser (or a test) can populate directly.
package answer

import (
	"net/netip"

	"github.com/mjsolti/llmnrd/link"
)

// AddressSet is every address an Oracle is currently authoritative for.
type AddressSet struct {
	V4 []netip.Addr
	V6 []netip.Addr
}

// Oracle maps hostnames to addresses and back.
//
// Implementations must be safe for concurrent use: the responder may
// consult an Oracle from multiple transports' read loops.
type Oracle interface {
	// Addresses returns every address the responder is authoritative
	// for, in the current link snapshot.
	Addresses() AddressSet

	// GetAddress returns the primary address of the link whose
	// configured (or defaulted) name equals hostname, case-insensitively,
	// when that link is UP.
	GetAddress(hostname string, family link.Family) (netip.Addr, bool)

	// GetName returns the hostname assigned to the link whose primary
	// address (of either family) equals addr, when that link is UP.
	GetName(addr netip.Addr) (string, bool)
}
