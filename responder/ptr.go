package responder

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/mjsolti/llmnrd/codec"
)

// parsePTRName parses a reverse-zone query name into the address it asks
// about. Any shape other than "d.d.d.d.in-addr.arpa." or 32 reversed hex
// nibbles under "ip6.arpa." is rejected.
func parsePTRName(name codec.Name) (netip.Addr, bool) {
	labels := []string(name)
	if len(labels) < 2 || !strings.EqualFold(labels[len(labels)-1], "arpa") {
		return netip.Addr{}, false
	}

	suffix := labels[len(labels)-2]
	body := labels[:len(labels)-2]

	switch strings.ToLower(suffix) {
	case "in-addr":
		return parseV4PTR(body)
	case "ip6":
		return parseV6PTR(body)
	default:
		return netip.Addr{}, false
	}
}

// parseV4PTR expects body to be the four octets of an IPv4 address,
// already in reversed (least-significant-first) order, e.g.
// ["1", "2", "3", "4"] for 4.3.2.1.
func parseV4PTR(body []string) (netip.Addr, bool) {
	if len(body) != 4 {
		return netip.Addr{}, false
	}

	var octets [4]byte
	for i, label := range body {
		n, err := strconv.Atoi(label)
		if err != nil || n < 0 || n > 255 {
			return netip.Addr{}, false
		}
		// body is in reversed order; octets[3] is the first label.
		octets[3-i] = byte(n)
	}

	return netip.AddrFrom4(octets), true
}

// parseV6PTR expects body to be 32 reversed hex nibbles.
func parseV6PTR(body []string) (netip.Addr, bool) {
	if len(body) != 32 {
		return netip.Addr{}, false
	}

	var addr [16]byte
	for i, label := range body {
		if len(label) != 1 {
			return netip.Addr{}, false
		}
		nibble, err := strconv.ParseUint(label, 16, 8)
		if err != nil {
			return netip.Addr{}, false
		}

		// body[0] is the least-significant nibble of the last byte.
		byteIdx := 15 - i/2
		if i%2 == 0 {
			addr[byteIdx] |= byte(nibble)
		} else {
			addr[byteIdx] |= byte(nibble) << 4
		}
	}

	return netip.AddrFrom16(addr), true
}
