package sender

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/mjsolti/llmnrd/codec"
)

// hostnameToArpaName converts hostname to its reverse-zone name if it is
// already one (ends in "arpa" case-insensitively), or if it parses as an
// IPv4 or IPv6 address literal.
func hostnameToArpaName(hostname string) (codec.Name, bool) {
	if n, err := codec.ParseName(hostname); err == nil && len(n) > 0 &&
		strings.EqualFold(n[len(n)-1], "arpa") {
		return n, true
	}

	addr, err := netip.ParseAddr(hostname)
	if err != nil {
		return nil, false
	}

	return addrToArpaName(addr), true
}

// addrToArpaName builds the reverse-zone name for addr: reversed octets
// under in-addr.arpa for IPv4, reversed nibbles under ip6.arpa for IPv6.
func addrToArpaName(addr netip.Addr) codec.Name {
	if addr.Is4() {
		b := addr.As4()
		return codec.Name{
			fmt.Sprint(b[3]), fmt.Sprint(b[2]), fmt.Sprint(b[1]), fmt.Sprint(b[0]),
			"in-addr", "arpa",
		}
	}

	b := addr.As16()
	labels := make([]string, 0, 34)
	for i := 15; i >= 0; i-- {
		labels = append(labels, fmt.Sprintf("%x", b[i]&0xf), fmt.Sprintf("%x", b[i]>>4))
	}
	labels = append(labels, "ip6", "arpa")

	return codec.Name(labels)
}
