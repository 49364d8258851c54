package transport

import (
	"net"

	"github.com/mjsolti/llmnrd/codec"
)

// Multicast groups used for LLMNR
var (
	IPv4Group = net.ParseIP("224.0.0.252")
	IPv6Group = net.ParseIP("ff02::1:3")

	IPv4GroupAddr = &net.UDPAddr{IP: IPv4Group, Port: codec.Port}
	IPv6GroupAddr = &net.UDPAddr{IP: IPv6Group, Port: codec.Port}
)
