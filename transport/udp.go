package transport

import (
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/mjsolti/llmnrd/link"
)

// datagramSocket is the common shape of the per-family UDP multicast
// sockets: bound to the wildcard address, joined to the LLMNR group on
// a set of interfaces, and able to report whether a received datagram
// was addressed to the multicast group or received unicast.
type datagramSocket interface {
	// read blocks for the next datagram, reporting whether it was
	// addressed to the LLMNR multicast group (as opposed to received
	// unicast on the same port, which must be silently discarded).
	read() (data []byte, src *net.UDPAddr, multicast bool, err error)
	write(data []byte, dst *net.UDPAddr) error
	// syncGroups joins the group on every newly-present interface in
	// ifaces and leaves it on every interface previously joined but no
	// longer present.
	syncGroups(ifaces []net.Interface) error
	close() error
}

// udpV4Socket is a datagramSocket for IPv4.
type udpV4Socket struct {
	pc     *ipv4.PacketConn
	logger logging.Logger
	joined map[string]net.Interface
}

func newUDPV4Socket(logger logging.Logger) (*udpV4Socket, error) {
	addr := &net.UDPAddr{Port: portNumber}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp4 %s: %w", addr, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: enable udp4 packet info: %w", err)
	}
	if err := pc.SetTTL(1); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: set udp4 ttl: %w", err)
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: set udp4 multicast ttl: %w", err)
	}

	return &udpV4Socket{pc: pc, logger: logger, joined: map[string]net.Interface{}}, nil
}

func (s *udpV4Socket) syncGroups(ifaces []net.Interface) error {
	want := make(map[string]net.Interface, len(ifaces))
	for _, iface := range ifaces {
		want[iface.Name] = iface
	}

	for name, iface := range want {
		if _, ok := s.joined[name]; ok {
			continue
		}
		iface := iface
		if err := s.pc.JoinGroup(&iface, &net.UDPAddr{IP: IPv4Group}); err != nil {
			logging.Log(s.logger, "transport: unable to join %s on %s: %s", IPv4Group, name, err)
			continue
		}
		s.joined[name] = iface
	}

	for name, iface := range s.joined {
		if _, ok := want[name]; ok {
			continue
		}
		iface := iface
		if err := s.pc.LeaveGroup(&iface, &net.UDPAddr{IP: IPv4Group}); err != nil {
			logging.Log(s.logger, "transport: unable to leave %s on %s: %s", IPv4Group, name, err)
		}
		delete(s.joined, name)
	}

	if len(s.joined) == 0 {
		return fmt.Errorf("transport: unable to join %s on any interface", IPv4Group)
	}
	return nil
}

func (s *udpV4Socket) read() ([]byte, *net.UDPAddr, bool, error) {
	buf := getBuffer()

	n, cm, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		return nil, nil, false, err
	}

	multicast := cm != nil && cm.Dst != nil && cm.Dst.Equal(IPv4Group)
	return buf[:n], src.(*net.UDPAddr), multicast, nil
}

func (s *udpV4Socket) write(data []byte, dst *net.UDPAddr) error {
	_, err := s.pc.WriteTo(data, nil, dst)
	return err
}

func (s *udpV4Socket) close() error {
	return s.pc.Close()
}

// udpV6Socket is a datagramSocket for IPv6.
type udpV6Socket struct {
	pc     *ipv6.PacketConn
	logger logging.Logger
	joined map[string]net.Interface
}

func newUDPV6Socket(logger logging.Logger) (*udpV6Socket, error) {
	addr := &net.UDPAddr{Port: portNumber}
	conn, err := net.ListenUDP("udp6", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp6 %s: %w", addr, err)
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: enable udp6 packet info: %w", err)
	}
	if err := pc.SetHopLimit(1); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: set udp6 hop limit: %w", err)
	}
	if err := pc.SetMulticastHopLimit(1); err != nil {
		pc.Close()
		return nil, fmt.Errorf("transport: set udp6 multicast hop limit: %w", err)
	}

	return &udpV6Socket{pc: pc, logger: logger, joined: map[string]net.Interface{}}, nil
}

func (s *udpV6Socket) syncGroups(ifaces []net.Interface) error {
	want := make(map[string]net.Interface, len(ifaces))
	for _, iface := range ifaces {
		want[iface.Name] = iface
	}

	for name, iface := range want {
		if _, ok := s.joined[name]; ok {
			continue
		}
		iface := iface
		if err := s.pc.JoinGroup(&iface, &net.UDPAddr{IP: IPv6Group}); err != nil {
			logging.Log(s.logger, "transport: unable to join %s on %s: %s", IPv6Group, name, err)
			continue
		}
		s.joined[name] = iface
	}

	for name, iface := range s.joined {
		if _, ok := want[name]; ok {
			continue
		}
		iface := iface
		if err := s.pc.LeaveGroup(&iface, &net.UDPAddr{IP: IPv6Group}); err != nil {
			logging.Log(s.logger, "transport: unable to leave %s on %s: %s", IPv6Group, name, err)
		}
		delete(s.joined, name)
	}

	if len(s.joined) == 0 {
		return fmt.Errorf("transport: unable to join %s on any interface", IPv6Group)
	}
	return nil
}

func (s *udpV6Socket) read() ([]byte, *net.UDPAddr, bool, error) {
	buf := getBuffer()

	n, cm, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		return nil, nil, false, err
	}

	multicast := cm != nil && cm.Dst != nil && cm.Dst.Equal(IPv6Group)
	return buf[:n], src.(*net.UDPAddr), multicast, nil
}

func (s *udpV6Socket) write(data []byte, dst *net.UDPAddr) error {
	_, err := s.pc.WriteTo(data, nil, dst)
	return err
}

func (s *udpV6Socket) close() error {
	return s.pc.Close()
}

// portNumber is the LLMNR port, kept unexported and separate from
// codec.Port to avoid every file in this package importing codec solely
// for a literal.
const portNumber = 5355

// interfacesFor resolves link names to net.Interface values for
// multicast-group joining, logging and skipping any that cannot be
// resolved.
func interfacesFor(names []string, logger logging.Logger) []net.Interface {
	seen := make(map[string]bool, len(names))
	ifaces := make([]net.Interface, 0, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		iface, err := net.InterfaceByName(name)
		if err != nil {
			logging.Log(logger, "transport: unable to resolve interface %q: %s", name, err)
			continue
		}
		ifaces = append(ifaces, *iface)
	}

	return ifaces
}

// linkNames returns the distinct link names of the links carrying any
// address of family.
func linkNames(links []link.Link, family link.Family) []string {
	var names []string
	for _, l := range links {
		if family == link.V4 && len(l.V4) > 0 {
			names = append(names, l.Name)
		}
		if family == link.V6 && len(l.V6) > 0 {
			names = append(names, l.Name)
		}
	}
	return names
}
