// Package sender implements the LLMNR sender (client) side: Ask sends a
// query, by multicast UDP or unicast TCP, and returns the decoded
// answers.
package sender

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/mjsolti/llmnrd/codec"
	"github.com/mjsolti/llmnrd/internal/clock"
	"github.com/mjsolti/llmnrd/link"
	"github.com/mjsolti/llmnrd/transport"
)

const (
	defaultJitterInterval    = 100 * time.Millisecond
	defaultInitialTimeout    = 200 * time.Millisecond
	defaultMaxAttempts       = 3
	defaultCollectionWindow  = time.Second + defaultJitterInterval
	defaultTCPDialTimeout    = time.Second
	defaultTCPOverallTimeout = time.Second

	maxResponseSize = 9194
)

// Answer is a single decoded answer record.
type Answer struct {
	// Type is the record's RTYPE (codec.TypeA, codec.TypeAAAA,
	// codec.TypePTR, or any other value the server returned).
	Type uint16

	// Addr is set for A and AAAA answers.
	Addr netip.Addr

	// Name is set for PTR answers, in dotted form.
	Name string

	// Raw holds the undecoded RDATA for any other record type.
	Raw []byte
}

// Sender issues LLMNR queries.
type Sender struct {
	family link.Family
	source netip.Addr
	links  link.Provider
	logger logging.Logger

	jitterInterval   time.Duration
	initialTimeout   time.Duration
	maxAttempts      int
	collectionWindow time.Duration
	conflictHandler  ConflictHandler
	nextID           uint32
}

// New returns a Sender for the given IP family.
func New(family link.Family, opts ...Option) (*Sender, error) {
	s := &Sender{
		family:           family,
		jitterInterval:   defaultJitterInterval,
		initialTimeout:   defaultInitialTimeout,
		maxAttempts:      defaultMaxAttempts,
		collectionWindow: defaultCollectionWindow,
		conflictHandler:  defaultConflictHandler,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func defaultConflictHandler(hostname string) ([]Answer, error) {
	return nil, nil
}

// Ask sends an LLMNR query for (hostname, qtype) and returns its
// answers. If server is non-nil, the query is sent by unicast TCP to
// that address; otherwise it is multicast over UDP.
func (s *Sender) Ask(ctx context.Context, hostname string, qtype uint16, server *netip.Addr) ([]Answer, error) {
	name, err := s.queryName(hostname, qtype)
	if err != nil {
		return nil, err
	}

	query := &codec.Packet{
		ID:        uint16(atomic.AddUint32(&s.nextID, 1)),
		Questions: []codec.Question{{Name: name, Type: qtype, Class: codec.ClassIN}},
	}

	if server != nil {
		return s.askTCP(ctx, query, *server)
	}
	return s.askUDP(ctx, query)
}

// queryName resolves hostname to the name actually placed on the wire.
func (s *Sender) queryName(hostname string, qtype uint16) (codec.Name, error) {
	if qtype != codec.TypePTR {
		return codec.ParseName(hostname)
	}

	name, ok := hostnameToArpaName(hostname)
	if !ok {
		return nil, ErrBadHostname
	}
	return name, nil
}

// askUDP sends the query by multicast over UDP and collects responses.
func (s *Sender) askUDP(ctx context.Context, query *codec.Packet) ([]Answer, error) {
	conn, err := s.openMulticastSocket()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := clock.Sleep(ctx, clock.Jitter(s.jitterInterval)); err != nil {
		return nil, err
	}

	data, err := codec.Encode(query)
	if err != nil {
		return nil, err
	}

	groupAddr := s.groupAddr()
	if _, err := conn.WriteToUDP(data, groupAddr); err != nil {
		return nil, fmt.Errorf("sender: sending query: %w", err)
	}

	responses, err := s.collectResponses(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, ErrNoResponse
	}

	for _, r := range responses {
		if r.packet.Flags.C {
			return s.conflictHandler(query.Questions[0].Name.String())
		}
	}

	// Truncation retry: exactly one response, and it is truncated.
	if len(responses) == 1 && responses[0].packet.Flags.TC {
		server := responses[0].from.AddrPort().Addr()
		return s.askTCP(ctx, query, server)
	}

	var answers []Answer
	for _, r := range responses {
		answers = append(answers, decodeAnswers(r.packet)...)
	}
	return answers, nil
}

type udpResponse struct {
	packet *codec.Packet
	from   *net.UDPAddr
}

// collectResponses reads UDP responses until the absolute deadline,
// exiting early once exactly one non-conflicted response has arrived,
// retrying on a per-attempt timeout that doubles each of up to
// maxAttempts tries.
func (s *Sender) collectResponses(ctx context.Context, conn *net.UDPConn) ([]udpResponse, error) {
	deadline := time.Now().Add(s.collectionWindow)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	var responses []udpResponse
	timeout := s.initialTimeout

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		readDeadline := time.Now().Add(timeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		conn.SetReadDeadline(readDeadline)

		buf := make([]byte, 9194)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				timeout *= 2
				continue
			}
			break
		}

		p, err := codec.Decode(buf[:n])
		if err != nil {
			logging.Log(s.logger, "sender: malformed response from %s: %s", from, err)
			continue
		}

		responses = append(responses, udpResponse{packet: p, from: from})

		if len(responses) == 1 && !p.Flags.C {
			break
		}
	}

	return responses, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// askTCP sends the query by unicast TCP to server and reads one response.
func (s *Sender) askTCP(ctx context.Context, query *codec.Packet, server netip.Addr) ([]Answer, error) {
	if server.Is6() && server.IsLinkLocalUnicast() && server.Zone() == "" {
		zone, err := s.ipv6Zone()
		if err != nil {
			return nil, err
		}
		server = server.WithZone(zone)
	}

	dialer := net.Dialer{Timeout: defaultTCPDialTimeout}
	addr := net.JoinHostPort(server.String(), fmt.Sprint(codec.Port))

	ctx, cancel := context.WithTimeout(ctx, defaultTCPOverallTimeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sender: dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if server.Is6() {
		_ = ipv6.NewConn(conn).SetHopLimit(1)
	} else {
		_ = ipv4.NewConn(conn).SetTTL(1)
	}

	if err := clock.Sleep(ctx, clock.Jitter(s.jitterInterval)); err != nil {
		return nil, err
	}

	data, err := codec.Encode(query)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("sender: sending query: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(defaultTCPOverallTimeout))
	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("sender: reading response: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoResponse
	}

	p, err := codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("sender: decoding response: %w", err)
	}

	if p.Flags.C {
		return s.conflictHandler(query.Questions[0].Name.String())
	}

	return decodeAnswers(p), nil
}

func (s *Sender) ipv6Zone() (string, error) {
	if s.links == nil {
		return "", ErrNoIPv6Link
	}
	for _, l := range s.links.Snapshot() {
		if l.State != link.Up {
			continue
		}
		if _, ok := l.PrimaryV6(); ok {
			return l.Name, nil
		}
	}
	return "", ErrNoIPv6Link
}

// openMulticastSocket opens the UDP socket a query is sent from. It also
// enables multicast loopback -- a Sender sharing a host with a
// Responder must still see its replies -- and pins the TTL/hop limit to
// 1, since a query never needs to cross a router.
func (s *Sender) openMulticastSocket() (*net.UDPConn, error) {
	laddr := &net.UDPAddr{Port: 0}
	if s.source.IsValid() {
		laddr.IP = s.source.AsSlice()
		laddr.Zone = s.source.Zone()
	}

	network := "udp4"
	if s.family == link.V6 {
		network = "udp6"
	}

	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, fmt.Errorf("sender: opening query socket: %w", err)
	}

	if s.family == link.V6 {
		pc := ipv6.NewPacketConn(conn)
		_ = pc.SetMulticastLoopback(true)
		_ = pc.SetHopLimit(1)
		_ = pc.SetMulticastHopLimit(1)
	} else {
		pc := ipv4.NewPacketConn(conn)
		_ = pc.SetMulticastLoopback(true)
		_ = pc.SetTTL(1)
		_ = pc.SetMulticastTTL(1)
	}

	return conn, nil
}

func (s *Sender) groupAddr() *net.UDPAddr {
	if s.family == link.V6 {
		return transport.IPv6GroupAddr
	}
	return transport.IPv4GroupAddr
}

// decodeAnswers converts a response's answer records into Answer values.
func decodeAnswers(p *codec.Packet) []Answer {
	answers := make([]Answer, 0, len(p.Answers))

	for _, rr := range p.Answers {
		switch rr.Type {
		case codec.TypeA:
			if addr, ok := netip.AddrFromSlice(rr.RData); ok && len(rr.RData) == 4 {
				answers = append(answers, Answer{Type: rr.Type, Addr: addr})
			}
		case codec.TypeAAAA:
			if addr, ok := netip.AddrFromSlice(rr.RData); ok && len(rr.RData) == 16 {
				answers = append(answers, Answer{Type: rr.Type, Addr: addr})
			}
		case codec.TypePTR:
			// PTR RDATA our own codec produces is always an
			// uncompressed name (codec.Encode never emits
			// compression pointers), so it decodes standalone
			// without needing the surrounding message bytes.
			name, err := codec.DecodeNameAt(rr.RData, 0)
			if err != nil {
				answers = append(answers, Answer{Type: rr.Type, Raw: rr.RData})
				continue
			}
			answers = append(answers, Answer{Type: rr.Type, Name: name.String()})
		default:
			answers = append(answers, Answer{Type: rr.Type, Raw: rr.RData})
		}
	}

	return answers
}
