package transport

import (
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/mjsolti/llmnrd/link"
)

// maxTCPMessage bounds how much we will read from a single TCP query: a
// peer that keeps sending without half-closing is cut off at this size.
// No read deadline is set, so a peer that stops sending without
// half-closing holds its connection open.
const maxTCPMessage = 9194

// tcpListener wraps a TCP listener bound to one specific address --
// unlike the UDP sockets, which bind to the wildcard address.
type tcpListener struct {
	ln     net.Listener
	family link.Family
	logger logging.Logger
	queue  chan<- *Query
	done   chan struct{}
}

func listenTCP(addr netip.Addr, family link.Family, logger logging.Logger, queue chan<- *Query) (*tcpListener, error) {
	tcpAddr := &net.TCPAddr{IP: addr.AsSlice(), Port: portNumber, Zone: addr.Zone()}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", tcpAddr, err)
	}

	l := &tcpListener{
		ln:     ln,
		family: family,
		logger: logger,
		queue:  queue,
		done:   make(chan struct{}),
	}

	go l.accept()

	return l, nil
}

func (l *tcpListener) accept() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				logging.Log(l.logger, "transport: tcp accept on %s: %s", l.ln.Addr(), err)
				return
			}
		}

		setReplyTTL(conn, l.family, l.logger)
		go l.serve(conn)
	}
}

// setReplyTTL sets the IP TTL (or IPv6 hop limit) on conn to 1, so that
// responder replies never leak off-link. Failure is logged, not fatal --
// the connection is still served.
func setReplyTTL(conn net.Conn, family link.Family, logger logging.Logger) {
	var err error
	if family == link.V6 {
		err = ipv6.NewConn(conn).SetHopLimit(1)
	} else {
		err = ipv4.NewConn(conn).SetTTL(1)
	}
	if err != nil {
		logging.Log(logger, "transport: set tcp reply ttl on %s: %s", conn.RemoteAddr(), err)
	}
}

// serve reads a single LLMNR message from conn. TCP messages carry no
// length prefix -- the peer's half-close (FIN) signals the end of the
// message, so we read until EOF.
func (l *tcpListener) serve(conn net.Conn) {
	data, err := io.ReadAll(io.LimitReader(conn, maxTCPMessage))
	if err != nil {
		conn.Close()
		return
	}
	if len(data) == 0 {
		conn.Close()
		return
	}

	var src *net.UDPAddr
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		src = &net.UDPAddr{IP: tcpAddr.IP, Port: tcpAddr.Port, Zone: tcpAddr.Zone}
	}

	replied := false
	q := &Query{
		Data:      data,
		Family:    l.family,
		Multicast: true,
		Source:    src,
		replyFn: func(resp []byte) error {
			replied = true
			_, err := conn.Write(resp)
			conn.Close()
			return err
		},
		closeFn: func() {
			if !replied {
				conn.Close()
			}
		},
	}

	select {
	case l.queue <- q:
	case <-l.done:
		conn.Close()
	}
}

func (l *tcpListener) close() error {
	close(l.done)
	return l.ln.Close()
}
