// Package transport owns the UDP multicast sockets and TCP listeners
// LLMNR uses on the wire.
package transport

import (
	"net/netip"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/mjsolti/llmnrd/link"
)

// SocketSet owns the live sockets backing a Responder: one UDP
// multicast socket per IP family (bound to the wildcard address, joined
// to the LLMNR group on every interface that currently carries an
// address of that family), and one TCP listener per specific configured
// address
type SocketSet struct {
	logger logging.Logger
	queue  chan *Query

	udpV4 *udpV4Socket
	udpV6 *udpV6Socket

	tcp map[netip.Addr]*tcpListener
}

// NewSocketSet creates an empty SocketSet. Call Refresh to open sockets.
func NewSocketSet(logger logging.Logger) *SocketSet {
	return &SocketSet{
		logger: logger,
		queue:  make(chan *Query, 64),
		tcp:    map[netip.Addr]*tcpListener{},
	}
}

// Queries returns the channel of inbound queries from all live sockets.
func (s *SocketSet) Queries() <-chan *Query {
	return s.queue
}

// Refresh reconciles the live sockets against the given link snapshot:
// it opens the UDP multicast sockets the first time any address of a
// family is seen, (re)joins the multicast group on any newly-present
// interfaces, opens a TCP listener for each newly configured address,
// and closes TCP listeners for addresses that are no longer configured.
// Bind failures are logged and retried on the next call; they do not
// abort the refresh.
func (s *SocketSet) Refresh(links []link.Link) {
	s.refreshUDP(links)
	s.refreshTCP(links)
}

func (s *SocketSet) refreshUDP(links []link.Link) {
	v4Names := linkNames(links, link.V4)
	if len(v4Names) == 0 {
		if s.udpV4 != nil {
			s.udpV4.close()
			s.udpV4 = nil
		}
	} else {
		if s.udpV4 == nil {
			sock, err := newUDPV4Socket(s.logger)
			if err != nil {
				logging.Log(s.logger, "transport: %s", err)
			} else {
				s.udpV4 = sock
				go s.pump(sock, link.V4)
			}
		}
		if s.udpV4 != nil {
			if err := s.udpV4.syncGroups(interfacesFor(v4Names, s.logger)); err != nil {
				logging.Log(s.logger, "transport: %s", err)
			}
		}
	}

	v6Names := linkNames(links, link.V6)
	if len(v6Names) == 0 {
		if s.udpV6 != nil {
			s.udpV6.close()
			s.udpV6 = nil
		}
	} else {
		if s.udpV6 == nil {
			sock, err := newUDPV6Socket(s.logger)
			if err != nil {
				logging.Log(s.logger, "transport: %s", err)
			} else {
				s.udpV6 = sock
				go s.pump(sock, link.V6)
			}
		}
		if s.udpV6 != nil {
			if err := s.udpV6.syncGroups(interfacesFor(v6Names, s.logger)); err != nil {
				logging.Log(s.logger, "transport: %s", err)
			}
		}
	}
}

func (s *SocketSet) refreshTCP(links []link.Link) {
	wanted := map[netip.Addr]link.Family{}
	for _, l := range links {
		for _, a := range l.V4 {
			wanted[a] = link.V4
		}
		for _, a := range l.V6 {
			wanted[a] = link.V6
		}
	}

	for addr, family := range wanted {
		if _, ok := s.tcp[addr]; ok {
			continue
		}
		ln, err := listenTCP(addr, family, s.logger, s.queue)
		if err != nil {
			logging.Log(s.logger, "transport: %s", err)
			continue
		}
		s.tcp[addr] = ln
	}

	for addr, ln := range s.tcp {
		if _, ok := wanted[addr]; ok {
			continue
		}
		if err := ln.close(); err != nil {
			logging.Log(s.logger, "transport: closing tcp listener for %s: %s", addr, err)
		}
		delete(s.tcp, addr)
	}
}

func (s *SocketSet) pump(sock datagramSocket, family link.Family) {
	for {
		data, src, multicast, err := sock.read()
		if err != nil {
			logging.Log(s.logger, "transport: udp read (%s): %s", family, err)
			return
		}

		s.queue <- &Query{
			Data:      data,
			Family:    family,
			Multicast: multicast,
			Source:    src,
			replyFn: func(resp []byte) error {
				return sock.write(resp, src)
			},
		}
	}
}

// Close closes every live socket.
func (s *SocketSet) Close() error {
	if s.udpV4 != nil {
		s.udpV4.close()
	}
	if s.udpV6 != nil {
		s.udpV6.close()
	}
	for _, ln := range s.tcp {
		ln.close()
	}
	return nil
}
