package transport

import (
	"net"

	"github.com/mjsolti/llmnrd/link"
)

// Query is a single inbound LLMNR message together with however much
// context the Responder needs to validate and reply to it.
type Query struct {
	// Data is the raw wire bytes received.
	Data []byte

	// Family is the IP family the message arrived on.
	Family link.Family

	// Multicast is true if the message was received as a UDP datagram
	// addressed to the LLMNR multicast group. It is always true for TCP
	// queries, which by construction are unicast-addressed to us and are
	// exempt from the rule against answering unicast UDP queries -- that
	// rule applies only to the UDP transport.
	Multicast bool

	// Source is the address the query was received from.
	Source *net.UDPAddr

	replyFn func([]byte) error
	closeFn func()
}

// Reply sends data back to the query's origin, on the same transport it
// arrived on: a UDP datagram reply to the source address, or a write on
// the originating TCP connection.
func (q *Query) Reply(data []byte) error {
	return q.replyFn(data)
}

// Close releases any resources (e.g. the TCP connection) associated with
// the query. It is a no-op for UDP queries.
func (q *Query) Close() {
	if q.closeFn != nil {
		q.closeFn()
	}
}
