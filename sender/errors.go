package sender

import "errors"

var (
	// ErrBadHostname is returned by Ask when a PTR query's hostname is
	// neither already a reverse-zone name nor a parseable IPv4/IPv6
	// address.
	ErrBadHostname = errors.New("sender: hostname is not a valid address or reverse-zone name")

	// ErrNoResponse is returned when the UDP collection window ends with
	// no response, or when the TCP peer closes the connection without
	// sending one. A TCP dial or read timeout is returned as a wrapped
	// network error instead.
	ErrNoResponse = errors.New("sender: no response")

	// ErrNoIPv6Link is returned by a TCP query to a link-local IPv6 server
	// given without a zone when no UP IPv6 link is available to supply a
	// zone index.
	ErrNoIPv6Link = errors.New("sender: no UP IPv6 link available for zone resolution")
)
