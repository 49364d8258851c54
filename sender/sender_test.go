package sender_test

import (
	"context"
	"net"
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mjsolti/llmnrd/codec"
	"github.com/mjsolti/llmnrd/link"
	"github.com/mjsolti/llmnrd/sender"
)

// fakeTCPServer listens on 127.0.0.3 at the LLMNR port, which is the port
// Ask always dials, accepts a single connection, decodes the query it
// carries, and writes back raw reply (no length prefix) before closing
// the connection -- mirroring the responder's own TCP framing.
func fakeTCPServer(reply func(q *codec.Packet) []byte) net.Addr {
	ln, err := net.Listen("tcp", "127.0.0.3:5355")
	Expect(err).NotTo(HaveOccurred())

	go func() {
		conn, err := ln.Accept()
		ln.Close()
		if err != nil {
			return
		}
		defer conn.Close()

		data := make([]byte, 9194)
		n, _ := conn.Read(data)

		q, err := codec.Decode(data[:n])
		if err != nil {
			return
		}

		resp := reply(q)
		if resp != nil {
			conn.Write(resp)
		}
	}()

	return ln.Addr()
}

var _ = Describe("Sender", func() {
	var s *sender.Sender

	BeforeEach(func() {
		var err error
		s, err = sender.New(link.V4, sender.WithJitterInterval(0))
		Expect(err).NotTo(HaveOccurred())
	})

	It("decodes an A answer returned over TCP", func() {
		addr := fakeTCPServer(func(q *codec.Packet) []byte {
			resp := &codec.Packet{
				ID:    q.ID,
				Flags: codec.Flags{QR: true},
				Questions: q.Questions,
				Answers: []codec.ResourceRecord{
					{Name: q.Questions[0].Name, Type: codec.TypeA, Class: codec.ClassIN, TTL: 30, RData: net.ParseIP("10.1.2.3").To4()},
				},
			}
			data, err := codec.Encode(resp)
			Expect(err).NotTo(HaveOccurred())
			return data
		})

		tcpAddr := addr.(*net.TCPAddr)
		server := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.3"), uint16(tcpAddr.Port)).Addr()

		answers, err := s.Ask(context.Background(), "host.local", codec.TypeA, &server)
		Expect(err).NotTo(HaveOccurred())
		Expect(answers).To(HaveLen(1))
		Expect(answers[0].Addr.String()).To(Equal("10.1.2.3"))
	})

	It("invokes the conflict handler when a TCP response carries the C bit", func() {
		addr := fakeTCPServer(func(q *codec.Packet) []byte {
			resp := &codec.Packet{ID: q.ID, Flags: codec.Flags{QR: true, C: true}}
			data, err := codec.Encode(resp)
			Expect(err).NotTo(HaveOccurred())
			return data
		})

		tcpAddr := addr.(*net.TCPAddr)
		server := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.3"), uint16(tcpAddr.Port)).Addr()

		called := false
		s, err := sender.New(link.V4,
			sender.WithJitterInterval(0),
			sender.WithConflictHandler(func(hostname string) ([]sender.Answer, error) {
				called = true
				return nil, nil
			}),
		)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Ask(context.Background(), "host.local", codec.TypeA, &server)
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeTrue())
	})

	It("returns ErrNoResponse when the TCP peer never replies", func() {
		ln, err := net.Listen("tcp", "127.0.0.3:5355")
		Expect(err).NotTo(HaveOccurred())
		go func() {
			conn, err := ln.Accept()
			ln.Close()
			if err == nil {
				conn.Close()
			}
		}()

		tcpAddr := ln.Addr().(*net.TCPAddr)
		server := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.3"), uint16(tcpAddr.Port)).Addr()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err = s.Ask(ctx, "host.local", codec.TypeA, &server)
		Expect(err).To(Equal(sender.ErrNoResponse))
	})

	It("resolves a PTR query's hostname to a reverse-zone name", func() {
		addr := fakeTCPServer(func(q *codec.Packet) []byte {
			Expect(q.Questions).To(HaveLen(1))
			Expect(q.Questions[0].Name.String()).To(Equal("4.3.2.1.in-addr.arpa"))
			Expect(q.Questions[0].Type).To(Equal(codec.TypePTR))

			target, err := codec.ParseName("host.local")
			Expect(err).NotTo(HaveOccurred())
			rdata, err := codec.EncodeName(target)
			Expect(err).NotTo(HaveOccurred())

			resp := &codec.Packet{
				ID: q.ID, Flags: codec.Flags{QR: true},
				Answers: []codec.ResourceRecord{
					{Name: q.Questions[0].Name, Type: codec.TypePTR, Class: codec.ClassIN, TTL: 30, RData: rdata},
				},
			}
			data, err := codec.Encode(resp)
			Expect(err).NotTo(HaveOccurred())
			return data
		})

		tcpAddr := addr.(*net.TCPAddr)
		server := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.3"), uint16(tcpAddr.Port)).Addr()

		answers, err := s.Ask(context.Background(), "1.2.3.4", codec.TypePTR, &server)
		Expect(err).NotTo(HaveOccurred())
		Expect(answers).To(HaveLen(1))
		Expect(answers[0].Name).To(Equal("host.local"))
	})
})
