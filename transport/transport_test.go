package transport_test

import (
	"io"
	"net"
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mjsolti/llmnrd/link"
	"github.com/mjsolti/llmnrd/transport"
)

var _ = Describe("SocketSet", func() {
	It("opens a TCP listener for each configured address and answers a query", func() {
		addr := netip.MustParseAddr("127.0.0.1")

		set := transport.NewSocketSet(nil)
		defer set.Close()

		set.Refresh([]link.Link{
			{Name: "lo", State: link.Up, V4: []netip.Addr{addr}},
		})

		conn, err := net.Dial("tcp", "127.0.0.1:5355")
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		payload := []byte{0xde, 0xad, 0xbe, 0xef}
		_, err = conn.Write(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.(*net.TCPConn).CloseWrite()).To(Succeed())

		var q *transport.Query
		select {
		case q = <-set.Queries():
		case <-time.After(time.Second):
			Fail("timed out waiting for query")
		}

		Expect(q.Data).To(Equal(payload))
		Expect(q.Family).To(Equal(link.V4))
		Expect(q.Multicast).To(BeTrue())

		Expect(q.Reply([]byte{0x01, 0x02})).To(Succeed())

		conn.SetReadDeadline(time.Now().Add(time.Second))
		reply, err := io.ReadAll(conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal([]byte{0x01, 0x02}))
	})

	It("closes TCP listeners for addresses no longer configured", func() {
		addr := netip.MustParseAddr("127.0.0.2")

		set := transport.NewSocketSet(nil)
		defer set.Close()

		set.Refresh([]link.Link{
			{Name: "lo", State: link.Up, V4: []netip.Addr{addr}},
		})

		_, err := net.Dial("tcp", "127.0.0.2:5355")
		Expect(err).NotTo(HaveOccurred())

		set.Refresh(nil)

		time.Sleep(50 * time.Millisecond)
		_, err = net.Dial("tcp", "127.0.0.2:5355")
		Expect(err).To(HaveOccurred())
	})
})
