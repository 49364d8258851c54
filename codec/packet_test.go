package codec_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/miekg/dns"

	"github.com/mjsolti/llmnrd/codec"
)

// scenario1Bytes is a minimal one-question query: ID 0x0023, no
// flags set, question "aa.bb.cc" IN A.
var scenario1Bytes = []byte{
	0x00, 0x23, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x61, 0x61, 0x02, 0x62, 0x62, 0x02, 0x63, 0x63, 0x00, 0x00, 0x01, 0x00, 0x01,
}

var _ = Describe("Decode", func() {
	It("decodes a one-question packet", func() {
		p, err := codec.Decode(scenario1Bytes)
		Expect(err).NotTo(HaveOccurred())

		Expect(p.ID).To(Equal(uint16(0x0023)))
		Expect(p.Flags.QR).To(BeFalse())
		Expect(p.Flags.Opcode).To(Equal(uint8(0)))
		Expect(p.Questions).To(HaveLen(1))
		Expect(p.Questions[0].Name.String()).To(Equal("aa.bb.cc"))
		Expect(p.Questions[0].Type).To(Equal(codec.TypeA))
		Expect(p.Questions[0].Class).To(Equal(codec.ClassIN))
	})

	It("fails with ErrShortBuffer for a header shorter than 12 bytes", func() {
		_, err := codec.Decode(scenario1Bytes[:11])
		Expect(err).To(MatchError(codec.ErrShortBuffer))
	})

	It("fails with ErrSectionCountMismatch when QDCOUNT overstates the question section", func() {
		bad := append([]byte(nil), scenario1Bytes...)
		binary.BigEndian.PutUint16(bad[4:6], 2) // claim two questions, only one present
		_, err := codec.Decode(bad)
		Expect(err).To(MatchError(codec.ErrSectionCountMismatch))
	})

	It("fails with ErrBadPointer on a pointer that loops back to itself", func() {
		data := []byte{
			0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0xc0, 0x0c, // pointer at offset 12 pointing to itself
			0x00, 0x01, 0x00, 0x01,
		}
		_, err := codec.Decode(data)
		Expect(err).To(MatchError(codec.ErrBadPointer))
	})
})

var _ = Describe("Encode", func() {
	It("round-trips a decoded packet back through Encode", func() {
		p, err := codec.Decode(scenario1Bytes)
		Expect(err).NotTo(HaveOccurred())

		raw, err := codec.Encode(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(raw)).To(BeNumerically(">=", 12))
		Expect(len(raw)).To(BeNumerically("<=", 26))

		decoded, err := codec.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(p))
	})

	It("produces bytes a miekg/dns Msg can parse", func() {
		p := &codec.Packet{
			ID: 7,
			Questions: []codec.Question{
				{Name: codec.Name{"host", "local"}, Type: codec.TypeA, Class: codec.ClassIN},
			},
			Answers: []codec.ResourceRecord{
				{
					Name:  codec.Name{"host", "local"},
					Type:  codec.TypeA,
					Class: codec.ClassIN,
					TTL:   30,
					RData: []byte{10, 0, 0, 7},
				},
			},
		}
		p.Flags.QR = true

		raw, err := codec.Encode(p)
		Expect(err).NotTo(HaveOccurred())

		var m dns.Msg
		Expect(m.Unpack(raw)).To(Succeed())
		Expect(m.Id).To(Equal(uint16(7)))
		Expect(m.Response).To(BeTrue())
		Expect(m.Question).To(HaveLen(1))
		Expect(m.Question[0].Name).To(Equal("host.local."))
		Expect(m.Answer).To(HaveLen(1))
		a, ok := m.Answer[0].(*dns.A)
		Expect(ok).To(BeTrue())
		Expect(a.A.String()).To(Equal("10.0.0.7"))
	})

	It("decodes a packet built and packed by miekg/dns", func() {
		m := new(dns.Msg)
		m.Id = 42
		m.Question = []dns.Question{{Name: "host.local.", Qtype: dns.TypeAAAA, Qclass: dns.ClassINET}}

		raw, err := m.Pack()
		Expect(err).NotTo(HaveOccurred())

		p, err := codec.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ID).To(Equal(uint16(42)))
		Expect(p.Questions).To(HaveLen(1))
		Expect(p.Questions[0].Name.String()).To(Equal("host.local"))
		Expect(p.Questions[0].Type).To(Equal(codec.TypeAAAA))
	})
})

var _ = Describe("OPCODE extraction", func() {
	It("masks before shifting, not shifting the mask itself", func() {
		// flags = 0111 1000 0000 0000 => OPCODE nibble is 0xf at bits 14..11
		raw := append([]byte(nil), scenario1Bytes...)
		binary.BigEndian.PutUint16(raw[2:4], 0x7800)

		p, err := codec.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Flags.Opcode).To(Equal(uint8(0x0f)))
	})
})
