package codec_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mjsolti/llmnrd/codec"
)

var _ = Describe("Name", func() {
	Describe("ParseName", func() {
		It("splits a dotted string into labels", func() {
			n, err := codec.ParseName("aa.bb.cc")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(codec.Name{"aa", "bb", "cc"}))
		})

		It("tolerates a trailing dot", func() {
			n, err := codec.ParseName("host.local.")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(codec.Name{"host", "local"}))
		})

		It("rejects a label longer than 63 bytes", func() {
			_, err := codec.ParseName(strings.Repeat("a", 64) + ".arpa")
			Expect(err).To(MatchError(codec.ErrBadLabelLength))
		})

		It("rejects a name exceeding 255 encoded bytes", func() {
			label := strings.Repeat("a", 63)
			long := strings.Join([]string{label, label, label, label, label}, ".")
			_, err := codec.ParseName(long)
			Expect(err).To(MatchError(codec.ErrNameTooLong))
		})
	})

	Describe("EqualFold", func() {
		It("compares names case-insensitively", func() {
			a := codec.Name{"Host", "Local"}
			b := codec.Name{"host", "LOCAL"}
			Expect(a.EqualFold(b)).To(BeTrue())
		})

		It("is false for names of different length", func() {
			a := codec.Name{"host"}
			b := codec.Name{"host", "local"}
			Expect(a.EqualFold(b)).To(BeFalse())
		})
	})

	Describe("wire round-trip", func() {
		It("decodes what it encodes, for names with labels <= 63 bytes and total <= 255", func() {
			n := codec.Name{"aa", "bb", "cc"}
			p := &codec.Packet{
				Questions: []codec.Question{{Name: n, Type: codec.TypeA, Class: codec.ClassIN}},
			}

			raw, err := codec.Encode(p)
			Expect(err).NotTo(HaveOccurred())

			decoded, err := codec.Decode(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.Questions[0].Name).To(Equal(n))
		})
	})
})
