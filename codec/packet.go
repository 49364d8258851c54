package codec

import (
	"encoding/binary"
	"fmt"
)

// Question is a single entry in a packet's question section.
type Question struct {
	Name  Name
	Type  uint16
	Class uint16
}

// ResourceRecord is a single entry in a packet's answer, authority or
// additional section. RData is the opaque, wire-encoded record data;
// the core codec does not decompress names embedded within it -- see
// DecodeNameAt for a PTR-specific helper.
type ResourceRecord struct {
	Name  Name
	Type  uint16
	Class uint16
	TTL   uint32
	RData []byte
}

// Packet is a decoded (or to-be-encoded) LLMNR message.
//
// QDCOUNT/ANCOUNT/NSCOUNT/ARCOUNT are not stored directly: they are
// always derived from the length of the corresponding section slice, so
// the invariant "QDCOUNT == len(Questions)" holds by
// construction for any Packet built or decoded through this package.
type Packet struct {
	ID          uint16
	Flags       Flags
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// Encode serializes p to its wire form. Names are emitted uncompressed;
// Decode(Encode(p)) reproduces p's header fields and section contents
// exactly.
func Encode(p *Packet) ([]byte, error) {
	if len(p.Questions) > 0xffff || len(p.Answers) > 0xffff ||
		len(p.Authorities) > 0xffff || len(p.Additionals) > 0xffff {
		return nil, fmt.Errorf("%w: section too large to encode", ErrSectionCountMismatch)
	}

	buf := encodeHeader(header{
		ID:      p.ID,
		Flags:   p.Flags,
		QDCount: uint16(len(p.Questions)),
		ANCount: uint16(len(p.Answers)),
		NSCount: uint16(len(p.Authorities)),
		ARCount: uint16(len(p.Additionals)),
	})

	var err error
	for _, q := range p.Questions {
		buf, err = encodeQuestion(buf, q)
		if err != nil {
			return nil, err
		}
	}
	for _, sec := range [][]ResourceRecord{p.Answers, p.Authorities, p.Additionals} {
		for _, rr := range sec {
			buf, err = encodeRR(buf, rr)
			if err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

func encodeQuestion(buf []byte, q Question) ([]byte, error) {
	buf, err := encodeName(buf, q.Name)
	if err != nil {
		return nil, err
	}

	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], q.Type)
	binary.BigEndian.PutUint16(tail[2:4], q.Class)
	return append(buf, tail[:]...), nil
}

func encodeRR(buf []byte, rr ResourceRecord) ([]byte, error) {
	buf, err := encodeName(buf, rr.Name)
	if err != nil {
		return nil, err
	}

	var tail [10]byte
	binary.BigEndian.PutUint16(tail[0:2], rr.Type)
	binary.BigEndian.PutUint16(tail[2:4], rr.Class)
	binary.BigEndian.PutUint32(tail[4:8], rr.TTL)
	binary.BigEndian.PutUint16(tail[8:10], uint16(len(rr.RData)))
	buf = append(buf, tail[:]...)
	buf = append(buf, rr.RData...)

	return buf, nil
}

// Decode parses a wire-format LLMNR (or compatible RFC 1035 DNS) message.
func Decode(data []byte) (*Packet, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	p := &Packet{ID: h.ID, Flags: h.Flags}
	offset := headerSize

	p.Questions, offset, err = decodeQuestions(data, offset, int(h.QDCount))
	if err != nil {
		return nil, err
	}

	for _, dst := range []struct {
		count int
		out   *[]ResourceRecord
	}{
		{int(h.ANCount), &p.Answers},
		{int(h.NSCount), &p.Authorities},
		{int(h.ARCount), &p.Additionals},
	} {
		*dst.out, offset, err = decodeRRs(data, offset, dst.count)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

func decodeQuestions(data []byte, offset, count int) ([]Question, int, error) {
	questions := make([]Question, 0, count)

	for i := 0; i < count; i++ {
		if offset >= len(data) {
			return nil, 0, fmt.Errorf("%w: expected %d questions, got %d", ErrSectionCountMismatch, count, i)
		}

		name, n, err := decodeNameAt(data, offset)
		if err != nil {
			return nil, 0, err
		}
		offset += n

		if offset+4 > len(data) {
			return nil, 0, fmt.Errorf("%w: question type/class", ErrShortBuffer)
		}

		q := Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[offset : offset+2]),
			Class: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
		}
		offset += 4

		questions = append(questions, q)
	}

	return questions, offset, nil
}

func decodeRRs(data []byte, offset, count int) ([]ResourceRecord, int, error) {
	rrs := make([]ResourceRecord, 0, count)

	for i := 0; i < count; i++ {
		if offset >= len(data) {
			return nil, 0, fmt.Errorf("%w: expected %d records, got %d", ErrSectionCountMismatch, count, i)
		}

		name, n, err := decodeNameAt(data, offset)
		if err != nil {
			return nil, 0, err
		}
		offset += n

		if offset+10 > len(data) {
			return nil, 0, fmt.Errorf("%w: resource record header", ErrShortBuffer)
		}

		rr := ResourceRecord{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[offset : offset+2]),
			Class: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
			TTL:   binary.BigEndian.Uint32(data[offset+4 : offset+8]),
		}
		rdlength := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
		offset += 10

		if offset+rdlength > len(data) {
			return nil, 0, fmt.Errorf("%w: resource record data", ErrShortBuffer)
		}
		rr.RData = append([]byte(nil), data[offset:offset+rdlength]...)
		offset += rdlength

		rrs = append(rrs, rr)
	}

	return rrs, offset, nil
}

// DecodeNameAt decodes a DNS name embedded at offset within a full
// packet's raw bytes, following compression pointers against that same
// buffer. It is intended for decompressing RDATA that itself contains a
// name (e.g. a PTR record's target), which the core codec leaves opaque
// during Decode.
func DecodeNameAt(packetBytes []byte, offset int) (Name, error) {
	name, _, err := decodeNameAt(packetBytes, offset)
	return name, err
}
