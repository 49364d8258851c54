package codec

import "encoding/binary"

const headerSize = 12

// Flags holds the LLMNR reinterpretation of the DNS header's flag word.
type Flags struct {
	// QR is true for a response, false for a query.
	QR bool

	// Opcode must be 0 (standard query) for LLMNR.
	Opcode uint8

	// C indicates a name conflict was detected by the responder sending
	// this packet.
	C bool

	// TC indicates the response was truncated and the querier should
	// retry over TCP.
	TC bool

	// T indicates a tentative response (name still being verified).
	T bool

	// Rcode is the 4-bit response code; 0 on success.
	Rcode uint8
}

func (f Flags) pack() uint16 {
	var v uint16

	if f.QR {
		v |= 1 << 15
	}
	v |= uint16(f.Opcode&0x0f) << 11
	if f.C {
		v |= 1 << 10
	}
	if f.TC {
		v |= 1 << 9
	}
	if f.T {
		v |= 1 << 8
	}
	// bits 7..4 are reserved (Z) and always zero on send.
	v |= uint16(f.Rcode & 0x0f)

	return v
}

func unpackFlags(v uint16) Flags {
	return Flags{
		QR: v&(1<<15) != 0,
		// OPCODE is bits 14..11: shift them down, then keep four bits,
		// which equals (v & 0x7800) >> 11. A naive "flags & 0x78 >> 3" on
		// the first flag byte computes flags & (0x78 >> 3) == flags & 0x0f
		// under normal operator precedence, silently reading the wrong bits.
		Opcode: uint8((v >> 11) & 0x0f),
		C:      v&(1<<10) != 0,
		TC:     v&(1<<9) != 0,
		T:      v&(1<<8) != 0,
		Rcode:  uint8(v & 0x0f),
	}
}

type header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:2], h.ID)
	binary.BigEndian.PutUint16(buf[2:4], h.Flags.pack())
	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
	return buf
}

func decodeHeader(data []byte) (header, error) {
	if len(data) < headerSize {
		return header{}, ErrShortBuffer
	}

	return header{
		ID:      binary.BigEndian.Uint16(data[0:2]),
		Flags:   unpackFlags(binary.BigEndian.Uint16(data[2:4])),
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}, nil
}
