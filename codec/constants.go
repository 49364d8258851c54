package codec

// DNS resource record types used by LLMNR. Values are the standard
// RFC 1035 / RFC 1035-successor assignments.
const (
	TypeA    uint16 = 1
	TypePTR  uint16 = 12
	TypeAAAA uint16 = 28
	TypeANY  uint16 = 255
)

// ClassIN is the Internet resource record class, the only one LLMNR uses.
const ClassIN uint16 = 1

// Port is the LLMNR port number.
const Port = 5355
