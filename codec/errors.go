package codec

import "errors"

// Sentinel errors returned by Decode and the name decoder. Callers should
// use errors.Is to test for a particular failure; wrapped context (offsets,
// counts) is attached with %w so the sentinel survives.
var (
	// ErrShortBuffer is returned when the input is too short to contain the
	// field currently being decoded.
	ErrShortBuffer = errors.New("codec: buffer too short")

	// ErrBadPointer is returned when a name compression pointer is
	// out-of-range, or revisits an offset already seen while decoding the
	// same name (a pointer loop).
	ErrBadPointer = errors.New("codec: bad compression pointer")

	// ErrNameTooLong is returned when a decoded or encoded name would
	// exceed 127 labels or 255 bytes (length prefixes and the terminating
	// zero byte included).
	ErrNameTooLong = errors.New("codec: name too long")

	// ErrBadLabelLength is returned when a label length byte is out of the
	// 1..63 range for an ordinary label, and is not a compression pointer.
	ErrBadLabelLength = errors.New("codec: bad label length")

	// ErrSectionCountMismatch is returned by Decode when a header's
	// QDCOUNT/ANCOUNT/NSCOUNT/ARCOUNT claims more entries than the message
	// holds, and by Encode when a section has too many entries for its
	// 16-bit count field.
	ErrSectionCountMismatch = errors.New("codec: section count mismatch")
)
