package transport

import "sync"

// bufferSize is large enough for any LLMNR datagram; LLMNR payloads are
// small (single-label questions, few answers) but we size generously to
// tolerate fragmented-but-reassembled jumbo datagrams.
const bufferSize = 9194

var buffers = sync.Pool{
	New: func() interface{} {
		return make([]byte, bufferSize)
	},
}

func getBuffer() []byte {
	return buffers.Get().([]byte)
}

func putBuffer(buf []byte) {
	if cap(buf) >= bufferSize {
		buffers.Put(buf[:bufferSize])
	}
}
