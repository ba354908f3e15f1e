package util

import "sync"

// MaxDatagramSize bounds a single frame on the remote transport (32 KiB).
const MaxDatagramSize = 32 * 1024

// datagramPool provides reusable receive buffers for the UDP loop, so a
// busy server does not allocate a fresh 32 KiB slice per datagram.
var datagramPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MaxDatagramSize)
		return &buf
	},
}

// GetBuf retrieves a MaxDatagramSize buffer from the pool.  Callers must
// return it with [PutBuf] when finished.
func GetBuf() *[]byte {
	return datagramPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers that were
// resliced below MaxDatagramSize are restored to full length.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) < MaxDatagramSize {
		return
	}
	*buf = (*buf)[:MaxDatagramSize]
	datagramPool.Put(buf)
}
