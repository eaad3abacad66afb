package edbq

import "sync"

var indexRowsPool = &sync.Pool{
	New: func() any {
		return make(indexRows, 0, 16)
	},
}

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func releaseValueBytes(b []byte) {
	valueBytesPool.Put(b[:0])
}

var emptyIndexValue = []byte{}
