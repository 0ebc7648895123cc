package prefixdb

import "sync"

// placeholderBufPool is a pool of reusable byte buffers for placeholder lists.
// 256 bytes covers an IN clause of 64 values without growing.
var placeholderBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Placeholders returns one "?" per element of values joined by " , ",
// e.g. "? , ? , ?" for three values, for building IN clauses and
// multi-row inserts. An empty slice yields "".
func Placeholders[T any](values []T) string {
	n := len(values)
	if n == 0 {
		return ""
	}

	// "?" per value plus " , " between each pair: n + 3(n-1).
	size := 4*n - 3

	p := placeholderBufPool.Get().(*[]byte)
	buf := *p
	if cap(buf) < size {
		buf = make([]byte, 0, size)
	} else {
		buf = buf[:0]
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, " , "...)
		}
		buf = append(buf, '?')
	}

	result := string(buf)

	*p = buf[:0]
	placeholderBufPool.Put(p)

	return result
}
