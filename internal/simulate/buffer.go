package simulate

// chunkBuffer keeps the most recent chunks up to a fixed capacity and evicts
// the oldest first. It is not safe for concurrent use.
type chunkBuffer struct {
	chunks [][]float64
	limit  int
}

func newChunkBuffer(limit int) *chunkBuffer {
	if limit <= 0 {
		limit = 1
	}
	return &chunkBuffer{chunks: make([][]float64, 0, limit), limit: limit}
}

// push appends c and reports whether the oldest chunk was evicted.
func (b *chunkBuffer) push(c []float64) bool {
	if len(b.chunks) < b.limit {
		b.chunks = append(b.chunks, c)
		return false
	}
	copy(b.chunks, b.chunks[1:])
	b.chunks[len(b.chunks)-1] = c
	return true
}

func (b *chunkBuffer) len() int {
	return len(b.chunks)
}

func (b *chunkBuffer) bytes() uint64 {
	var n uint64
	for _, c := range b.chunks {
		n += uint64(len(c)) * 8
	}
	return n
}
