// Package media accumulates captured fragments and assembles the final
// recording artifact.
package media

import "sync"

// Buffer is an append-only ordered sequence of media fragments. It is
// single-use: Finalize seals it, and sealed buffers silently discard any
// late fragment still in flight from the capture side.
type Buffer struct {
	mu        sync.Mutex
	fragments [][]byte
	size      int
	sealed    bool
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append copies one fragment into the buffer in arrival order. It reports
// false when the fragment was discarded because the buffer is sealed.
func (b *Buffer) Append(fragment []byte) bool {
	if len(fragment) == 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}

	buf := make([]byte, len(fragment))
	copy(buf, fragment)
	b.fragments = append(b.fragments, buf)
	b.size += len(buf)
	return true
}

// Len returns the number of buffered fragments.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// Size returns the total buffered byte count.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Sealed reports whether the buffer has been finalized.
func (b *Buffer) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Finalize concatenates all fragments in arrival order into one object,
// seals the buffer, and releases the fragment storage. Calling Finalize on
// a sealed buffer returns nil.
func (b *Buffer) Finalize() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil
	}
	b.sealed = true

	out := make([]byte, 0, b.size)
	for _, fragment := range b.fragments {
		out = append(out, fragment...)
	}
	b.fragments = nil
	b.size = 0
	return out
}
