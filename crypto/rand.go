package crypto

import (
	"io"
	"sync"
)

// lockedReader serializes reads from a reader that is not safe for
// concurrent use.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

// NewLockedReader returns a reader that can be shared between goroutines.
// Reads from r are serialized; interleaving between callers is unspecified,
// so a deterministic r stays deterministic only for a single caller.
func NewLockedReader(r io.Reader) io.Reader {
	if lr, ok := r.(*lockedReader); ok {
		return lr
	}
	return &lockedReader{r: r}
}

func (lr *lockedReader) Read(p []byte) (int, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Read(p)
}
