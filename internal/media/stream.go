package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultChunkSize is the read size used by Stream when none is given.
const DefaultChunkSize = 64 * 1024

// ErrLimitExceeded is returned by Collect when the source yields more bytes
// than allowed.
var ErrLimitExceeded = errors.New("byte ceiling exceeded")

// Chunk is one read from a source.
type Chunk struct {
	Sequence int64
	Payload  []byte
}

// Stream reads r on a separate goroutine and emits its content as chunks.
// The sequence is finite and cannot be restarted: both channels close when r
// is exhausted, fails, or ctx is cancelled.
func Stream(ctx context.Context, r io.Reader, chunkSize int) (<-chan Chunk, <-chan error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := make(chan Chunk, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		buf := make([]byte, chunkSize)
		var sequence int64
		for {
			if ctx.Err() != nil {
				return
			}

			n, readErr := r.Read(buf)
			if n > 0 {
				payload := make([]byte, n)
				copy(payload, buf[:n])
				select {
				case <-ctx.Done():
					return
				case chunks <- Chunk{Sequence: sequence, Payload: payload}:
				}
				sequence++
			}
			if errors.Is(readErr, io.EOF) {
				return
			}
			if readErr != nil {
				if ctx.Err() == nil {
					errs <- readErr
				}
				return
			}
		}
	}()

	return chunks, errs
}

// LimitError reports how far a transfer got before it was aborted.
type LimitError struct {
	Limit int64
	Read  int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: read %d bytes, limit %d", ErrLimitExceeded, e.Read, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// Collect drains rc into memory, enforcing limit as data arrives. When the
// running total passes limit the producer is cancelled and rc is closed so
// the underlying transfer stops. rc is always closed on return.
func Collect(ctx context.Context, rc io.ReadCloser, limit int64) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	closeSource := sync.OnceFunc(func() { _ = rc.Close() })
	defer closeSource()

	chunks, errs := Stream(ctx, rc, DefaultChunkSize)

	var (
		out   []byte
		total int64
	)
	for chunk := range chunks {
		total += int64(len(chunk.Payload))
		if limit > 0 && total > limit {
			cancel()
			closeSource()
			for range chunks {
			}
			return nil, &LimitError{Limit: limit, Read: total}
		}
		out = append(out, chunk.Payload...)
	}

	if err := <-errs; err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
