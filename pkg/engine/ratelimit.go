package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const maxBurst = 32 * 1024

// rateLimitedReader caps throughput at a fixed number of bytes per second.
type rateLimitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// LimitReader throttles r to bytesPerSecond, waiting under ctx. A limit of
// zero or less returns r unchanged.
func LimitReader(ctx context.Context, r io.Reader, bytesPerSecond int64) io.Reader {
	if bytesPerSecond <= 0 {
		return r
	}
	burst := int(min(bytesPerSecond, maxBurst))
	return &rateLimitedReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

func (l *rateLimitedReader) Read(p []byte) (int, error) {
	if len(p) > l.limiter.Burst() {
		p = p[:l.limiter.Burst()]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
