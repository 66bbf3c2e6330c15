package qrcode

import (
	"context"
	"fmt"
	"time"

	qr "github.com/skip2/go-qrcode"
)

// Encoder renders a redemption URL into a displayable artifact. The engine
// treats encoding as an external side effect: implementations may rasterize
// locally or call out to a rendering service.
type Encoder interface {
	EncodePNG(ctx context.Context, content string, size int) ([]byte, error)
}

type pngEncoder struct {
	timeout time.Duration
}

// NewPNGEncoder returns an Encoder that rasterizes locally. Every call is
// bounded by the given timeout.
func NewPNGEncoder(timeout time.Duration) Encoder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &pngEncoder{timeout: timeout}
}

func (e *pngEncoder) EncodePNG(ctx context.Context, content string, size int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if size <= 0 {
		size = 256
	}

	type result struct {
		png []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		png, err := qr.Encode(content, qr.Medium, size)
		done <- result{png: png, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("qr encode timed out: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("qr encode failed: %w", res.err)
		}
		return res.png, nil
	}
}
