package httpclient

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is the value requests should send when they want
// compressed responses decoded through DecodeBody.
const AcceptEncoding = "gzip, br"

// DecodeBody wraps resp.Body with the decoder matching the response's
// Content-Encoding. The returned ReadCloser closes the underlying body.
func DecodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch enc := strings.TrimSpace(resp.Header.Get("Content-Encoding")); enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return &decodedBody{r: zr, underlying: resp.Body}, nil
	case "br":
		return &decodedBody{r: brotli.NewReader(resp.Body), underlying: resp.Body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

type decodedBody struct {
	r          io.Reader
	underlying io.Closer
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *decodedBody) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		if err := c.Close(); err != nil {
			b.underlying.Close()
			return err
		}
	}
	return b.underlying.Close()
}
