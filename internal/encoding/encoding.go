// Package encoding decodes response bodies declared with a gzip or deflate
// Content-Encoding.
package encoding

import (
	"bufio"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Supported reports whether contentEncoding is one Decode understands.
func Supported(contentEncoding string) bool {
	switch normalize(contentEncoding) {
	case "gzip", "x-gzip", "deflate":
		return true
	}
	return false
}

// Decode wraps body so that reads return the decoded bytes. Encodings other
// than gzip and deflate return body unchanged.
//
// The decoder is created on the first Read, so an empty body (as sent with
// HEAD or 204 responses) decodes to an empty stream instead of failing.
func Decode(contentEncoding string, body io.ReadCloser) io.ReadCloser {
	switch normalize(contentEncoding) {
	case "gzip", "x-gzip":
		return &decoder{src: body, open: openGzip}
	case "deflate":
		return &decoder{src: body, open: openDeflate}
	default:
		return body
	}
}

func normalize(contentEncoding string) string {
	return strings.ToLower(strings.TrimSpace(contentEncoding))
}

func openGzip(r io.Reader) (io.Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr, nil
}

// openDeflate accepts both zlib wrapped streams, which is what the deflate
// coding means, and raw deflate streams, which some servers send instead.
func openDeflate(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil {
		if err == io.EOF && len(head) > 0 {
			// A single byte cannot hold a zlib header or a complete deflate block.
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if isZlibHeader(head[0], head[1]) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

type decoder struct {
	src  io.ReadCloser
	open func(io.Reader) (io.Reader, error)
	r    io.Reader
	err  error
}

func (d *decoder) Read(p []byte) (int, error) {
	if d.r == nil && d.err == nil {
		d.r, d.err = d.open(d.src)
		switch {
		case d.err == io.EOF:
			d.r, d.err = strings.NewReader(""), nil
		case d.err != nil:
			d.err = errors.Wrap(d.err, "decoding response body")
		}
	}
	if d.err != nil {
		return 0, d.err
	}
	return d.r.Read(p)
}

func (d *decoder) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		c.Close()
	}
	return d.src.Close()
}
