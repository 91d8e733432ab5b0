package grpctransport

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// Zstd is the name of the zstd compressor registered with gRPC.
const Zstd = "zstd"

func init() {
	encoding.RegisterCompressor(&zstdCompressor{})
}

type zstdCompressor struct {
	encoders sync.Pool
}

func (c *zstdCompressor) Name() string { return Zstd }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, _ := c.encoders.Get().(*zstd.Encoder)
	if enc == nil {
		var err error
		enc, err = zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
	} else {
		enc.Reset(w)
	}
	return &pooledEncoder{Encoder: enc, pool: &c.encoders}, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &decoderReader{dec: dec}, nil
}

// pooledEncoder returns its encoder to the pool once the message is flushed.
type pooledEncoder struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (p *pooledEncoder) Close() error {
	err := p.Encoder.Close()
	p.pool.Put(p.Encoder)
	return err
}

// decoderReader releases the decoder when the message has been read.
type decoderReader struct {
	dec    *zstd.Decoder
	closed bool
}

func (r *decoderReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.EOF
	}
	n, err := r.dec.Read(p)
	if err == io.EOF {
		r.closed = true
		r.dec.Close()
	}
	return n, err
}
