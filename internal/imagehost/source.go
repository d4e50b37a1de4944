package imagehost

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// Blob is a decoded image ready to be stored.
type Blob struct {
	Data        []byte
	ContentType string
	Ext         string
}

// extensions maps the image types http.DetectContentType recognises to the
// file extension used for storage.
var extensions = map[string]string{
	"image/png":    ".png",
	"image/jpeg":   ".jpg",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/x-icon": ".ico",
}

// Decoder turns the client's image field into bytes.
//
// Remote images are fetched with a safeurl client: only http and https on
// ports 80 and 443, and private, loopback and link-local addresses are
// refused after DNS resolution.
type Decoder struct {
	client   *http.Client
	maxBytes int64
}

// DecoderOption customises a Decoder.
type DecoderOption func(*Decoder)

// WithHTTPClient replaces the SSRF-guarded client. Tests use it to reach an
// httptest server on loopback.
func WithHTTPClient(c *http.Client) DecoderOption {
	return func(d *Decoder) { d.client = c }
}

// NewDecoder returns a Decoder that accepts images up to maxBytes and gives
// remote fetches fetchTimeout to complete.
func NewDecoder(maxBytes int64, fetchTimeout time.Duration, opts ...DecoderOption) *Decoder {
	config := safeurl.GetConfigBuilder().
		SetTimeout(fetchTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	d := &Decoder{
		client:   safeurl.Client(config).Client,
		maxBytes: maxBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads src, which is either a base64 data URI
// ("data:image/png;base64,iVBOR...") or an http(s) URL. The content type is
// sniffed from the bytes; the declared one is ignored. Every failure caused
// by the input wraps ErrInvalidImage.
func (d *Decoder) Decode(ctx context.Context, src string) (*Blob, error) {
	src = strings.TrimSpace(src)

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err = d.fromDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		data, err = d.fetch(ctx, src)
	default:
		return nil, fmt.Errorf("%w: expected a data URI or an http(s) URL", ErrInvalidImage)
	}
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidImage, contentType)
	}

	return &Blob{Data: data, ContentType: contentType, Ext: ext}, nil
}

func (d *Decoder) fromDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data URI must be base64 encoded", ErrInvalidImage)
	}

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > d.maxBytes+2 {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, d.maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, d.maxBytes)
	}
	return data, nil
}

func (d *Decoder) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fetching: %v", ErrInvalidImage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching: status %d", ErrInvalidImage, resp.StatusCode)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading: %v", ErrInvalidImage, err)
	}
	if n > d.maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, d.maxBytes)
	}
	return buf.Bytes(), nil
}
