// Package imagehost stores book cover images and hands back durable URLs.
//
// Two hosts are provided: Local writes files into a directory the API serves
// under /uploads/, and S3 writes objects into an S3-compatible bucket. Both
// accept the same input (a base64 data URI or an http(s) URL) through a
// shared Decoder and name objects "<id>.<ext>" so the id can be recovered
// from the public URL.
package imagehost

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidImage means the submitted image could not be read, was not an
// image, or was too large. Callers report it as a client error.
var ErrInvalidImage = errors.New("imagehost: invalid image")

// Image is a stored image.
type Image struct {
	URL string
	ID  string
}

// Host is an image store.
type Host interface {
	// Upload stores the image described by data and returns where it lives.
	Upload(ctx context.Context, data string) (*Image, error)

	// Destroy removes the image with the given id. Removing an image that
	// does not exist is not an error.
	Destroy(ctx context.Context, id string) error

	// Owns reports whether rawURL points into this host.
	Owns(rawURL string) bool
}

// PublicID derives the image id from a hosted URL: the last path segment
// with its extension removed.
//
//	https://cdn.example.com/books/cq2v7l3m1s4j8bq0g0p0.png → cq2v7l3m1s4j8bq0g0p0
func PublicID(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// validID accepts the ids this package generates: letters, digits, '-' and
// '_'. Anything else could escape the storage namespace or act as a glob.
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
