package imagehost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// UploadsPath is where the API serves files written by Local.
const UploadsPath = "/uploads/"

// Local stores images as files in a directory and serves them itself.
type Local struct {
	dir       string
	urlPrefix string
	decoder   *Decoder
}

var _ Host = (*Local)(nil)

// NewLocal creates dir if needed. publicBaseURL is the externally visible
// origin of the API, e.g. "https://api.example.com".
func NewLocal(dir, publicBaseURL string, decoder *Decoder) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagehost: creating upload dir %s: %w", dir, err)
	}
	return &Local{
		dir:       dir,
		urlPrefix: strings.TrimRight(publicBaseURL, "/") + UploadsPath,
		decoder:   decoder,
	}, nil
}

func (l *Local) Upload(ctx context.Context, data string) (*Image, error) {
	blob, err := l.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	id := xid.New().String()
	name := id + blob.Ext
	if err := os.WriteFile(filepath.Join(l.dir, name), blob.Data, 0o644); err != nil {
		return nil, fmt.Errorf("imagehost: writing %s: %w", name, err)
	}

	return &Image{URL: l.urlPrefix + name, ID: id}, nil
}

func (l *Local) Destroy(_ context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("imagehost: invalid image id %q", id)
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, id+".*"))
	if err != nil {
		return fmt.Errorf("imagehost: locating %s: %w", id, err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("imagehost: removing %s: %w", filepath.Base(m), err)
		}
	}
	return nil
}

func (l *Local) Owns(rawURL string) bool {
	return strings.HasPrefix(rawURL, l.urlPrefix) && len(rawURL) > len(l.urlPrefix)
}

// Handler serves stored files. Mount it at UploadsPath. Directory listings
// are not served.
func (l *Local) Handler() http.Handler {
	files := http.StripPrefix(UploadsPath, http.FileServer(http.Dir(l.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
