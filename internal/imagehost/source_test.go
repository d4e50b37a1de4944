package imagehost

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_DataURI(t *testing.T) {
	blob, err := testDecoder().Decode(context.Background(), pngDataURI())
	require.NoError(t, err)

	assert.Equal(t, pngBytes, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, ".png", blob.Ext)
}

func TestDecode_SniffsRealType(t *testing.T) {
	// Declared as png, actually a GIF.
	gif := base64.StdEncoding.EncodeToString([]byte("GIF89a" + strings.Repeat("\x00", 10)))

	blob, err := testDecoder().Decode(context.Background(), "data:image/png;base64,"+gif)
	require.NoError(t, err)
	assert.Equal(t, ".gif", blob.Ext)
}

func TestDecode_Rejects(t *testing.T) {
	text := base64.StdEncoding.EncodeToString([]byte("just some text, not an image"))
	big := base64.StdEncoding.EncodeToString(append(pngBytes, make([]byte, 2048)...))

	cases := map[string]string{
		"plain text payload": "data:image/png;base64," + text,
		"not base64 encoded": "data:image/png,rawbytes",
		"broken base64":      "data:image/png;base64,!!!!",
		"too large":          "data:image/png;base64," + big,
		"empty payload":      "data:image/png;base64,",
		"file path":          "/etc/passwd",
		"ftp scheme":         "ftp://example.com/cover.png",
		"empty":              "",
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := testDecoder().Decode(context.Background(), src)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestDecode_FetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Write(pngBytes)
		case "/huge.png":
			w.Write(append(pngBytes, make([]byte, 4096)...))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dec := testDecoder(WithHTTPClient(srv.Client()))

	blob, err := dec.Decode(context.Background(), srv.URL+"/cover.png")
	require.NoError(t, err)
	assert.Equal(t, ".png", blob.Ext)

	_, err = dec.Decode(context.Background(), srv.URL+"/huge.png")
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = dec.Decode(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecode_GuardedClientRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer srv.Close()

	_, err := testDecoder().Decode(context.Background(), srv.URL+"/cover.png")
	assert.ErrorIs(t, err, ErrInvalidImage)
}
