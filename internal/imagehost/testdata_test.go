package imagehost

import (
	"encoding/base64"
	"time"
)

// pngBytes starts with the PNG signature, which is all content sniffing
// looks at.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 24)...)

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func testDecoder(opts ...DecoderOption) *Decoder {
	return NewDecoder(1024, 2*time.Second, opts...)
}
