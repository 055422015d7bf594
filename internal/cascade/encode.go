package cascade

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG serializes an extracted region to a losslessly compressed PNG
// byte stream.
func EncodePNG(img image.Image) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToBase64 renders bytes in the standard 64-symbol alphabet with '='
// padding to a multiple-of-4 length.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURI wraps PNG bytes in the data-URI form emitted to API clients.
func DataURI(data []byte) string {
	return "data:image/png;base64," + ToBase64(data)
}
