package qr

import (
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the pixel width/height of generated QR codes. 512px prints
// cleanly at typical table-tent sizes.
const DefaultSize = 512

// EncodePNG renders the given URL as a PNG QR code with medium error
// correction, which survives print wear reasonably well.
func EncodePNG(url string, size int) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("qr: url is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}
