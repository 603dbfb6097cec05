package imageprocessor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// DisplayMaxWidth bounds the large variant shown on the public menu page.
	DisplayMaxWidth = 1280
	// ThumbWidth is the square thumbnail used in dashboard lists.
	ThumbWidth = 320

	jpegQuality = 85
)

// Variants holds the encoded image variants produced from one upload.
type Variants struct {
	Display []byte
	Thumb   []byte
}

// Process decodes an uploaded image and produces the display and thumbnail
// variants as JPEG. The display variant is only downscaled, never enlarged.
func Process(data []byte) (*Variants, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imageprocessor: decode failed: %w", err)
	}

	display := src
	if src.Bounds().Dx() > DisplayMaxWidth {
		display = imaging.Resize(src, DisplayMaxWidth, 0, imaging.Lanczos)
	}
	thumb := imaging.Fill(src, ThumbWidth, ThumbWidth, imaging.Center, imaging.Lanczos)

	displayBuf, err := encodeJPEG(display)
	if err != nil {
		return nil, err
	}
	thumbBuf, err := encodeJPEG(thumb)
	if err != nil {
		return nil, err
	}

	return &Variants{Display: displayBuf, Thumb: thumbBuf}, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("imageprocessor: encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
