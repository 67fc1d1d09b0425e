// Package qr loads card images and finds the QR symbols in them.
package qr

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrImageLoad = errors.New("image load failed")

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes an image in any registered format.
func Read(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	return img, nil
}

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff", "image/webp"}

// IsImage reports whether a sniffed content type is one Read can decode.
func IsImage(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		for _, t := range imageTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

// Luma converts img to an 8-bit grayscale buffer anchored at the origin.
func Luma(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
