package source

import (
	"fmt"
	"image"
	"image/color"
)

// Bitmap is an in-memory camera frame of packed 0xAARRGGBB pixels with
// straight (non-premultiplied) alpha, stored row by row.
type Bitmap struct {
	Width  int
	Height int
	Pixels []uint32
}

func NewBitmap(width, height int, pixels []uint32) (*Bitmap, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if len(pixels)%width != 0 || len(pixels)/width != height {
		return nil, fmt.Errorf("%w: bitmap %dx%d has %d pixels", ErrUnreadableImage, width, height, len(pixels))
	}
	return &Bitmap{Width: width, Height: height, Pixels: pixels}, nil
}

func (b *Bitmap) ColorModel() color.Model { return color.NRGBAModel }

func (b *Bitmap) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.NRGBA{}
	}
	p := b.Pixels[y*b.Width+x]
	return color.NRGBA{
		A: uint8(p >> 24),
		R: uint8(p >> 16),
		G: uint8(p >> 8),
		B: uint8(p),
	}
}
