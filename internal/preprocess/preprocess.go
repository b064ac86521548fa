package preprocess

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

const (
	// ImageSize is the side length of the square model input.
	ImageSize = 48
	// TensorLen is the number of values in one model input.
	TensorLen = ImageSize * ImageSize
)

var ErrEmptyImage = errors.New("image has zero width or height")

// Tensor is a single-plane model input in row-major (row, column) order.
type Tensor []float32

// Shape is the model input shape for one tensor.
func Shape() []int64 {
	return []int64{1, ImageSize, ImageSize, 1}
}

// Valid reports whether t has the expected length and every value lies in [0,1].
func (t Tensor) Valid() bool {
	if len(t) != TensorLen {
		return false
	}
	for _, v := range t {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			return false
		}
	}
	return true
}

// Bytes encodes t as consecutive float32 values in native byte order.
func (t Tensor) Bytes() []byte {
	buf := make([]byte, 4*len(t))
	for i, v := range t {
		binary.NativeEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// Resize scales img to ImageSize x ImageSize with bilinear filtering.
func Resize(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())
	}
	return resize.Resize(ImageSize, ImageSize, img, resize.Bilinear), nil
}

// FromImage resizes img and extracts the model input.
//
// Each pixel is packed as non-premultiplied ARGB and only its low byte (the
// blue channel) is kept, scaled to [0,1]. This is not a luminance conversion;
// the deployed model was trained on input built this way.
func FromImage(img image.Image) (Tensor, error) {
	resized, err := Resize(img)
	if err != nil {
		return nil, err
	}

	b := resized.Bounds()
	out := make(Tensor, 0, TensorLen)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			val := PackARGB(resized.At(x, y))
			out = append(out, float32(val&0xFF)/255.0)
		}
	}

	if len(out) != TensorLen {
		return nil, fmt.Errorf("resized image produced %d values, want %d", len(out), TensorLen)
	}
	return out, nil
}

// PackARGB returns c as a 0xAARRGGBB value with non-premultiplied channels.
func PackARGB(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.A)<<24 | uint32(n.R)<<16 | uint32(n.G)<<8 | uint32(n.B)
}
