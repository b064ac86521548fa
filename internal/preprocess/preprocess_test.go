package preprocess

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFromImageLengthAndRange(t *testing.T) {
	sizes := []image.Point{{1, 1}, {48, 48}, {640, 480}, {31, 97}, {3000, 7}}
	for _, size := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x*7 + y*3), A: 0xFF})
			}
		}

		tensor, err := FromImage(img)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", size, err)
		}
		if len(tensor) != TensorLen {
			t.Fatalf("%v: expected %d values, got %d", size, TensorLen, len(tensor))
		}
		if !tensor.Valid() {
			t.Fatalf("%v: tensor has values outside [0,1]", size)
		}
	}
}

func TestFromImageSolidColorUsesLowByte(t *testing.T) {
	colors := []uint32{0xFF336699, 0xFFFFFFFF, 0xFF000000, 0xFF12AB01}
	for _, argb := range colors {
		c := color.NRGBA{
			A: uint8(argb >> 24),
			R: uint8(argb >> 16),
			G: uint8(argb >> 8),
			B: uint8(argb),
		}
		tensor, err := FromImage(solid(120, 90, c))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := float32(argb&0xFF) / 255.0
		for i, v := range tensor {
			if v != want {
				t.Fatalf("color %#08x: value %d = %v, want %v", argb, i, v, want)
			}
		}
	}
}

func TestFromImageRowMajorOrder(t *testing.T) {
	// Top half blue 0xFF, bottom half blue 0x00: the first rows must read 1
	// and the last rows 0.
	img := image.NewNRGBA(image.Rect(0, 0, ImageSize, ImageSize))
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			var blue uint8
			if y < ImageSize/2 {
				blue = 0xFF
			}
			img.Set(x, y, color.NRGBA{B: blue, A: 0xFF})
		}
	}

	tensor, err := FromImage(img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tensor[0] != 1 || tensor[ImageSize-1] != 1 {
		t.Fatalf("expected first row to be 1, got %v and %v", tensor[0], tensor[ImageSize-1])
	}
	if tensor[TensorLen-1] != 0 || tensor[TensorLen-ImageSize] != 0 {
		t.Fatalf("expected last row to be 0, got %v and %v", tensor[TensorLen-ImageSize], tensor[TensorLen-1])
	}
}

func TestFromImageRejectsEmpty(t *testing.T) {
	for _, img := range []image.Image{
		nil,
		image.NewNRGBA(image.Rect(0, 0, 0, 10)),
		image.NewNRGBA(image.Rect(0, 0, 10, 0)),
	} {
		if _, err := FromImage(img); !errors.Is(err, ErrEmptyImage) {
			t.Fatalf("expected ErrEmptyImage, got %v", err)
		}
	}
}

func TestTensorBytesNativeOrder(t *testing.T) {
	tensor := Tensor{0, 0.5, 1}
	buf := tensor.Bytes()
	if len(buf) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(buf))
	}
	for i, want := range tensor {
		got := math.Float32frombits(binary.NativeEndian.Uint32(buf[4*i:]))
		if got != want {
			t.Fatalf("value %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestPackARGB(t *testing.T) {
	got := PackARGB(color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF})
	if got != 0xFF112233 {
		t.Fatalf("expected 0xFF112233, got %#08x", got)
	}
}
