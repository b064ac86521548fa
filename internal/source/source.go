package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Kind identifies where an image came from.
type Kind string

const (
	Gallery Kind = "gallery"
	Camera  Kind = "camera"
)

var ErrUnreadableImage = errors.New("image could not be read")

// MaxPixels bounds the decoded size of any picture or camera frame.
const MaxPixels = 40_000_000

// SupportedContentTypes lists the upload MIME types the gallery decoder accepts.
var SupportedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// DecodeGallery decodes an encoded picture, applying its EXIF orientation so
// phone photos are upright before they are scaled. The header is checked
// against MaxPixels before any pixel data is allocated.
func DecodeGallery(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return DecodeGalleryBytes(data)
}

func DecodeGalleryBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnreadableImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return img, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: image is %dx%d", ErrUnreadableImage, width, height)
	}
	if height > MaxPixels/width {
		return fmt.Errorf("%w: image is %dx%d, limit is %d pixels", ErrUnreadableImage, width, height, MaxPixels)
	}
	return nil
}
