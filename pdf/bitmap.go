package pdf

import (
	"image"

	"github.com/pdflume/pdflume/resource"
)

// Bitmap is a rendered page raster. The pixel data is a host-side RGBA
// copy; no engine state outlives the render call that produced it.
type Bitmap struct {
	resource.Base
	data   []byte
	width  int
	height int
	stride int
}

// NewBitmap wraps an RGBA pixel buffer. Used by both the in-process
// renderer and the background-context proxy after transfer.
func NewBitmap(width, height, stride int, data []byte) *Bitmap {
	b := &Bitmap{data: data, width: width, height: height, stride: stride}
	resource.Track(b, &b.Base, "bitmap")
	return b
}

func (b *Bitmap) Width() int  { return b.width }
func (b *Bitmap) Height() int { return b.height }
func (b *Bitmap) Stride() int { return b.stride }

// Data returns the RGBA pixel buffer, row-major, Stride bytes per row.
func (b *Bitmap) Data() ([]byte, error) {
	if err := b.EnsureActive(); err != nil {
		return nil, err
	}
	return b.data, nil
}

// Image wraps the pixels as an image.RGBA sharing the bitmap's buffer.
func (b *Bitmap) Image() (*image.RGBA, error) {
	data, err := b.Data()
	if err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    data,
		Stride: b.stride,
		Rect:   image.Rect(0, 0, b.width, b.height),
	}, nil
}

// Dispose drops the pixel buffer. Idempotent.
func (b *Bitmap) Dispose() error {
	return b.Base.Dispose(func() error {
		b.data = nil
		return nil
	})
}

// bgraToRGBA swaps the blue and red channels in place.
func bgraToRGBA(pixels []byte) {
	for i := 0; i+3 < len(pixels); i += 4 {
		pixels[i], pixels[i+2] = pixels[i+2], pixels[i]
	}
}
