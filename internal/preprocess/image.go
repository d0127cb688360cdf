package preprocess

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// RawImage is a private copy of a drawing handed over by the canvas. The
// caller may keep mutating its own raster after NewRawImage returns.
type RawImage struct {
	img *image.NRGBA
}

// NewRawImage snapshots src onto an opaque white canvas, so transparent
// regions read as background.
func NewRawImage(src image.Image) (*RawImage, error) {
	if src == nil {
		return nil, &InvalidImageError{Reason: "nil image"}
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &InvalidImageError{Width: bounds.Dx(), Height: bounds.Dy(), Reason: "zero size"}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Copy(dst, image.Point{}, src, bounds, draw.Over, nil)

	return &RawImage{img: dst}, nil
}

func (r *RawImage) Width() int {
	if r == nil || r.img == nil {
		return 0
	}
	return r.img.Bounds().Dx()
}

func (r *RawImage) Height() int {
	if r == nil || r.img == nil {
		return 0
	}
	return r.img.Bounds().Dy()
}

// Pixel is one binarized cell of a NormalizedImage.
type Pixel uint8

const (
	Background Pixel = iota
	Foreground
)

// NormalizedImage is a Width x Height grid of Foreground/Background pixels
// stored row-major from the top-left corner.
type NormalizedImage struct {
	Width  int
	Height int
	Pix    []Pixel
}

func (n *NormalizedImage) At(x, y int) Pixel {
	return n.Pix[y*n.Width+x]
}

// Image renders foreground as black and background as white.
func (n *NormalizedImage) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, n.Width, n.Height))
	for i, p := range n.Pix {
		if p == Foreground {
			img.Pix[i] = 0x00
		} else {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// FeatureVector is the flattened model input, row-major, one value per pixel.
type FeatureVector []float32
