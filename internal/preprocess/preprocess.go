// Package preprocess turns a freehand drawing into the fixed-size monochrome
// input the digit model was trained on.
package preprocess

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const (
	// Width and Height are the model's trained input size.
	Width  = 28
	Height = 28

	// Threshold splits luminance into foreground (< Threshold) and
	// background (>= Threshold). Changing it breaks compatibility with the
	// training data.
	Threshold = 128

	// The model was trained with bright strokes at 255 on a zero background.
	ForegroundIntensity float32 = 255
	BackgroundIntensity float32 = 0
)

// Rec. 709 luma weights in thousandths, the same weights a zero-saturation
// colour matrix applies. They sum to 1000 so grey stays grey.
const (
	lumaR = 213
	lumaG = 715
	lumaB = 72
)

// Normalize stretches raw to Width x Height by point-sampling the source
// pixel under the centre of each output cell, desaturates it and binarizes
// every pixel against Threshold. No averaging happens, so a stroke thinner
// than a cell survives wherever it crosses a sample point.
func Normalize(raw *RawImage) (*NormalizedImage, error) {
	if raw == nil || raw.img == nil {
		return nil, &InvalidImageError{Reason: "nil image"}
	}
	if raw.Width() <= 0 || raw.Height() <= 0 {
		return nil, &InvalidImageError{Width: raw.Width(), Height: raw.Height(), Reason: "zero size"}
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), raw.img, raw.img.Bounds(), draw.Src, nil)

	norm := &NormalizedImage{
		Width:  Width,
		Height: Height,
		Pix:    make([]Pixel, Width*Height),
	}

	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			norm.Pix[y*Width+x] = binarize(luminance(scaled.NRGBAAt(x, y)))
		}
	}

	return norm, nil
}

// NormalizeImage is NewRawImage followed by Normalize.
func NormalizeImage(img image.Image) (*NormalizedImage, error) {
	raw, err := NewRawImage(img)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// ToFeatureVector flattens norm row-major, top-left first.
func ToFeatureVector(norm *NormalizedImage) FeatureVector {
	features := make(FeatureVector, len(norm.Pix))
	for i, p := range norm.Pix {
		if p == Foreground {
			features[i] = ForegroundIntensity
		} else {
			features[i] = BackgroundIntensity
		}
	}
	return features
}

func luminance(c color.NRGBA) uint8 {
	l := (lumaR*uint32(c.R) + lumaG*uint32(c.G) + lumaB*uint32(c.B) + 500) / 1000
	if l > 0xff {
		l = 0xff
	}
	return uint8(l)
}

// binarize takes the lowest channel byte of a desaturated pixel.
func binarize(lum uint8) Pixel {
	if lum < Threshold {
		return Foreground
	}
	return Background
}
