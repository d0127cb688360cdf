package preprocess

import (
	"errors"
	"fmt"
)

// ErrInvalidImage matches every *InvalidImageError via errors.Is.
var ErrInvalidImage = errors.New("invalid image")

// InvalidImageError reports a raster that cannot be normalized.
type InvalidImageError struct {
	Width  int
	Height int
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image %dx%d: %s", e.Width, e.Height, e.Reason)
}

func (e *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage
}
