// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package raster holds photographs as planar float32 images, and converts them
// from and to image files.
package raster

import (
	"errors"
	"fmt"

	"github.com/mlnoga/flatfield/internal/stats"
)

var (
	ErrLoad       = errors.New("cannot load image")
	ErrEncode     = errors.New("cannot write image")
	ErrDegenerate = errors.New("degenerate image")
)

// A raster image with 8-bit sample values held as floats for processing
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Source file name, if any, for log output

	Width    int // Width in pixels
	Height   int // Height in pixels
	Channels int // Number of color channels, 1 for grayscale or 3 for RGB

	Data  []float32 // Samples in [0,255], planar. All pixels of channel 0, then channel 1 etc.
	Alpha []float32 // Alpha plane in [0,255], or nil if the image is opaque. Never processed

	Stats *stats.Stats // Basic image statistics, nil if not calculated
}

// Creates an image of the given dimensions. Data is not copied, allocated if nil
func NewImage(width, height, channels int, data []float32) *Image {
	if data == nil {
		data = make([]float32, width*height*channels)
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     data,
	}
}

// Creates an image with the same metadata and dimensions as the given image.
// New data will be allocated, the alpha plane is shared
func NewImageFromImage(img *Image) *Image {
	return &Image{
		ID:       img.ID,
		FileName: img.FileName,
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		Data:     make([]float32, len(img.Data)),
		Alpha:    img.Alpha,
	}
}

// Number of pixels per channel
func (f *Image) Pixels() int { return f.Width * f.Height }

// Returns the samples of the given channel
func (f *Image) Channel(c int) []float32 {
	n := f.Pixels()
	return f.Data[c*n : (c+1)*n]
}

func (f *Image) DimensionsToString() string {
	if f.Channels == 1 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	return fmt.Sprintf("%dx%dx%d", f.Width, f.Height, f.Channels)
}

// Returns true if both images have identical width, height and channel count
func (f *Image) EqualDimensions(o *Image) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Channels == o.Channels
}

// Checks the image for nonzero size and consistent buffers
func (f *Image) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%d: %w with %dx%d pixels", f.ID, ErrDegenerate, f.Width, f.Height)
	}
	if f.Channels != 1 && f.Channels != 3 {
		return fmt.Errorf("%d: %w with %d channels", f.ID, ErrDegenerate, f.Channels)
	}
	if len(f.Data) != f.Pixels()*f.Channels {
		return fmt.Errorf("%d: %w: %d samples for %s pixels", f.ID, ErrDegenerate, len(f.Data), f.DimensionsToString())
	}
	if f.Alpha != nil && len(f.Alpha) != f.Pixels() {
		return fmt.Errorf("%d: %w: %d alpha samples for %s pixels", f.ID, ErrDegenerate, len(f.Alpha), f.DimensionsToString())
	}
	return nil
}

// Rounds a sample to the nearest 8-bit value, clamping to [0,255]. NaN maps to 0
func Quantize(v float32) uint8 {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
