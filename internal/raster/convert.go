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

package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Converts a decoded Go image into a planar image. Grayscale models become one channel,
// everything else three. 16-bit samples are reduced to 8 bits. A non-opaque alpha channel
// is kept in a separate plane
func NewImageFromGo(src image.Image) (*Image, error) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w with %dx%d pixels", ErrDegenerate, width, height)
	}

	switch s := src.(type) {
	case *image.Gray:
		f := NewImage(width, height, 1, nil)
		for y := 0; y < height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+width]
			for x, v := range row {
				f.Data[y*width+x] = float32(v)
			}
		}
		return f, nil

	case *image.Gray16:
		f := NewImage(width, height, 1, nil)
		for y := 0; y < height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+2*width]
			for x := 0; x < width; x++ {
				f.Data[y*width+x] = float32(row[2*x]) // high byte, big endian
			}
		}
		return f, nil

	case *image.YCbCr:
		f := NewImage(width, height, 3, nil)
		r, g, bl := f.Channel(0), f.Channel(1), f.Channel(2)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				yi := s.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := s.COffset(b.Min.X+x, b.Min.Y+y)
				cr, cg, cb := color.YCbCrToRGB(s.Y[yi], s.Cb[ci], s.Cr[ci])
				i := y*width + x
				r[i], g[i], bl[i] = float32(cr), float32(cg), float32(cb)
			}
		}
		return f, nil

	case *image.RGBA:
		if !s.Opaque() {
			break // premultiplied alpha, use the generic path
		}
		f := NewImage(width, height, 3, nil)
		r, g, bl := f.Channel(0), f.Channel(1), f.Channel(2)
		for y := 0; y < height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+4*width]
			for x := 0; x < width; x++ {
				i := y*width + x
				r[i], g[i], bl[i] = float32(row[4*x]), float32(row[4*x+1]), float32(row[4*x+2])
			}
		}
		return f, nil

	case *image.NRGBA:
		f := NewImage(width, height, 3, nil)
		r, g, bl := f.Channel(0), f.Channel(1), f.Channel(2)
		var alpha []float32
		if !s.Opaque() {
			alpha = make([]float32, width*height)
		}
		for y := 0; y < height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+4*width]
			for x := 0; x < width; x++ {
				i := y*width + x
				r[i], g[i], bl[i] = float32(row[4*x]), float32(row[4*x+1]), float32(row[4*x+2])
				if alpha != nil {
					alpha[i] = float32(row[4*x+3])
				}
			}
		}
		f.Alpha = alpha
		return f, nil
	}

	return newImageFromGoGeneric(src)
}

// Fallback conversion through the non-premultiplied 64-bit color model
func newImageFromGoGeneric(src image.Image) (*Image, error) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	opaque := false
	if o, ok := src.(interface{ Opaque() bool }); ok {
		opaque = o.Opaque()
	}

	f := NewImage(width, height, 3, nil)
	r, g, bl := f.Channel(0), f.Channel(1), f.Channel(2)
	alpha := make([]float32, width*height)
	allOpaque := true
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := y*width + x
			r[i], g[i], bl[i] = float32(c.R>>8), float32(c.G>>8), float32(c.B>>8)
			alpha[i] = float32(c.A >> 8)
			if c.A != 0xffff {
				allOpaque = false
			}
		}
	}
	if !opaque && !allOpaque {
		f.Alpha = alpha
	}
	return f, nil
}

// Converts the image into a Go image with 8-bit samples, rounding and clamping each sample.
// Grayscale images without alpha become *image.Gray, everything else *image.NRGBA.
// If keepAlpha is false, the alpha plane is dropped and the result is opaque
func (f *Image) ToGo(keepAlpha bool) image.Image {
	width, height := f.Width, f.Height
	rect := image.Rect(0, 0, width, height)
	alpha := f.Alpha
	if !keepAlpha {
		alpha = nil
	}

	if f.Channels == 1 && alpha == nil {
		img := image.NewGray(rect)
		for y := 0; y < height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+width]
			for x := range row {
				row[x] = Quantize(f.Data[y*width+x])
			}
		}
		return img
	}

	r, g, b := f.Channel(0), f.Channel(0), f.Channel(0)
	if f.Channels == 3 {
		g, b = f.Channel(1), f.Channel(2)
	}
	img := image.NewNRGBA(rect)
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*width]
		for x := 0; x < width; x++ {
			i := y*width + x
			row[4*x] = Quantize(r[i])
			row[4*x+1] = Quantize(g[i])
			row[4*x+2] = Quantize(b[i])
			if alpha != nil {
				row[4*x+3] = Quantize(alpha[i])
			} else {
				row[4*x+3] = 255
			}
		}
	}
	return img
}
