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

// Package blur implements separable gaussian filtering of planar float32 images,
// with kernel sizes and border handling compatible with OpenCV's GaussianBlur.
package blur

import (
	"math"
)

// Fixed binomial kernels used for small sizes when sigma is derived from the kernel size
var smallKernels = map[int][]float32{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// Returns the standard deviation derived automatically for a gaussian kernel of the given odd size
func SigmaForKernelSize(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// Generates a normalized 1D gaussian kernel of the given odd size.
// Sizes 1, 3, 5 and 7 use fixed binomial tables, larger sizes sample the gaussian
// function with sigma from SigmaForKernelSize
func GaussianKernel1D(ksize int) (kernel []float32) {
	if k, ok := smallKernels[ksize]; ok {
		return append([]float32(nil), k...)
	}

	sigma := SigmaForKernelSize(ksize)
	scale2X := -0.5 / (sigma * sigma)
	radius := ksize / 2

	weights := make([]float64, ksize)
	sum := 0.0
	for i := range weights {
		x := float64(i - radius)
		weights[i] = math.Exp(scale2X * x * x)
		sum += weights[i]
	}

	kernel = make([]float32, ksize)
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}

// Maps a coordinate into [0, size-1] by mirroring at the borders without repeating
// the border pixel, i.e. gfedcb|abcdefgh|gfedcba. Works for arbitrarily distant coordinates
func reflect101(size, x int) int {
	if size == 1 {
		return 0
	}
	period := 2 * (size - 1)
	x %= period
	if x < 0 {
		x += period
	}
	if x >= size {
		x = period - x
	}
	return x
}

// Splits rows [0, height) into bands and calls fn on each band, using at most maxThreads goroutines.
// Returns after all bands are done
func parallelRows(height, maxThreads int, fn func(y0, y1 int)) {
	if maxThreads < 1 {
		maxThreads = 1
	}
	bands := maxThreads * 4
	if bands > height {
		bands = height
	}
	if bands <= 1 || maxThreads == 1 {
		fn(0, height)
		return
	}

	step := (height + bands - 1) / bands
	limiter := make(chan bool, maxThreads)
	for y0 := 0; y0 < height; y0 += step {
		y1 := y0 + step
		if y1 > height {
			y1 = height
		}
		limiter <- true
		go func(y0, y1 int) {
			defer func() { <-limiter }()
			fn(y0, y1)
		}(y0, y1)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
}

func toFloat64(kernel []float32) []float64 {
	res := make([]float64, len(kernel))
	for i, k := range kernel {
		res[i] = float64(k)
	}
	return res
}

// Convolve the 2D image given by data and width with the given symmetric kernel along the x axis,
// and store the result in res. res and data may not overlap
func Convolve1DX(res, data []float32, width int, kernel []float32, maxThreads int) {
	height := len(data) / width
	k := len(kernel) / 2
	kd := toFloat64(kernel)

	parallelRows(height, maxThreads, func(y0, y1 int) {
		padded := make([]float32, width+2*k)
		for y := y0; y < y1; y++ {
			row := data[y*width : (y+1)*width]
			for i := 0; i < k; i++ {
				padded[i] = row[reflect101(width, i-k)]
				padded[width+k+i] = row[reflect101(width, width+i)]
			}
			copy(padded[k:k+width], row)

			out := res[y*width : (y+1)*width]
			for x := range out {
				window := padded[x : x+len(kernel)]
				sum := kd[k] * float64(window[k])
				for i := 1; i <= k; i++ {
					sum += kd[k+i] * (float64(window[k-i]) + float64(window[k+i]))
				}
				out[x] = float32(sum)
			}
		}
	})
}

// Convolve the 2D image given by data and width with the given kernel along the y axis,
// and store the result in res. Accumulates whole rows at a time. res and data may not overlap
func Convolve1DY(res, data []float32, width int, kernel []float32, maxThreads int) {
	height := len(data) / width
	k := len(kernel) / 2
	kd := toFloat64(kernel)

	parallelRows(height, maxThreads, func(y0, y1 int) {
		acc := make([]float64, width)
		for y := y0; y < y1; y++ {
			for x := range acc {
				acc[x] = 0
			}
			for i := -k; i <= k; i++ {
				w := kd[i+k]
				ys := reflect101(height, y+i)
				for x, v := range data[ys*width : (ys+1)*width] {
					acc[x] += w * float64(v)
				}
			}
			out := res[y*width : (y+1)*width]
			for x, a := range acc {
				out[x] = float32(a)
			}
		}
	})
}

// Applies a 2D gauss filter with a square kernel of odd side ksize to the image given by src and width,
// storing the result in dst. dst may be identical to src. Uses at most maxThreads goroutines
func GaussBlur(dst, src []float32, width, ksize, maxThreads int) error {
	if len(src) == 0 {
		return nil
	}
	kernel := GaussianKernel1D(ksize)
	tmp := make([]float32, len(src))
	Convolve1DX(tmp, src, width, kernel, maxThreads)
	Convolve1DY(dst, tmp, width, kernel, maxThreads)
	return nil
}
