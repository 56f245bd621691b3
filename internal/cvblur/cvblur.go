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

//go:build opencv

package cvblur

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/mlnoga/flatfield/internal/blur"
	"gocv.io/x/gocv"
)

const Name = "opencv"

func init() { blur.Register(Name, GaussBlur) }

// Blurs the 2D image given by src and width with OpenCV's GaussianBlur, using a square
// kernel of side ksize, automatic sigma and the default reflect-101 border. OpenCV manages
// its own threads, so maxThreads is ignored
func GaussBlur(dst, src []float32, width, ksize, maxThreads int) error {
	if len(src) == 0 {
		return nil
	}
	height := len(src) / width
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*4)

	in, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV32F, raw)
	if err != nil {
		return fmt.Errorf("opencv: %w", err)
	}
	defer in.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.GaussianBlur(in, &out, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)

	data, err := out.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("opencv: %w", err)
	}
	if len(data) != len(dst) {
		return fmt.Errorf("opencv: blurred %d samples; want %d", len(data), len(dst))
	}
	copy(dst, data)
	return nil
}
