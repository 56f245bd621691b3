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
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/mlnoga/flatfield/internal/stats"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Reads an image from the file with the given name, in any format imaging or the
// registered decoders support. Applies the EXIF orientation of JPEG files
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (f *Image, err error) {
	bs, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("%d: %w from %s: %s", id, ErrLoad, fileName, err.Error())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%d: %w from %s: %s", id, ErrLoad, fileName, err.Error())
	}
	src, err := imaging.Decode(bytes.NewReader(bs), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%d: %w from %s: %s", id, ErrLoad, fileName, err.Error())
	}
	if m := cfg.ColorModel; m == color.Gray16Model || m == color.RGBA64Model || m == color.NRGBA64Model {
		fmt.Fprintf(logWriter, "%d: Warning: reducing 16-bit samples from %s to 8 bits\n", id, fileName)
	}
	if m := cfg.ColorModel; m == color.GrayModel || m == color.Gray16Model {
		src = toGray(src) // rotating or flipping yields NRGBA
	}

	f, err = NewImageFromGo(src)
	if err != nil {
		return nil, fmt.Errorf("%d: %s: %w", id, fileName, err)
	}
	f.ID, f.FileName = id, fileName
	f.Stats = stats.NewStats(f.Data)
	return f, nil
}

func toGray(src image.Image) image.Image {
	if m := src.ColorModel(); m == color.GrayModel || m == color.Gray16Model {
		return src
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), src, b.Min, draw.Src)
	return g
}
