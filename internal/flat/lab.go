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

package flat

import (
	"io"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/flatfield/internal/raster"
)

// Lightness is scaled from [0,1] to this range, so clipping works as for RGB samples
const labScale = 255

// Converts the RGB planes of src to CIE L*a*b*, flat-fields the lightness,
// and converts back into the RGB planes of dst
func correctLab(dst, src *raster.Image, opts Options, logWriter io.Writer) error {
	n := src.Pixels()
	r, g, b := src.Channel(0), src.Channel(1), src.Channel(2)
	l := make([]float32, n)
	as := make([]float64, n)
	bs := make([]float64, n)
	for i := 0; i < n; i++ {
		c := colorful.Color{R: float64(r[i]) / 255, G: float64(g[i]) / 255, B: float64(b[i]) / 255}
		lv, av, bv := c.Lab()
		l[i], as[i], bs[i] = float32(lv*labScale), av, bv
	}

	if err := correctPlanes(l, src.Width, src.Height, src.ID, opts, logWriter); err != nil {
		return err
	}

	dr, dg, db := dst.Channel(0), dst.Channel(1), dst.Channel(2)
	for i := 0; i < n; i++ {
		c := colorful.Lab(float64(l[i])/labScale, as[i], bs[i]).Clamped()
		dr[i], dg[i], db[i] = float32(c.R*255), float32(c.G*255), float32(c.B*255)
	}
	return nil
}
