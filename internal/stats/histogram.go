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

package stats

import (
	"fmt"
	"math"
	"strings"
)

// Calculate histogram of data between min and max into given bins.
// Values outside [min, max] and NaNs are ignored
func Histogram(data []float32, min, max float32, bins []int32) {
	for i := range bins {
		bins[i] = 0
	}
	if len(bins) == 0 || !(max > min) {
		return
	}
	scale := float32(len(bins)) / (max - min)
	for _, d := range data {
		if !(d >= min && d <= max) {
			continue
		}
		index := int((d - min) * scale)
		if index >= len(bins) {
			index = len(bins) - 1
		}
		bins[index]++
	}
}

// Returns the location and the value of the histogram peak
func GetPeak(bins []int32, min, max float32) (x float32, y int32) {
	maxIndex, maxValue := -1, int32(math.MinInt32)
	for i, v := range bins {
		if v > maxValue {
			maxIndex, maxValue = i, v
		}
	}
	if maxIndex < 0 {
		return min, 0
	}
	x = min + (float32(maxIndex)+0.5)*(max-min)/float32(len(bins))
	return x, maxValue
}

// Renders the histogram as one text line per bin, with a bar scaled to the given width
func HistogramString(bins []int32, min, max float32, barWidth int) string {
	_, peak := GetPeak(bins, min, max)
	b := strings.Builder{}
	step := (max - min) / float32(len(bins))
	for i, v := range bins {
		bar := 0
		if peak > 0 {
			bar = int(int64(v) * int64(barWidth) / int64(peak))
		}
		fmt.Fprintf(&b, "%7.2f..%7.2f %9d %s\n", min+float32(i)*step, min+float32(i+1)*step, v, strings.Repeat("#", bar))
	}
	return b.String()
}
