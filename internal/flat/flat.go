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

// Package flat corrects uneven illumination in 8-bit photographs. It estimates the
// background with a large gaussian blur, divides the image by it, and rescales the
// result to the mean background level.
package flat

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/mlnoga/flatfield/internal/blur"
	"github.com/mlnoga/flatfield/internal/raster"
	"github.com/mlnoga/flatfield/internal/stats"
)

// Color handling mode for the correction
type Mode string

const (
	ModeRGB Mode = "rgb" // correct every color channel independently
	ModeLab Mode = "lab" // correct CIE L*a*b* lightness only, keep chroma
)

const DefaultKernelSize = 501

var ErrKernelSize = errors.New("invalid kernel size")

// Parameters for a flat-field correction
type Options struct {
	KernelSize int    `json:"kernelSize"`
	Mode       Mode   `json:"mode"`
	Backend    string `json:"backend"`
	MaxThreads int    `json:"-"`
}

func DefaultOptions() Options {
	return Options{
		KernelSize: DefaultKernelSize,
		Mode:       ModeRGB,
		Backend:    blur.Native,
		MaxThreads: runtime.GOMAXPROCS(0),
	}
}

// Returns the given kernel size, incremented by one if even. Rejects non-positive sizes
func NormalizeKernelSize(ksize int) (int, error) {
	if ksize <= 0 {
		return 0, fmt.Errorf("%w %d, must be positive", ErrKernelSize, ksize)
	}
	if ksize%2 == 0 {
		ksize++
	}
	return ksize, nil
}

// Parses a mode name. The empty string selects ModeRGB
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRGB:
		return ModeRGB, nil
	case ModeLab:
		return ModeLab, nil
	}
	return "", fmt.Errorf("unknown mode '%s', want %s or %s", s, ModeRGB, ModeLab)
}

// Estimates the background illumination of the given planes of width*height samples each,
// by blurring each plane with a square gaussian kernel of odd side ksize
func EstimateBackground(data []float32, width, height, ksize int, backend string, maxThreads int) ([]float32, error) {
	blurFn, err := blur.Lookup(backend)
	if err != nil {
		return nil, err
	}
	n := width * height
	bg := make([]float32, len(data))
	for c := 0; c+n <= len(data); c += n {
		if err := blurFn(bg[c:c+n], data[c:c+n], width, ksize, maxThreads); err != nil {
			return nil, err
		}
	}
	return bg, nil
}

// Replaces background samples exactly equal to zero with one. Returns the number of replacements
func ReplaceZeros(bg []float32) (replaced int) {
	for i, b := range bg {
		if b == 0 {
			bg[i] = 1
			replaced++
		}
	}
	return replaced
}

// Divides data by the background bg, rescales to the given mean and clips to [0,255],
// storing the result in res. res may be identical to data
func ApplyCorrection(res, data, bg []float32, mean float32) {
	for i, d := range data {
		v := d / bg[i] * mean
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		} else if v != v { // NaN
			v = 0
		}
		res[i] = v
	}
}

// Corrects the planes of width*height samples in place. Logs progress with the given image id
func correctPlanes(data []float32, width, height, id int, opts Options, logWriter io.Writer) error {
	start := time.Now()
	bg, err := EstimateBackground(data, width, height, opts.KernelSize, opts.Backend, opts.MaxThreads)
	if err != nil {
		return fmt.Errorf("%d: %w", id, err)
	}
	replaced := ReplaceZeros(bg)
	mean := float32(stats.Mean(bg))
	fmt.Fprintf(logWriter, "%d: Estimated background with %dx%d gaussian (sigma %.2f) in %v, mean %.3f, %d zero samples\n",
		id, opts.KernelSize, opts.KernelSize, blur.SigmaForKernelSize(opts.KernelSize),
		time.Since(start).Round(time.Millisecond), mean, replaced)

	ApplyCorrection(data, data, bg, mean)
	return nil
}

// Applies flat-field correction to the given image, returning a new image of identical
// dimensions with samples rounded to 8-bit values. The alpha plane is passed through
func Correct(f *raster.Image, opts Options, logWriter io.Writer) (*raster.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ksize, err := NormalizeKernelSize(opts.KernelSize)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	opts.KernelSize = ksize
	if opts.MaxThreads < 1 {
		opts.MaxThreads = runtime.GOMAXPROCS(0)
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}

	res := raster.NewImageFromImage(f)
	if mode == ModeLab && f.Channels == 3 {
		err = correctLab(res, f, opts, logWriter)
	} else {
		copy(res.Data, f.Data)
		err = correctPlanes(res.Data, f.Width, f.Height, f.ID, opts, logWriter)
	}
	if err != nil {
		return nil, err
	}

	for i, d := range res.Data {
		res.Data[i] = float32(raster.Quantize(d))
	}
	res.Stats = stats.NewStats(res.Data)
	fmt.Fprintf(logWriter, "%d: Corrected %s image in %s mode with %v\n", res.ID, res.DimensionsToString(), mode, res.Stats)
	return res, nil
}

// Loads the image at inputPath, corrects it and writes the result to outputPath.
// No output is written if any step fails
func CorrectFile(inputPath, outputPath string, opts Options, logWriter io.Writer) error {
	f, err := raster.NewImageFromFile(inputPath, 0, logWriter)
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%d: Loaded %s image with %v from %s\n", f.ID, f.DimensionsToString(), f.Stats, f.FileName)

	res, err := Correct(f, opts, logWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(logWriter, "%d: Writing %s image to %s\n", res.ID, res.DimensionsToString(), outputPath)
	return res.WriteFile(outputPath)
}
