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
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Maximum number of samples for the location and scale estimates
const NumSamples = 128 * 1024

// Normalizes the median absolute deviation to the standard deviation of normally distributed data
const madToSigma = 1.4826

// Basic statistics on data arrays
type Stats struct {
	Min    float32 // Minimum
	Max    float32 // Maximum
	Mean   float32 // Mean (average)
	StdDev float32 // Standard deviation (norm 2, sigma)

	Location float32 // Sampled median
	Scale    float32 // Sampled median absolute deviation, normalized to sigma
}

// Calculate statistics for a data array. Min, max, mean and standard deviation are exact,
// location and scale are estimated from at most NumSamples random samples
func NewStats(data []float32) (s *Stats) {
	s = &Stats{}
	if len(data) == 0 {
		return s
	}
	s.Min, s.Max = data[0], data[0]
	for _, d := range data {
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	mean := Mean(data)
	s.Mean = float32(mean)
	s.StdDev = float32(math.Sqrt(variance(data, mean)))

	samples := sample(data, NumSamples)
	s.Location, s.Scale = medianMAD(samples)
	return s
}

// Pretty print stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g Location %.6g Scale %.6g",
		s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Scale)
}

// Pretty print stats to CSV header
func (s *Stats) ToCSVHeader() string {
	return "Min,Max,Mean,StdDev,Location,Scale"
}

// Pretty print stats to CSV line item
func (s *Stats) ToCSVLine() string {
	return fmt.Sprintf("%.6g,%.6g,%.6g,%.6g,%.6g,%.6g",
		s.Min, s.Max, s.Mean, s.StdDev, s.Location, s.Scale)
}

// Calculate the mean of the given data with float64 accumulation. Returns 0 for empty data
func Mean(data []float32) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := float64(0)
	for _, d := range data {
		sum += float64(d)
	}
	return sum / float64(len(data))
}

// Calculate population variance of given data from provided mean
func variance(data []float32, mean float64) float64 {
	sum := float64(0)
	for _, d := range data {
		diff := float64(d) - mean
		sum += diff * diff
	}
	return sum / float64(len(data))
}

// Returns a float64 copy of data if it has at most n entries, else n random samples drawn with replacement
func sample(data []float32, n int) []float64 {
	if len(data) <= n {
		samples := make([]float64, len(data))
		for i, d := range data {
			samples[i] = float64(d)
		}
		return samples
	}
	var rng fastrand.RNG
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(data[rng.Uint32n(uint32(len(data)))])
	}
	return samples
}

// Returns median and normalized median absolute deviation of the given samples. Reorders samples
func medianMAD(samples []float64) (median, scale float32) {
	sort.Float64s(samples)
	med := stat.Quantile(0.5, stat.Empirical, samples, nil)
	for i, s := range samples {
		samples[i] = math.Abs(s - med)
	}
	sort.Float64s(samples)
	mad := stat.Quantile(0.5, stat.Empirical, samples, nil)
	return float32(med), float32(mad * madToSigma)
}
