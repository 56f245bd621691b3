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

package ops

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/flatfield/internal/flat"
	"github.com/mlnoga/flatfield/internal/raster"
)

// Flat-field corrects each input image. Takes n inputs, produces n outputs
type OpFlatField struct {
	OpUnaryBase
	KernelSize int       `json:"kernelSize"`
	Mode       flat.Mode `json:"mode"`
	Backend    string    `json:"backend"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpFlatFieldDefaults() }) } // register the operator for JSON decoding

func NewOpFlatFieldDefaults() *OpFlatField {
	opts := flat.DefaultOptions()
	return NewOpFlatField(opts.KernelSize, opts.Mode, opts.Backend)
}

func NewOpFlatField(kernelSize int, mode flat.Mode, backend string) *OpFlatField {
	op := OpFlatField{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "flatField", Active: true}},
		KernelSize:  kernelSize,
		Mode:        mode,
		Backend:     backend,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpFlatField) UnmarshalJSON(data []byte) error {
	type defaults OpFlatField
	def := defaults(*NewOpFlatFieldDefaults())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFlatField(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Largest kernel side accepted in a sandboxed context. Kernel and padded rows grow with the size
const MaxSandboxedKernelSize = 65535

// Rejects invalid kernel sizes before any image is loaded, and huge ones when sandboxed
func (op *OpFlatField) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if op.Active {
		ksize, err := flat.NormalizeKernelSize(op.KernelSize)
		if err != nil {
			return nil, err
		}
		if c.Sandboxed && ksize > MaxSandboxedKernelSize {
			return nil, fmt.Errorf("%w %d, must be at most %d", flat.ErrKernelSize, ksize, MaxSandboxedKernelSize)
		}
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

// Three float32 planes for image, background and scratch space per channel
const workingSetBytesPerSample = 3 * 4

func (op *OpFlatField) Apply(f *raster.Image, c *Context) (result *raster.Image, err error) {
	if c.MemoryMB > 0 {
		neededMB := len(f.Data) * workingSetBytesPerSample / 1024 / 1024
		if budgetMB := c.MemoryMB * 7 / 10; neededMB > budgetMB {
			fmt.Fprintf(c.Log, "%d: WARNING correction needs about %d MB, more than %d MB available\n",
				f.ID, neededMB, budgetMB)
		}
	}

	opts := flat.Options{
		KernelSize: op.KernelSize,
		Mode:       op.Mode,
		Backend:    op.Backend,
		MaxThreads: c.MaxThreads,
	}
	return flat.Correct(f, opts, c.Log)
}
