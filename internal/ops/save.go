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
	"strings"

	"github.com/mlnoga/flatfield/internal/flat"
	"github.com/mlnoga/flatfield/internal/raster"
)

// Saves given promise under a given filename, with pattern expansion for %d based on the image id.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filePattern != ""}},
		FilePattern: filePattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Returns the file name for the given image id
func (op *OpSave) FileName(id int) string {
	if strings.Contains(op.FilePattern, "%d") {
		return fmt.Sprintf(op.FilePattern, id)
	}
	return op.FilePattern
}

func (op *OpSave) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if c.Sandboxed && op.Active && !isPathAllowed(op.FilePattern) {
		return nil, fmt.Errorf("%w: %s", ErrPathNotAllowed, op.FilePattern)
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

func (op *OpSave) Apply(f *raster.Image, c *Context) (result *raster.Image, err error) {
	if op.FilePattern == "" {
		return f, nil
	}
	fileName := op.FileName(f.ID)
	fmt.Fprintf(c.Log, "%d: Writing %s image to %s\n", f.ID, f.DimensionsToString(), fileName)
	if err := f.WriteFile(fileName); err != nil {
		return nil, err
	}
	return f, nil
}

// Returns a sequence of operators loading the input file, correcting it and saving the result
func NewPipeline(inputPath, outputPath string, opts flat.Options) *OpSequence {
	return NewOpSequence(
		NewOpLoad(0, inputPath),
		NewOpFlatField(opts.KernelSize, opts.Mode, opts.Backend),
		NewOpSave(outputPath),
	)
}
