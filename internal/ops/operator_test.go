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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlnoga/flatfield/internal/flat"
	"github.com/mlnoga/flatfield/internal/raster"
)

func writeTestImage(t *testing.T, fileName string) *raster.Image {
	t.Helper()
	f := raster.NewImage(20, 12, 3, nil)
	for i := range f.Data {
		f.Data[i] = float32(40 + (i*7)%120)
	}
	if err := f.WriteFile(fileName); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestIsPathAllowed(t *testing.T) {
	tcs := []struct {
		Path string
		OK   bool
	}{
		{"in.png", true}, {"sub/dir/in.png", true}, {"./in.png", true},
		{"/etc/passwd", false}, {"../in.png", false}, {"sub/../../in.png", false}, {"\\share\\x.png", false},
	}
	for _, tc := range tcs {
		if got := isPathAllowed(tc.Path); got != tc.OK {
			t.Errorf("isPathAllowed(%q)=%v; want %v", tc.Path, got, tc.OK)
		}
	}
}

func TestPipelineJSONRoundTrip(t *testing.T) {
	opts := flat.DefaultOptions()
	opts.KernelSize, opts.Mode = 31, flat.ModeLab
	seq := NewPipeline("in.png", "out_%d.jpg", opts)

	bs, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}
	var got OpSequence
	if err := json.Unmarshal(bs, &got); err != nil {
		t.Fatalf("%s in %s", err.Error(), string(bs))
	}
	if len(got.Steps) != 3 {
		t.Fatalf("len(steps)=%d; want 3", len(got.Steps))
	}
	load, ok := got.Steps[0].(*OpLoad)
	if !ok || load.FileName != "in.png" {
		t.Errorf("step 0=%#v; want load of in.png", got.Steps[0])
	}
	ff, ok := got.Steps[1].(*OpFlatField)
	if !ok || ff.KernelSize != 31 || ff.Mode != flat.ModeLab || ff.Backend != "native" {
		t.Fatalf("step 1=%#v; want flatField 31 lab native", got.Steps[1])
	}
	save, ok := got.Steps[2].(*OpSave)
	if !ok || save.FileName(7) != "out_7.jpg" || !save.Active {
		t.Errorf("step 2=%#v; want active save to out_%%d.jpg", got.Steps[2])
	}

	again, err := json.Marshal(&got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bs, again) {
		t.Errorf("remarshaled %s; want %s", string(again), string(bs))
	}
}

func TestUnmarshalDefaults(t *testing.T) {
	var seq OpSequence
	if err := json.Unmarshal([]byte(`{"type":"seq","steps":[{"type":"flatField","active":true}]}`), &seq); err != nil {
		t.Fatal(err)
	}
	ff := seq.Steps[0].(*OpFlatField)
	if ff.KernelSize != flat.DefaultKernelSize || ff.Mode != flat.ModeRGB {
		t.Errorf("got %d %s; want defaults %d %s", ff.KernelSize, ff.Mode, flat.DefaultKernelSize, flat.ModeRGB)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	var seq OpSequence
	err := json.Unmarshal([]byte(`{"type":"seq","steps":[{"type":"stack"}]}`), &seq)
	if err == nil || !strings.Contains(err.Error(), "stack") {
		t.Errorf("err=%v; want unknown operator type stack", err)
	}
}

// The unmarshaled operator must apply its own settings, not those of the defaults instance
func TestUnmarshaledApplyUsesOwnSettings(t *testing.T) {
	var ff OpFlatField
	if err := json.Unmarshal([]byte(`{"type":"flatField","active":true,"kernelSize":0}`), &ff); err != nil {
		t.Fatal(err)
	}
	c := NewContext(io.Discard, 1)
	_, err := ff.OpUnaryBase.Apply(raster.NewImage(4, 4, 1, nil), c)
	if !errors.Is(err, flat.ErrKernelSize) {
		t.Errorf("err=%v; want %v from kernel size 0", err, flat.ErrKernelSize)
	}
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.png"), filepath.Join(dir, "out.png")
	f := writeTestImage(t, in)

	opts := flat.DefaultOptions()
	opts.KernelSize = 9
	log := &bytes.Buffer{}
	imgs, err := Run(NewPipeline(in, out, opts), NewContext(log, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 1 || !imgs[0].EqualDimensions(f) {
		t.Fatalf("got %d images; want one of %s", len(imgs), f.DimensionsToString())
	}
	g, err := raster.NewImageFromFile(out, 0, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g.Data {
		if g.Data[i] != imgs[0].Data[i] {
			t.Fatalf("saved d[%d]=%f; want %f", i, g.Data[i], imgs[0].Data[i])
		}
	}
	for _, msg := range []string{"Loaded", "Estimated background", "Corrected", "Writing"} {
		if !strings.Contains(log.String(), msg) {
			t.Errorf("log lacks %q:\n%s", msg, log.String())
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.png")
	_, err := Run(NewPipeline(filepath.Join(dir, "missing.png"), out, flat.DefaultOptions()), NewContext(io.Discard, 1))
	if !errors.Is(err, raster.ErrLoad) {
		t.Errorf("err=%v; want %v", err, raster.ErrLoad)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("stat(out) err=%v; want not exist", err)
	}
}

func TestRunSandboxed(t *testing.T) {
	c := NewContext(io.Discard, 1)
	c.Sandboxed = true
	tcs := []struct{ In, Out string }{
		{"/tmp/in.png", "out.png"},
		{"in.png", "../out.png"},
	}
	for _, tc := range tcs {
		_, err := Run(NewPipeline(tc.In, tc.Out, flat.DefaultOptions()), c)
		if !errors.Is(err, ErrPathNotAllowed) {
			t.Errorf("%s -> %s err=%v; want %v", tc.In, tc.Out, err, ErrPathNotAllowed)
		}
	}
}

func TestFlatFieldKernelLimit(t *testing.T) {
	tcs := []struct {
		KernelSize int
		Sandboxed  bool
		Err        bool
	}{
		{MaxSandboxedKernelSize, true, false},
		{MaxSandboxedKernelSize + 1, true, true},
		{2147483000, true, true},
		{MaxSandboxedKernelSize + 1, false, false},
		{0, false, true},
	}
	for _, tc := range tcs {
		c := NewContext(io.Discard, 1)
		c.Sandboxed = tc.Sandboxed
		_, err := NewOpFlatField(tc.KernelSize, flat.ModeRGB, "").MakePromises([]Promise{nil}, c)
		if tc.Err != errors.Is(err, flat.ErrKernelSize) {
			t.Errorf("ksize=%d sandboxed=%v err=%v; want error %v", tc.KernelSize, tc.Sandboxed, err, tc.Err)
		}
	}
}

func TestInactiveStepIsSkipped(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	f := writeTestImage(t, in)

	ff := NewOpFlatField(9, flat.ModeRGB, "")
	ff.Active = false
	imgs, err := Run(NewOpSequence(NewOpLoad(0, in), ff, NewOpSave("")), NewContext(io.Discard, 1))
	if err != nil {
		t.Fatal(err)
	}
	for i := range f.Data {
		if imgs[0].Data[i] != f.Data[i] {
			t.Fatalf("d[%d]=%f; want unchanged %f", i, imgs[0].Data[i], f.Data[i])
		}
	}
}

func TestMaterializeAllCollectsErrors(t *testing.T) {
	ok := func() (*raster.Image, error) { return raster.NewImage(1, 1, 1, nil), nil }
	bad := func() (*raster.Image, error) { return nil, raster.ErrLoad }
	outs, err := MaterializeAll([]Promise{ok, bad, ok}, 2, false)
	if !errors.Is(err, raster.ErrLoad) {
		t.Errorf("err=%v; want %v", err, raster.ErrLoad)
	}
	if len(outs) != 2 {
		t.Errorf("len(outs)=%d; want 2", len(outs))
	}
}
