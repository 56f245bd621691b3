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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup(t *testing.T) {
	tcs := []struct {
		Env  map[string]string
		Want Env
		OK   bool
	}{
		{map[string]string{}, Defaults(), true},
		{map[string]string{EnvKernel: ""}, Defaults(), true},
		{
			map[string]string{EnvKernel: "31", EnvMode: "lab", EnvBackend: "opencv", EnvThreads: "3", EnvAddr: "localhost:9000"},
			Env{KernelSize: 31, Mode: "lab", Backend: "opencv", Threads: 3, Addr: "localhost:9000"},
			true,
		},
		{map[string]string{EnvKernel: "big"}, Env{}, false},
		{map[string]string{EnvThreads: "1.5"}, Env{}, false},
	}
	for i, tc := range tcs {
		got, err := FromLookup(lookupMap(tc.Env))
		if !tc.OK {
			if err == nil {
				t.Errorf("%d: err=nil; want error", i)
			}
			continue
		}
		if err != nil || got != tc.Want {
			t.Errorf("%d: got %+v, %v; want %+v", i, got, err, tc.Want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("# defaults\nFLATFIELD_KERNEL=101\nFLATFIELD_MODE=lab\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvMode, "rgb") // already set, wins over the file
	t.Setenv(EnvKernel, "")
	os.Unsetenv(EnvKernel)

	env, err := Load(filepath.Join(dir, "missing.env"), file)
	if err != nil {
		t.Fatal(err)
	}
	if env.KernelSize != 101 || env.Mode != "rgb" {
		t.Errorf("got %+v; want kernel 101 and mode rgb", env)
	}
}
