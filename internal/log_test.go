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

package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	stdout := &bytes.Buffer{}
	logStdout = stdout
	defer func() { logStdout = os.Stdout }()

	fileName := filepath.Join(t.TempDir(), "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogPrintf("%d: hello\n", 7)
	if err := LogSync(); err != nil {
		t.Fatal(err)
	}
	if err := LogClose(); err != nil {
		t.Fatal(err)
	}
	LogPrintln("stdout only")

	bs, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "7: hello\n" {
		t.Errorf("file=%q; want %q", string(bs), "7: hello\n")
	}
	if stdout.String() != "7: hello\nstdout only\n" {
		t.Errorf("stdout=%q; want both lines", stdout.String())
	}
}

func TestLogAlsoToFileBadPath(t *testing.T) {
	if err := LogAlsoToFile(filepath.Join(t.TempDir(), "no", "dir", "run.log")); err == nil {
		t.Errorf("err=nil; want error for missing directory")
	}
	if err := LogSync(); err != nil {
		t.Errorf("LogSync err=%v; want nil without log file", err)
	}
}

func TestLogHold(t *testing.T) {
	logStdout = &bytes.Buffer{}
	defer func() { logStdout = os.Stdout }()

	dir := t.TempDir()
	LogHold()
	LogPrintf("before\n")
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("directory has %d entries while holding; want 0", len(entries))
	}
	fileName := filepath.Join(dir, "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogPrintf("after\n")
	if err := LogClose(); err != nil {
		t.Fatal(err)
	}
	bs, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "before\nafter\n" {
		t.Errorf("file=%q; want %q", string(bs), "before\nafter\n")
	}

	LogHold()
	LogPrintf("dropped\n")
	if err := LogClose(); err != nil {
		t.Fatal(err)
	}
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogClose()
	if bs, _ := os.ReadFile(fileName); len(bs) != 0 {
		t.Errorf("file=%q after closing held output; want empty", string(bs))
	}
}
