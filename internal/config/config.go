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

// Package config reads default settings from the environment, optionally
// populated from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mlnoga/flatfield/internal/blur"
	"github.com/mlnoga/flatfield/internal/flat"
)

const (
	EnvKernel  = "FLATFIELD_KERNEL"
	EnvMode    = "FLATFIELD_MODE"
	EnvBackend = "FLATFIELD_BACKEND"
	EnvThreads = "FLATFIELD_THREADS"
	EnvAddr    = "FLATFIELD_ADDR"
)

// Default settings, used as flag defaults by the command line
type Env struct {
	KernelSize int
	Mode       string
	Backend    string
	Threads    int // 0 selects GOMAXPROCS
	Addr       string
}

func Defaults() Env {
	return Env{
		KernelSize: flat.DefaultKernelSize,
		Mode:       string(flat.ModeRGB),
		Backend:    blur.Native,
		Threads:    0,
		Addr:       ":8080",
	}
}

// Loads the given .env files into the process environment, skipping files that don't exist.
// Variables already set take precedence. Then reads the settings from the environment
func Load(files ...string) (Env, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Defaults(), fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// Reads the settings with the given lookup function, starting from Defaults
func FromLookup(lookup func(string) (string, bool)) (Env, error) {
	env := Defaults()
	if v, ok := lookup(EnvKernel); ok && v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return env, fmt.Errorf("%s: %w", EnvKernel, err)
		}
		env.KernelSize = k
	}
	if v, ok := lookup(EnvThreads); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return env, fmt.Errorf("%s: %w", EnvThreads, err)
		}
		env.Threads = n
	}
	if v, ok := lookup(EnvMode); ok && v != "" {
		env.Mode = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		env.Backend = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		env.Addr = v
	}
	return env, nil
}
