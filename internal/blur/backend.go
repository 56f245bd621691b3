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

package blur

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// A gaussian blur implementation with a square kernel of side ksize.
// Blurs the 2D image given by src and width into dst
type Func func(dst, src []float32, width, ksize, maxThreads int) error

const Native = "native"

var ErrUnknownBackend = errors.New("unknown blur backend")

var (
	backendsMu sync.RWMutex
	backends   = map[string]Func{Native: GaussBlur}
)

// Registers a blur backend under the given name. Panics on re-registration
func Register(name string, f Func) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[name]; ok {
		panic(fmt.Sprintf("error: re-registering blur backend %s\n", name))
	}
	backends[name] = f
}

// Returns the blur backend with the given name. The empty name selects the native backend
func Lookup(name string) (Func, error) {
	if name == "" {
		name = Native
	}
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w '%s', available: %v", ErrUnknownBackend, name, namesLocked())
	}
	return f, nil
}

// Returns the sorted names of all registered backends
func Names() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
