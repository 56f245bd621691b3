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

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"

	nl "github.com/mlnoga/flatfield/internal"
	"github.com/mlnoga/flatfield/internal/blur"
	"github.com/mlnoga/flatfield/internal/config"
	_ "github.com/mlnoga/flatfield/internal/cvblur" // registers the opencv backend with -tags opencv
	"github.com/mlnoga/flatfield/internal/flat"
	"github.com/mlnoga/flatfield/internal/ops"
	"github.com/mlnoga/flatfield/internal/raster"
	"github.com/mlnoga/flatfield/internal/rest"
	"github.com/mlnoga/flatfield/internal/stats"
)

const version = "0.3.0"

func main() {
	logWriter := nl.LogWriter
	start := time.Now()

	env, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}

	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to `file`")
	kernel := flag.Int("kernel", env.KernelSize, "side of the square gaussian kernel for background estimation, even values are rounded up")
	mode := flag.String("mode", env.Mode, "color mode: rgb=correct each channel, lab=correct CIE L*a*b* lightness only")
	backend := flag.String("backend", env.Backend, "blur backend, one of "+strings.Join(blur.Names(), ", "))
	threads := flag.Int("threads", env.Threads, "maximum number of threads for blurring, 0=all CPUs")
	log := flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
	addr := flag.String("addr", env.Addr, "listen address for the serve command")
	chroot := flag.String("chroot", "", "chroot to the given `directory` before serving, requires root")
	setuid := flag.Int("setuid", -1, "change to the given user id before serving, -1=keep")

	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Flatfield Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (correct|stats|serve|legal|version) (args)

Commands:
  correct in.jpg out.jpg  Correct uneven illumination of the input image and save the result
  stats in.jpg            Show input image statistics
  serve                   Serve the HTTP API
  legal                   Show license and attribution information
  version                 Show version information

Defaults for flags are read from a .env file and FLATFIELD_* environment variables.

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}
	if *threads < 1 {
		*threads = runtime.GOMAXPROCS(0)
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if args[0] == "correct" && len(args) == 3 {
			*log = strings.TrimSuffix(args[2], filepath.Ext(args[2])) + ".log"
		} else {
			*log = ""
		}
	}
	// The correct command opens its log file only once the input has loaded
	heldLog := ""
	if *log != "" && args[0] == "correct" {
		heldLog = *log
		nl.LogHold()
	} else if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s': %s\n", *log, err.Error())
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatalf("Could not create CPU profile: %s\n", err.Error())
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatalf("Could not start CPU profile: %s\n", err.Error())
		}
		defer pprof.StopCPUProfile()
	}

	switch args[0] {
	case "correct":
		if len(args) != 3 {
			err = fmt.Errorf("correct needs an input and an output file, got %d arguments", len(args)-1)
			break
		}
		var m flat.Mode
		if m, err = flat.ParseMode(*mode); err != nil {
			break
		}
		opts := flat.Options{KernelSize: *kernel, Mode: m, Backend: *backend, MaxThreads: *threads}
		err = cmdCorrect(args[1], args[2], opts, *threads, logWriter)

	case "stats":
		if len(args) != 2 {
			err = fmt.Errorf("stats needs one input file, got %d arguments", len(args)-1)
			break
		}
		err = cmdStats(args[1], logWriter)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid); err != nil {
			break
		}
		logger := zerolog.New(logWriter).With().Timestamp().Logger()
		err = rest.Serve(*addr, logger, *threads)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		cmdVersion(logWriter)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if lerr := openHeldLog(heldLog, err); lerr != nil {
		fmt.Fprintf(logWriter, "Unable to open logfile '%s': %s\n", heldLog, lerr.Error())
	}
	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		pprof.StopCPUProfile()
		nl.LogClose()
		os.Exit(-1)
	}
	if args[0] == "correct" || args[0] == "stats" {
		fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
	}
	nl.LogSync()
	nl.LogClose()
}

// Opens the held back log file, unless the input failed to load
func openHeldLog(fileName string, err error) error {
	if fileName == "" || errors.Is(err, raster.ErrLoad) {
		return nil
	}
	return nl.LogAlsoToFile(fileName)
}

// Runs the load, correct and save pipeline on a single image
func cmdCorrect(in, out string, opts flat.Options, threads int, logWriter io.Writer) error {
	seq := ops.NewPipeline(in, out, opts)
	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Correcting %s with these settings:\n%s\n", in, string(m))

	_, err = ops.Run(seq, ops.NewContext(logWriter, threads))
	return err
}

// Shows basic statistics and a histogram per channel
func cmdStats(in string, logWriter io.Writer) error {
	f, err := raster.NewImageFromFile(in, 0, logWriter)
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%d: %s image from %s\n", f.ID, f.DimensionsToString(), f.FileName)
	fmt.Fprintf(logWriter, "channel %s\n", f.Stats.ToCSVHeader())
	fmt.Fprintf(logWriter, "all     %s\n", f.Stats.ToCSVLine())

	names := []string{"gray"}
	if f.Channels == 3 {
		names = []string{"red", "green", "blue"}
	}
	bins := make([]int32, 32)
	for c, name := range names {
		ch := f.Channel(c)
		fmt.Fprintf(logWriter, "%-7s %s\n", name, stats.NewStats(ch).ToCSVLine())
		stats.Histogram(ch, 0, 256, bins)
		fmt.Fprint(logWriter, stats.HistogramString(bins, 0, 256, 60))
	}
	if f.Alpha != nil {
		fmt.Fprintf(logWriter, "alpha   %s\n", stats.NewStats(f.Alpha).ToCSVLine())
	}
	return nil
}

func cmdVersion(logWriter io.Writer) {
	fmt.Fprintf(logWriter, "Version %s\n", version)
	fmt.Fprintf(logWriter, "Go %s on %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(logWriter, "CPU %s, %d physical cores, %d logical cores, AVX2 %v\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2())
	fmt.Fprintf(logWriter, "Memory %d MB\n", memory.TotalMemory()/1024/1024)
	fmt.Fprintf(logWriter, "Blur backends %s\n", strings.Join(blur.Names(), ", "))
}
