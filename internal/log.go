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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Singleton log writer. Writes to stdout, and optionally to a file.
// Does not add prefixes, or force newlines.

var (
	logMu     sync.Mutex
	logStdout io.Writer = os.Stdout
	logFile   *bufio.Writer // the optional additional file to log into
	logFileOS *os.File
	logHeld   *bytes.Buffer // output held back for a log file opened later
)

// The log writer, for passing to operators
var LogWriter io.Writer = logWriter{}

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	logMu.Lock()
	defer logMu.Unlock()
	n, err = logStdout.Write(p)
	if err != nil {
		return n, err
	}
	if logFile != nil {
		return logFile.Write(p)
	}
	if logHeld != nil {
		return logHeld.Write(p)
	}
	return n, nil
}

// Enables logging to file, closing any previous log file. Output held back
// with LogHold is written to the new file first
func LogAlsoToFile(fileName string) (err error) {
	logMu.Lock()
	defer logMu.Unlock()
	if err = closeLogFileLocked(); err != nil {
		return err
	}
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	logFileOS, logFile = f, bufio.NewWriter(f)
	if logHeld != nil {
		_, err = logFile.Write(logHeld.Bytes())
		logHeld = nil
	}
	return err
}

// Holds back log output in memory until LogAlsoToFile opens the log file.
// LogClose discards it, so no file is created
func LogHold() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		logHeld = &bytes.Buffer{}
	}
}

func closeLogFileLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Flush()
	if cerr := logFileOS.Close(); err == nil {
		err = cerr
	}
	logFile, logFileOS = nil, nil
	return err
}

func LogPrintf(format string, args ...interface{}) (n int, err error) {
	return fmt.Fprintf(LogWriter, format, args...)
}

func LogPrintln(args ...interface{}) (n int, err error) {
	return fmt.Fprintln(LogWriter, args...)
}

// Logs the message, closes the log file and exits with a non-zero status
func LogFatalf(format string, args ...interface{}) {
	LogPrintf(format, args...)
	LogClose()
	os.Exit(1)
}

// Flushes and syncs the log file, if any
func LogSync() error {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return nil
	}
	if err := logFile.Flush(); err != nil {
		return err
	}
	return logFileOS.Sync()
}

// Flushes and closes the log file, if any, and drops held back output. Logging continues to stdout
func LogClose() error {
	logMu.Lock()
	defer logMu.Unlock()
	logHeld = nil
	return closeLogFileLocked()
}
