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

package raster

import (
	"bufio"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// JPEG quality for all JPEG output
const JPEGQuality = 95

// Returns true if the format can store an alpha channel
func formatKeepsAlpha(format imaging.Format) bool {
	return format == imaging.PNG || format == imaging.TIFF || format == imaging.BMP
}

// Returns the output format for the given file name, based on its extension
func FormatFromFileName(fileName string) (imaging.Format, error) {
	format, err := imaging.FormatFromFilename(fileName)
	if err != nil {
		return format, fmt.Errorf("%w to %s: %s", ErrEncode, fileName, err.Error())
	}
	return format, nil
}

// Encodes the image in the given format into the writer
func (f *Image) Write(writer io.Writer, format imaging.Format) error {
	img := f.ToGo(formatKeepsAlpha(format))
	return imaging.Encode(writer, img, format,
		imaging.JPEGQuality(JPEGQuality),
		imaging.PNGCompressionLevel(png.BestSpeed))
}

// Writes the image to the file with the given name, selecting the format by extension.
// Writes to a temporary file in the same directory first, and renames it into place on success,
// so no partial output remains on failure
func (f *Image) WriteFile(fileName string) (err error) {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fileName), "."+filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%d: %w to %s: %s", f.ID, ErrEncode, fileName, err.Error())
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	writer := bufio.NewWriter(tmp)
	err = f.Write(writer, format)
	if err == nil {
		err = writer.Flush()
	}
	if err == nil {
		err = tmp.Chmod(0644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, fileName)
	}
	if err != nil {
		return fmt.Errorf("%d: %w to %s: %s", f.ID, ErrEncode, fileName, err.Error())
	}
	return nil
}
