// pkg/track/files.go - Track file loading and format detection
package track

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akkana/pytopo/internal"
)

// Format identifies a track serialization format.
type Format string

const (
	FormatGPX     Format = "gpx"
	FormatGeoJSON Format = "geojson"
)

// FormatForPath guesses the format from a filename extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		return FormatGPX, nil
	case ".json", ".geojson":
		return FormatGeoJSON, nil
	}
	return "", internal.NewError(internal.ErrorCodeDegenerate,
		fmt.Sprintf("cannot tell the track format of %q", path), nil)
}

// Read parses a document in the given format.
func Read(r io.Reader, f Format) (*Document, error) {
	switch f {
	case FormatGPX:
		return ReadGPX(r)
	case FormatGeoJSON:
		return ReadGeoJSON(r)
	}
	return nil, internal.NewError(internal.ErrorCodeDegenerate,
		fmt.Sprintf("unknown track format %q", f), nil)
}

// Write serializes a document in the given format.
func Write(w io.Writer, d *Document, f Format) error {
	switch f {
	case FormatGPX:
		return WriteGPX(w, d)
	case FormatGeoJSON:
		return WriteGeoJSON(w, d)
	}
	return internal.NewError(internal.ErrorCodeDegenerate,
		fmt.Sprintf("unknown track format %q", f), nil)
}

// ReadFile loads a track file, picking the format from the extension.
// Tracks remember the file they came from; unnamed tracks take the
// file's base name.
func ReadFile(path string) (*Document, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot open track file %s", path), err)
	}
	defer f.Close()

	d, err := Read(f, format)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, t := range d.Tracks {
		t.Source = path
		if t.Name == "" {
			t.Name = base
		}
	}
	return d, nil
}
