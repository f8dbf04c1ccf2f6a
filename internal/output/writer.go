// internal/output/writer.go - Output destination plumbing
//
// Track commands write their results here: a file, stdout for piping,
// optionally gzip-compressed. Formatting itself lives in pkg/track.
package output

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/track"
)

// Destination is somewhere bytes can be written and accounted for.
type Destination interface {
	io.WriteCloser
	Name() string
	Size() int64
}

// NewDestination opens a destination. An empty path or "-" means
// stdout; compression wraps the stream in gzip and makes sure a file
// destination carries the .gz suffix.
func NewDestination(path string, compress bool) (Destination, error) {
	if path == "" || path == "-" {
		return newStreamDestination(os.Stdout, "stdout", compress), nil
	}
	return newFileDestination(path, compress)
}

// WriteDocument serializes a track document to a destination in the
// given format.
func WriteDocument(d *track.Document, format track.Format, path string, compress bool) error {
	dest, err := NewDestination(path, compress)
	if err != nil {
		return err
	}
	if err := track.Write(dest, d, format); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}

// fileDestination writes to a single file with optional compression.
type fileDestination struct {
	file   *os.File
	writer io.WriteCloser
	name   string
	size   int64
}

func newFileDestination(path string, compress bool) (*fileDestination, error) {
	if compress && !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, internal.NewError(internal.ErrorCodeFileSystem,
				fmt.Sprintf("cannot create directory for %s", path), err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot create %s", path), err)
	}

	d := &fileDestination{file: file, writer: file, name: path}
	if compress {
		d.writer = gzip.NewWriter(file)
	}
	return d, nil
}

func (d *fileDestination) Write(p []byte) (int, error) {
	n, err := d.writer.Write(p)
	d.size += int64(n)
	return n, err
}

func (d *fileDestination) Close() error {
	if d.writer != io.WriteCloser(d.file) {
		if err := d.writer.Close(); err != nil {
			d.file.Close()
			return err
		}
	}
	return d.file.Close()
}

func (d *fileDestination) Name() string { return d.name }

func (d *fileDestination) Size() int64 { return d.size }

// streamDestination wraps an existing stream, usually stdout, which
// must stay open after the document is written.
type streamDestination struct {
	out    io.Writer
	writer io.Writer
	gz     *gzip.Writer
	name   string
	size   int64
}

func newStreamDestination(out io.Writer, name string, compress bool) *streamDestination {
	d := &streamDestination{out: out, writer: out, name: name}
	if compress {
		d.gz = gzip.NewWriter(out)
		d.writer = d.gz
	}
	return d
}

func (d *streamDestination) Write(p []byte) (int, error) {
	n, err := d.writer.Write(p)
	d.size += int64(n)
	return n, err
}

// Close flushes the compressor but leaves the underlying stream open.
func (d *streamDestination) Close() error {
	if d.gz != nil {
		return d.gz.Close()
	}
	return nil
}

func (d *streamDestination) Name() string { return d.name }

func (d *streamDestination) Size() int64 { return d.size }
