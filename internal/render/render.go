// Package render turns view scenes into files a browser or graph library can show.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/psidex/graphmind/internal/view"
)

var ErrUnknownFormat = errors.New("unknown render format")

// Renderer writes a scene in one output format.
type Renderer interface {
	Render(w io.Writer, scene view.Scene) error
	// Extension is the file extension of the format, including the dot.
	Extension() string
}

// Formats maps each format name to its renderer.
var Formats = map[string]func() Renderer{
	"echarts":    func() Renderer { return NewECharts() },
	"graphology": func() Renderer { return NewGraphology() },
	"vis":        func() Renderer { return NewVis() },
}

// ByName returns the renderer of the named format.
func ByName(name string) (Renderer, error) {
	newRenderer, ok := Formats[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", ErrUnknownFormat, name, FormatNames())
	}
	return newRenderer(), nil
}

func FormatNames() []string {
	names := make([]string, 0, len(Formats))
	for name := range Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderToFile renders scene to filename plus the renderer's extension and returns the
// path written.
func RenderToFile(r Renderer, filename string, scene view.Scene) (string, error) {
	path := filename + r.Extension()

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := r.Render(f, scene); err != nil {
		f.Close()
		return "", fmt.Errorf("rendering %s: %w", path, err)
	}
	return path, f.Close()
}
