package check

import (
	"io"
	"os"
	"strings"
)

// Source is one log input. Open is called once per run; an error wrapping
// os.ErrNotExist marks the source as missing rather than unreadable.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// FileSources keeps the order of paths.
func FileSources(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(p))
	}
	return sources
}

func StringSource(name, content string) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
