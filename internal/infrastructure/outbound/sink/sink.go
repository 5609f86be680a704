package sink

import (
	"fmt"
	"io"
	"os"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Open returns the report destination for path. An empty path or "-" selects
// stdout, which is never closed. Files are created with mode 0644 and are
// either truncated or appended to.
func Open(path string, appendMode bool) (io.WriteCloser, error) {
	if path == "" || path == Stdout {
		return nopCloser{os.Stdout}, nil
	}

	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %q: %w", path, err)
	}
	return f, nil
}
