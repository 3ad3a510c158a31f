package main

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

func writeLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(bw.Flush())
}

// writeFile replaces the content of path with lines. A failure part way
// through leaves whatever was written so far.
func writeFile(path string, lines []string) error {
	defer timer("write " + path).done()

	f, err := os.Create(path)
	if err != nil {
		return writeError(err, "Create file %#v", path)
	}

	if err := writeLines(f, lines); err != nil {
		_ = f.Close()
		return writeError(err, "Write file %#v", path)
	}

	if err := f.Close(); err != nil {
		return writeError(err, "Close file %#v", path)
	}
	return nil
}
