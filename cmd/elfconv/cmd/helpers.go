package cmd

import (
	"fmt"
	"io"
	"os"
)

// openInput opens path for reading; "-" (or the driver's optional
// omission of input-file, spec §6) means standard input.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("elfconv: open input %q: %w", path, err)
	}
	return f, f.Close, nil
}

// openOutput opens path for writing, truncating unless appendMode;
// "-" or omission means standard output.
func openOutput(path string, appendMode bool) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("elfconv: open output %q: %w", path, err)
	}
	return f, f.Close, nil
}
