package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// SourceProvider locates the raw bytes of a configuration source.
//
// The default provider reads from the filesystem; tests or embedded setups
// can supply their own implementation to serve configuration from memory,
// an archive, or anywhere else.
type SourceProvider interface {
	// Open returns a reader for the source identified by path. The caller
	// closes the returned reader.
	Open(path string) (io.ReadCloser, error)
}

// FileSourceProvider reads configuration sources from the local filesystem.
type FileSourceProvider struct{}

func (FileSourceProvider) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open configuration source: %w", err)
	}
	return f, nil
}

// BytesSourceProvider serves a fixed byte slice regardless of path. Useful
// for tests and for embedding configuration in a binary.
type BytesSourceProvider struct {
	Data []byte
}

func (p BytesSourceProvider) Open(string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.Data)), nil
}
