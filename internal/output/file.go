package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// File appends one node's write-outs to a zstd-compressed stream of msgpack
// frames. Every frame is flushed, so a failed run leaves a readable prefix.
type File struct {
	path string

	mu   sync.Mutex
	mono monotonic
	f    *os.File
	zw   *zstd.Encoder
	enc  *msgpack.Encoder
}

// FileName returns the file a rank writes to inside dir.
func FileName(dir string, rank int) string {
	return filepath.Join(dir, fmt.Sprintf("node-%03d.msgpack.zst", rank))
}

// NewFile creates (or truncates) the rank's output file.
func NewFile(dir string, rank int) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := FileName(dir, rank)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	return &File{path: path, f: f, zw: zw, enc: msgpack.NewEncoder(zw)}, nil
}

// Path returns the file path.
func (w *File) Path() string { return w.path }

// WriteSlice implements Writer.
func (w *File) WriteSlice(_ context.Context, s Slice) error {
	if err := s.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mono.accept(s); err != nil {
		return err
	}
	if err := w.enc.Encode(&s); err != nil {
		return fmt.Errorf("encoding slice %d: %w", s.WriteCounter, err)
	}
	if err := w.zw.Flush(); err != nil {
		return fmt.Errorf("flushing slice %d: %w", s.WriteCounter, err)
	}
	return nil
}

// Close finishes the zstd stream and closes the file.
func (w *File) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.zw.Close(), w.f.Close())
}

// ReadFile decodes every slice stored in a file written by File.
func ReadFile(path string) ([]Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var out []Slice
	for {
		var s Slice
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, fmt.Errorf("decoding slice %d: %w", len(out), err)
		}
		out = append(out, s)
	}
}
