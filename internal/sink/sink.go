// Package sink writes generated client files.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/broady/apireg"
)

// Sink receives generated file content. Implementations are safe for concurrent use.
type Sink interface {
	// WriteFile writes content to path, which is relative to the sink.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// Dir writes into a directory on the local filesystem.
type Dir struct {
	Root string
	// Mode defaults to 0644.
	Mode os.FileMode
	// NoClobber makes WriteFile fail when the file already exists.
	NoClobber bool
}

// WriteFile writes atomically through a temp file in the target directory.
func (d *Dir) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full := filepath.Join(d.Root, filepath.FromSlash(path))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	mode := d.Mode
	if mode == 0 {
		mode = 0o644
	}

	tmp, err := os.CreateTemp(dir, ".apireg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Removing a renamed or linked temp file is a harmless no-op.
	defer os.Remove(tmpPath)

	_, werr := tmp.Write(content)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("set file mode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !d.NoClobber {
		if err := os.Rename(tmpPath, full); err != nil {
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	}
	// Link fails with EEXIST instead of racing a stat.
	if err := os.Link(tmpPath, full); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("file already exists: %q", path)
		}
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// Memory keeps written files in memory.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), content...)
	return nil
}

// Get returns a copy of the content at path, or nil.
func (m *Memory) Get(path string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	if !ok {
		return nil
	}
	return append([]byte(nil), content...)
}

// Len returns the number of files written.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// ValidatePath accepts clean, relative, slash-separated paths that stay
// inside the sink.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return errors.New("path is empty")
	case filepath.IsAbs(path) || strings.HasPrefix(path, "/"):
		return errors.New("absolute paths not allowed")
	case len(path) >= 2 && path[1] == ':':
		return errors.New("absolute paths not allowed")
	case strings.Contains(path, "\\"):
		return errors.New("backslashes not allowed")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	if cleaned := filepath.ToSlash(filepath.Clean(path)); cleaned != path {
		return fmt.Errorf("path is not clean (expected %q)", cleaned)
	}
	return nil
}

// Client file names written by WriteClient.
const (
	BundleFile   = "endpoints.js"
	ManifestFile = "endpoints.json"
)

// WriteClient writes the client bundle and a JSON manifest of regs to s.
func WriteClient(ctx context.Context, s Sink, regs ...*apireg.Registry) error {
	manifest, err := json.MarshalIndent(apireg.ClientManifest(regs...), "", "  ")
	if err != nil {
		return err
	}
	if err := s.WriteFile(ctx, BundleFile, []byte(apireg.ClientBundle(regs...))); err != nil {
		return err
	}
	return s.WriteFile(ctx, ManifestFile, append(manifest, '\n'))
}
