// Package simulate exercises the validator, merge engine, and pin manager
// end to end against disposable sandbox trees.
package simulate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/ansuz/internal/storage"
)

// Sandbox is an exclusive temporary directory tree owned by one scenario.
type Sandbox struct {
	// Dir is the sandbox root.
	Dir string
}

// newSandbox creates a fresh temporary directory. The caller must invoke
// Cleanup on every exit path.
func newSandbox() (*Sandbox, error) {
	dir, err := os.MkdirTemp("", "ansuz-sim-*")
	if err != nil {
		return nil, fmt.Errorf("simulate: create sandbox: %w", err)
	}
	return &Sandbox{Dir: dir}, nil
}

// Cleanup removes the sandbox tree.
func (s *Sandbox) Cleanup() {
	_ = os.RemoveAll(s.Dir)
}

// Path resolves rel against the sandbox root.
func (s *Sandbox) Path(rel string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(rel))
}

// Write creates a file at rel, making parent directories as needed.
func (s *Sandbox) Write(rel, content string) error {
	p := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("simulate: mkdir for %s: %w", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("simulate: write %s: %w", rel, err)
	}
	return nil
}

// Read returns the content of the file at rel.
func (s *Sandbox) Read(rel string) (string, error) {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return "", fmt.Errorf("simulate: read %s: %w", rel, err)
	}
	return string(data), nil
}

// Tree opens (creating if necessary) a storage provider rooted at rel.
func (s *Sandbox) Tree(rel string) (storage.Provider, error) {
	p := s.Path(rel)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, fmt.Errorf("simulate: mkdir %s: %w", rel, err)
	}
	return storage.NewFS(p)
}
