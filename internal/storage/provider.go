// Package storage defines the file-system abstraction over a standards or
// project tree.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for tree file operations. All paths are
// relative to the tree root.
type Provider interface {
	// Root returns the absolute path of the tree root.
	Root() string
	// List walks dir and returns metadata for every .md file.
	List(dir string) ([]models.FileMetadata, error)
	// ListAll walks dir and returns metadata for every regular file.
	ListAll(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Delete removes the file at path.
	Delete(path string) error
}
