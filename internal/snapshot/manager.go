// Package snapshot creates and verifies immutable, hashed copies of the
// standards tree for version-pinned adoption.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// ManifestName is the per-snapshot file mapping relative path → hash.
const ManifestName = "manifest.yaml"

// Manifest records what a snapshot contained when it was created.
type Manifest struct {
	Version   string            `yaml:"version"`
	CreatedAt time.Time         `yaml:"created_at"`
	TreeHash  string            `yaml:"tree_hash"`
	Files     map[string]string `yaml:"files"`
}

// HashMismatchError reports a snapshot file whose bytes no longer match the
// manifest. The snapshot is supposed to be immutable, so this means it was
// edited, or a file was added or removed, after creation.
type HashMismatchError struct {
	Version string
	Path    string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("snapshot %s: hash mismatch for %s", e.Version, e.Path)
}

func (e *HashMismatchError) Unwrap() error { return apperr.ErrCorrupt }

// Manager owns the snapshots directory.
type Manager struct {
	standards storage.Provider
	dir       string
	logger    *slog.Logger
}

// NewManager creates a Manager copying from the live standards tree into
// dir. dir is created on first use.
func NewManager(standards storage.Provider, dir string, logger *slog.Logger) *Manager {
	return &Manager{standards: standards, dir: dir, logger: logger}
}

// Path returns the directory a snapshot version lives in.
func (m *Manager) Path(version string) string {
	return filepath.Join(m.dir, version)
}

// treeLocalDir returns the snapshots directory as a tree-relative slash
// path when it nests inside the standards root, or "" when it lives
// elsewhere.
func (m *Manager) treeLocalDir() string {
	abs, err := filepath.Abs(m.dir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(m.standards.Root(), abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Create copies every file under the standards tree into a read-only
// versioned destination and writes its manifest. An existing version is
// never overwritten: snapshots are superseded, not mutated.
func (m *Manager) Create(version string) (*Manifest, error) {
	if version == "" {
		return nil, fmt.Errorf("snapshot: version tag is required")
	}
	dest := m.Path(version)
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("snapshot: version %s already exists: %w", version, apperr.ErrConflict)
	}

	metas, err := m.standards.ListAll("")
	if err != nil {
		return nil, fmt.Errorf("snapshot: list standards tree: %w", err)
	}

	manifest := &Manifest{
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]string, len(metas)),
	}

	skip := m.treeLocalDir()
	for _, meta := range metas {
		// Never snapshot prior snapshots or VCS metadata: when the
		// snapshots directory nests inside the standards root, including
		// it would make every new pin swallow all earlier ones.
		if skip != "" && (meta.Path == skip || strings.HasPrefix(meta.Path, skip+"/")) {
			continue
		}
		if meta.Path == ".git" || strings.HasPrefix(meta.Path, ".git/") {
			continue
		}
		data, err := m.standards.Read(meta.Path)
		if err != nil {
			return nil, fmt.Errorf("snapshot: read %s: %w", meta.Path, err)
		}
		target := filepath.Join(dest, filepath.FromSlash(meta.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: mkdir: %w", err)
		}
		if err := os.WriteFile(target, data, 0o444); err != nil {
			return nil, fmt.Errorf("snapshot: write %s: %w", meta.Path, err)
		}
		manifest.Files[meta.Path] = checksum.Sum(data)
	}
	manifest.TreeHash = checksum.Combine(manifest.Files)

	out, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, ManifestName), out, 0o444); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if m.logger != nil {
		m.logger.Info("snapshot created",
			slog.String("version", version),
			slog.Int("files", len(manifest.Files)),
			slog.String("tree_hash", manifest.TreeHash))
	}
	return manifest, nil
}

// Load reads a snapshot's manifest.
func (m *Manager) Load(version string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(m.Path(version), ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot: version %s: %w", version, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("snapshot: read manifest for %s: %w", version, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("snapshot: parse manifest for %s: %w", version, err)
	}
	return &manifest, nil
}

// Verify recomputes every file hash under the snapshot path and compares
// against the manifest. Edited, missing, and unexpected files all fail with
// a *HashMismatchError naming the first offending path in sorted order.
func (m *Manager) Verify(version string) (*Manifest, error) {
	manifest, err := m.Load(version)
	if err != nil {
		return nil, err
	}

	tree, err := storage.NewFS(m.Path(version))
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", version, err)
	}
	metas, err := tree.ListAll("")
	if err != nil {
		return nil, fmt.Errorf("snapshot: walk %s: %w", version, err)
	}

	onDisk := make(map[string]string, len(metas))
	for _, meta := range metas {
		if meta.Path == ManifestName {
			continue
		}
		onDisk[meta.Path] = meta.Checksum
	}

	paths := make([]string, 0, len(onDisk)+len(manifest.Files))
	for p := range onDisk {
		paths = append(paths, p)
	}
	for p := range manifest.Files {
		if _, seen := onDisk[p]; !seen {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		want, inManifest := manifest.Files[p]
		got, exists := onDisk[p]
		if !inManifest || !exists || want != got {
			return nil, &HashMismatchError{Version: version, Path: p}
		}
	}
	return manifest, nil
}

// ChangeType classifies one path in a snapshot diff.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change is one entry in a snapshot diff.
type Change struct {
	Path string
	Type ChangeType
}

// Diff compares two snapshot manifests and reports the paths added,
// removed, or modified going from version a to version b, sorted by path.
func (m *Manager) Diff(a, b string) ([]Change, error) {
	ma, err := m.Load(a)
	if err != nil {
		return nil, err
	}
	mb, err := m.Load(b)
	if err != nil {
		return nil, err
	}

	var out []Change
	for p, ha := range ma.Files {
		hb, ok := mb.Files[p]
		switch {
		case !ok:
			out = append(out, Change{Path: p, Type: ChangeRemoved})
		case ha != hb:
			out = append(out, Change{Path: p, Type: ChangeModified})
		}
	}
	for p := range mb.Files {
		if _, ok := ma.Files[p]; !ok {
			out = append(out, Change{Path: p, Type: ChangeAdded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Tree opens a snapshot as a read-only template source for pinned
// adoption. The snapshot is verified first so a corrupt pin can never be
// merged downstream.
func (m *Manager) Tree(version string) (storage.Provider, error) {
	if _, err := m.Verify(version); err != nil {
		return nil, err
	}
	return storage.NewFS(m.Path(version))
}
