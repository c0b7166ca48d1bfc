// Package graph builds the navigation graph over a standards tree and
// certifies completeness, link soundness, and index freshness.
package graph

import (
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Builder discovers and parses every markdown file reachable from the
// configured content roots and index files.
type Builder struct {
	store      storage.Provider
	roots      []string
	indexFiles []string
	logger     *slog.Logger
}

// NewBuilder creates a Builder over store. roots are tree-relative
// directories holding guide files; indexFiles are the tree-relative paths
// of the designated navigation documents.
func NewBuilder(store storage.Provider, roots, indexFiles []string, logger *slog.Logger) *Builder {
	return &Builder{store: store, roots: roots, indexFiles: indexFiles, logger: logger}
}

// Graph holds every parsed document plus the index-entry sets the
// validator checks against. Guides and ParseFailures are kept in sorted
// order so validation output is deterministic across runs.
type Graph struct {
	store storage.Provider
	// extra caches documents parsed on demand for anchor checks against
	// files outside the content roots. A nil entry marks an unparseable
	// file.
	extra map[string]*models.Document

	// Docs maps tree-relative path to parsed document.
	Docs map[string]*models.Document
	// Guides are the discovered guide paths, sorted, excluding index files.
	Guides []string
	// IndexFiles are the designated index paths, sorted.
	IndexFiles []string
	// ParseFailures are per-file parse errors, sorted by path.
	ParseFailures []error
}

// Build walks the tree and parses everything. It only fails on I/O
// problems; per-file parse errors are collected on the Graph so the
// validator can report them alongside other violations.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		store: b.store,
		Docs:  make(map[string]*models.Document),
	}

	indexSet := make(map[string]struct{}, len(b.indexFiles))
	for _, idx := range b.indexFiles {
		indexSet[path.Clean(idx)] = struct{}{}
		g.IndexFiles = append(g.IndexFiles, path.Clean(idx))
	}
	sort.Strings(g.IndexFiles)

	parseFailures := make(map[string]error)

	parse := func(p string) {
		if _, done := g.Docs[p]; done {
			return
		}
		if _, failed := parseFailures[p]; failed {
			return
		}
		data, err := b.store.Read(p)
		if err != nil {
			parseFailures[p] = fmt.Errorf("graph: %w", err)
			return
		}
		doc, err := markdown.Parse(p, data)
		if err != nil {
			parseFailures[p] = err
			return
		}
		g.Docs[p] = doc
	}

	for _, idx := range g.IndexFiles {
		parse(idx)
	}

	guideSet := make(map[string]struct{})
	for _, root := range b.roots {
		metas, err := b.store.List(root)
		if err != nil {
			return nil, fmt.Errorf("graph: discover %s: %w", root, err)
		}
		for _, m := range metas {
			parse(m.Path)
			if _, isIndex := indexSet[m.Path]; !isIndex {
				guideSet[m.Path] = struct{}{}
			}
		}
	}

	for p := range guideSet {
		g.Guides = append(g.Guides, p)
	}
	sort.Strings(g.Guides)

	failedPaths := make([]string, 0, len(parseFailures))
	for p := range parseFailures {
		failedPaths = append(failedPaths, p)
	}
	sort.Strings(failedPaths)
	for _, p := range failedPaths {
		g.ParseFailures = append(g.ParseFailures, parseFailures[p])
	}

	if b.logger != nil {
		b.logger.Debug("graph built",
			slog.Int("documents", len(g.Docs)),
			slog.Int("guides", len(g.Guides)),
			slog.Int("parse_failures", len(g.ParseFailures)))
	}
	return g, nil
}

// resolve turns a link target into a tree-relative path. Targets with a
// leading slash are taken from the tree root; everything else is relative
// to the source file's directory.
func resolve(source, target string) string {
	if len(target) > 0 && target[0] == '/' {
		return path.Clean(target[1:])
	}
	return path.Clean(path.Join(path.Dir(source), target))
}
