package graph

import (
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/models"
)

// Mode selects how the validator reports violations.
type Mode int

const (
	// ModeReportAll accumulates every violation across the whole graph.
	ModeReportAll Mode = iota
	// ModeStrict stops at the first violation.
	ModeStrict
)

// Validate certifies the three navigation properties: no orphan guides,
// every link resolves, no stale index entries. Per-file parse failures
// from the build phase are reported first. The returned slice is ordered
// deterministically (parse failures, orphans, broken links, stale entries,
// each sorted by path) so CI logs diff cleanly between runs.
func (g *Graph) Validate(mode Mode) []error {
	var out []error
	add := func(err error) bool {
		out = append(out, err)
		return mode == ModeStrict
	}

	for _, err := range g.ParseFailures {
		if add(err) {
			return out
		}
	}

	// Orphan check: every guide must appear in every index's entry set.
	entrySets := make(map[string]map[string]struct{}, len(g.IndexFiles))
	for _, idx := range g.IndexFiles {
		set := make(map[string]struct{})
		if doc, ok := g.Docs[idx]; ok {
			for _, e := range doc.Entries {
				if e.Target == "" {
					continue
				}
				set[resolve(idx, e.Target)] = struct{}{}
			}
		}
		entrySets[idx] = set
	}
	for _, guide := range g.Guides {
		for _, idx := range g.IndexFiles {
			if _, listed := entrySets[idx][guide]; !listed {
				if add(&OrphanGuideError{Path: guide, MissingFromIndex: idx}) {
					return out
				}
			}
		}
	}

	// Link resolution over every parsed document, in path order.
	for _, p := range g.docPaths() {
		doc := g.Docs[p]
		for _, link := range doc.Links {
			if link.External {
				continue
			}
			if broken := g.linkBroken(p, link.Path, link.Anchor); broken {
				if add(&BrokenLinkError{Source: p, Target: link.RawTarget}) {
					return out
				}
			}
		}
	}

	// Stale index check: entries in designated index files only.
	for _, idx := range g.IndexFiles {
		doc, ok := g.Docs[idx]
		if !ok {
			continue
		}
		for _, e := range doc.Entries {
			if g.linkBroken(idx, e.Target, e.Anchor) {
				if add(&StaleIndexError{Entry: e}) {
					return out
				}
			}
		}
	}

	return out
}

// linkBroken reports whether target (tree path, possibly empty for a
// self-reference) plus anchor fails to resolve from source.
func (g *Graph) linkBroken(source, target, anchor string) bool {
	resolved := source
	if target != "" {
		resolved = resolve(source, target)
		if _, parsed := g.Docs[resolved]; !parsed {
			if !g.store.Exists(resolved) {
				return true
			}
			// Non-markdown assets only need to exist. Markdown outside
			// the content roots is parsed on demand so its anchors can
			// still be checked.
			if anchor == "" || !strings.HasSuffix(resolved, ".md") {
				return false
			}
			doc := g.parseOnDemand(resolved)
			if doc == nil {
				return true
			}
			_, found := doc.Slugs()[anchor]
			return !found
		}
	}
	if anchor == "" {
		return false
	}
	doc, ok := g.Docs[resolved]
	if !ok {
		return true
	}
	_, found := doc.Slugs()[anchor]
	return !found
}

// parseOnDemand parses a tree file the build phase never discovered,
// caching the result. An unparseable file caches as nil so it is read at
// most once.
func (g *Graph) parseOnDemand(p string) *models.Document {
	if doc, cached := g.extra[p]; cached {
		return doc
	}
	if g.extra == nil {
		g.extra = make(map[string]*models.Document)
	}
	data, err := g.store.Read(p)
	if err != nil {
		g.extra[p] = nil
		return nil
	}
	doc, err := markdown.Parse(p, data)
	if err != nil {
		g.extra[p] = nil
		return nil
	}
	g.extra[p] = doc
	return doc
}

func (g *Graph) docPaths() []string {
	paths := make([]string, 0, len(g.Docs))
	for p := range g.Docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
