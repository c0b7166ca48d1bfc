package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempTree(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempTree(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("guide.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("guide.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempTree(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestList_OnlyMarkdown(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("guides/a.md", []byte("# A"))
	_ = s.Write("guides/b.md", []byte("# B"))
	_ = s.Write("guides/asset.svg", []byte("<svg/>"))

	metas, err := s.List("guides")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	for _, m := range metas {
		if m.Checksum == "" {
			t.Errorf("%s has empty checksum", m.Path)
		}
		if filepath.Ext(m.Path) != ".md" {
			t.Errorf("List returned non-markdown file %s", m.Path)
		}
	}
}

func TestListAll_IncludesEverything(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("guides/a.md", []byte("# A"))
	_ = s.Write("guides/asset.svg", []byte("<svg/>"))

	metas, err := s.ListAll("")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("len(metas) = %d, want 2", len(metas))
	}
}

func TestExists(t *testing.T) {
	s := tempTree(t)
	if s.Exists("nope.md") {
		t.Error("Exists reported a missing file")
	}
	_ = s.Write("yes.md", []byte("x"))
	if !s.Exists("yes.md") {
		t.Error("Exists missed a written file")
	}
}

func TestDelete(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	s := tempTree(t)
	if _, err := s.Read("../outside.md"); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if err := s.Write("../outside.md", []byte("x")); err == nil {
		t.Error("expected traversal write to be rejected")
	}
	if _, err := s.Read(string(filepath.Separator) + "etc/passwd"); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}

func TestWrite_ReplacesAtomically(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("note.md", []byte("v1"))
	if err := s.Write("note.md", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("note.md")
	if string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
	// No temp files left behind.
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("unexpected leftovers in root: %v", entries)
	}
}
