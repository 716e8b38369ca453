package workspace

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), zerolog.Nop())
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestCreateAndGetProject(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreateProject("landing-page", "marketing site")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID == "" {
		t.Error("missing project id")
	}
	if p.Status != StatusInitialized {
		t.Errorf("expected status %q, got %q", StatusInitialized, p.Status)
	}

	got, ok := m.Get(p.ID)
	if !ok {
		t.Fatal("project not found after create")
	}
	if got.Name != "landing-page" || got.Description != "marketing site" {
		t.Errorf("metadata lost: %+v", got)
	}

	if _, err := m.CreateProject("", ""); err == nil {
		t.Error("empty name must be rejected")
	}
}

func TestFileRoundTrip(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")

	if err := m.WriteFile(p.ID, "src/index.html", "<html></html>"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !m.FileExists(p.ID, "src/index.html") {
		t.Error("file must exist after write")
	}

	content, err := m.ReadFile(p.ID, "src/index.html")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "<html></html>" {
		t.Errorf("unexpected content %q", content)
	}

	if err := m.DeleteFile(p.ID, "src/index.html"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if m.FileExists(p.ID, "src/index.html") {
		t.Error("file must not exist after delete")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")

	for _, path := range []string{"../escape.txt", "a/../../escape.txt", "/etc/passwd"} {
		if err := m.WriteFile(p.ID, path, "x"); err == nil {
			t.Errorf("traversal path %q must be rejected", path)
		}
	}

	if _, err := m.ReadFile("no-such-project", "a.txt"); err == nil {
		t.Error("unknown project must be rejected")
	}
}

func TestListFiles(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")

	m.WriteFile(p.ID, "index.html", "root")
	m.WriteFile(p.ID, "css/style.css", "body{}")

	flat, err := m.ListFiles(p.ID, "", false)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(flat) != 2 {
		t.Fatalf("expected 2 top-level entries, got %+v", flat)
	}
	if flat[0].Path != "css" || !flat[0].IsDir {
		t.Errorf("expected css dir first, got %+v", flat[0])
	}
	if flat[1].Size != int64(len("root")) || flat[1].ModTime.IsZero() {
		t.Errorf("file entry incomplete: %+v", flat[1])
	}

	deep, err := m.ListFiles(p.ID, "", true)
	if err != nil {
		t.Fatalf("ListFiles recursive: %v", err)
	}
	var paths []string
	for _, f := range deep {
		paths = append(paths, f.Path)
	}
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, "css/style.css") || !strings.Contains(joined, "index.html") {
		t.Errorf("recursive listing incomplete: %v", paths)
	}
}

func TestCopyAndMove(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")
	m.WriteFile(p.ID, "a.txt", "original")

	if err := m.CopyFile(p.ID, "a.txt", "b.txt"); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if got, _ := m.ReadFile(p.ID, "b.txt"); got != "original" {
		t.Errorf("copy content mismatch: %q", got)
	}

	if err := m.MoveFile(p.ID, "b.txt", "c.txt"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if m.FileExists(p.ID, "b.txt") {
		t.Error("source must be gone after move")
	}
	if !m.FileExists(p.ID, "c.txt") {
		t.Error("destination missing after move")
	}
}

func TestProjectLifecycle(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")

	if err := m.UpdateStatus(p.ID, StatusBuilding); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	rec, err := m.RecordFile(p.ID, "index.html", 42, "gemini")
	if err != nil {
		t.Fatalf("RecordFile: %v", err)
	}
	if rec.Size != 42 || rec.Provider != "gemini" || rec.WrittenAt.IsZero() {
		t.Errorf("record fields wrong: %+v", rec)
	}
	// A second record for the same path replaces the first.
	if _, err := m.RecordFile(p.ID, "index.html", 64, "openai"); err != nil {
		t.Fatalf("RecordFile: %v", err)
	}

	got, _ := m.Get(p.ID)
	if got.Status != StatusBuilding {
		t.Errorf("status not updated: %q", got.Status)
	}
	if len(got.Files) != 1 {
		t.Fatalf("expected one record, got %v", got.Files)
	}
	f := got.Files[0]
	if f.Path != "index.html" || f.Size != 64 || f.Provider != "openai" {
		t.Errorf("file record wrong: %+v", f)
	}

	if err := m.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := m.Get(p.ID); ok {
		t.Error("project must be gone after delete")
	}
	if err := m.Delete(p.ID); err == nil {
		t.Error("double delete must fail")
	}
}

func TestProjectSize(t *testing.T) {
	m := newTestManager(t)
	p, _ := m.CreateProject("app", "")
	m.WriteFile(p.ID, "a.txt", "12345")
	m.WriteFile(p.ID, "dir/b.txt", "123")

	size, err := m.ProjectSize(p.ID)
	if err != nil {
		t.Fatalf("ProjectSize: %v", err)
	}
	if size != 8 {
		t.Errorf("expected 8 bytes, got %d", size)
	}
}

func TestLoadExisting(t *testing.T) {
	root := t.TempDir()
	first := NewManager(root, zerolog.Nop())
	first.Init()
	p, _ := first.CreateProject("app", "")
	first.WriteFile(p.ID, "index.html", "<html></html>")

	second := NewManager(root, zerolog.Nop())
	if err := second.LoadExisting(); err != nil {
		t.Fatalf("LoadExisting: %v", err)
	}
	got, ok := second.Get(p.ID)
	if !ok {
		t.Fatal("existing project not loaded")
	}
	if got.Status != StatusReady {
		t.Errorf("expected loaded projects to be ready, got %q", got.Status)
	}
	if content, err := second.ReadFile(p.ID, "index.html"); err != nil || content != "<html></html>" {
		t.Errorf("file unreadable after reload: %q %v", content, err)
	}
}
