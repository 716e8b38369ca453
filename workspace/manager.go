// Package workspace manages per-project directories and their files. Every
// file path is validated against the project directory; traversal outside it
// is rejected.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Project statuses.
const (
	StatusInitialized = "initialized"
	StatusBuilding    = "building"
	StatusReady       = "ready"
	StatusFailed      = "failed"
)

// Project is the metadata record for one project directory.
type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status"`
	Files       []FileRecord `json:"files"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// FileRecord tracks one generated file belonging to a project.
type FileRecord struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Provider  string    `json:"provider,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// FileInfo describes one entry returned by ListFiles.
type FileInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"` // Relative to the project directory
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

// Manager owns the workspace root and the in-memory project records. File
// writes are serialized per file; the record map has its own lock.
type Manager struct {
	root string

	mu       sync.RWMutex
	projects map[string]*Project

	fileMu    sync.Mutex
	fileLocks map[string]*sync.Mutex

	logger zerolog.Logger
}

// NewManager creates a workspace manager rooted at root.
func NewManager(root string, logger zerolog.Logger) *Manager {
	return &Manager{
		root:      filepath.Clean(root),
		projects:  make(map[string]*Project),
		fileLocks: make(map[string]*sync.Mutex),
		logger:    logger.With().Str("component", "workspace_manager").Logger(),
	}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string { return m.root }

// Init ensures the workspace root exists.
func (m *Manager) Init() error {
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}
	m.logger.Info().Str("path", m.root).Msg("Workspace initialized")
	return nil
}

// CreateProject allocates a project id, creates its directory and records
// the metadata.
func (m *Manager) CreateProject(name, description string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	id := uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	now := time.Now().UTC()
	p := &Project{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      StatusInitialized,
		Files:       []FileRecord{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.projects[id] = p
	m.mu.Unlock()

	m.logger.Info().Str("project", id).Str("name", name).Msg("Created project")
	return snapshot(p), nil
}

// Get returns the project record for id.
func (m *Manager) Get(id string) (*Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, false
	}
	return snapshot(p), true
}

// List returns every project record, newest first.
func (m *Manager) List() []*Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes the project record and its directory.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.projects[id]
	delete(m.projects, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("project %q not found", id)
	}

	if err := os.RemoveAll(filepath.Join(m.root, id)); err != nil {
		return fmt.Errorf("failed to remove project directory: %w", err)
	}
	m.logger.Info().Str("project", id).Msg("Deleted project")
	return nil
}

// UpdateStatus sets the project status.
func (m *Manager) UpdateStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("project %q not found", id)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordFile records a generated file against the project. A record for the
// same path is replaced, keeping one entry per path.
func (m *Manager) RecordFile(id, path string, size int64, provider string) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %q not found", id)
	}
	rec := FileRecord{Path: path, Size: size, Provider: provider, WrittenAt: time.Now().UTC()}
	p.UpdatedAt = rec.WrittenAt
	for i, f := range p.Files {
		if f.Path == path {
			p.Files[i] = rec
			return &rec, nil
		}
	}
	p.Files = append(p.Files, rec)
	return &rec, nil
}

// WriteFile writes content to the given project-relative path, creating
// parent directories. Concurrent writes to the same file are serialized.
func (m *Manager) WriteFile(id, path, content string) error {
	full, err := m.resolve(id, path)
	if err != nil {
		return err
	}

	lock := m.lockFor(full)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	m.logger.Debug().Str("project", id).Str("path", path).Msg("Wrote file")
	return nil
}

// ReadFile returns the content of the given project-relative path.
func (m *Manager) ReadFile(id, path string) (string, error) {
	full, err := m.resolve(id, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full) //#nosec G304 -- path validated by resolve
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// DeleteFile removes the given project-relative path.
func (m *Manager) DeleteFile(id, path string) error {
	full, err := m.resolve(id, path)
	if err != nil {
		return err
	}

	lock := m.lockFor(full)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	m.releaseLock(full)
	m.logger.Debug().Str("project", id).Str("path", path).Msg("Deleted file")
	return nil
}

// FileExists reports whether the given project-relative path exists.
func (m *Manager) FileExists(id, path string) bool {
	full, err := m.resolve(id, path)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// CopyFile duplicates a file within the project.
func (m *Manager) CopyFile(id, src, dst string) error {
	content, err := m.ReadFile(id, src)
	if err != nil {
		return err
	}
	return m.WriteFile(id, dst, content)
}

// MoveFile renames a file within the project.
func (m *Manager) MoveFile(id, src, dst string) error {
	if err := m.CopyFile(id, src, dst); err != nil {
		return err
	}
	return m.DeleteFile(id, src)
}

// ListFiles lists entries under the given project-relative directory ("" for
// the project root), optionally recursing.
func (m *Manager) ListFiles(id, dir string, recursive bool) ([]FileInfo, error) {
	if dir == "" {
		dir = "."
	}
	full, err := m.resolve(id, dir)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(m.root, id)
	var out []FileInfo
	if recursive {
		err = filepath.WalkDir(full, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if p == full {
				return nil
			}
			rel, relErr := filepath.Rel(base, p)
			if relErr != nil {
				return relErr
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}
			fi := FileInfo{Name: d.Name(), Path: filepath.ToSlash(rel), IsDir: d.IsDir(), ModTime: info.ModTime().UTC()}
			if !d.IsDir() {
				fi.Size = info.Size()
			}
			out = append(out, fi)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		entries, readErr := os.ReadDir(full)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read directory: %w", readErr)
		}
		for _, e := range entries {
			rel, relErr := filepath.Rel(base, filepath.Join(full, e.Name()))
			if relErr != nil {
				return nil, relErr
			}
			info, infoErr := e.Info()
			if infoErr != nil {
				return nil, infoErr
			}
			fi := FileInfo{Name: e.Name(), Path: filepath.ToSlash(rel), IsDir: e.IsDir(), ModTime: info.ModTime().UTC()}
			if !e.IsDir() {
				fi.Size = info.Size()
			}
			out = append(out, fi)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// CreateDir creates the given project-relative directory.
func (m *Manager) CreateDir(id, dir string) error {
	full, err := m.resolve(id, dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// ProjectSize returns the total size in bytes of the project's files.
func (m *Manager) ProjectSize(id string) (int64, error) {
	files, err := m.ListFiles(id, "", true)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// LoadExisting rebuilds project records from directories already present
// under the root. Unknown directories become records with the directory name
// as both id and name.
func (m *Manager) LoadExisting() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workspace root: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if _, ok := m.projects[id]; ok {
			continue
		}
		info, infoErr := e.Info()
		created := time.Now().UTC()
		if infoErr == nil {
			created = info.ModTime().UTC()
		}
		m.projects[id] = &Project{
			ID:        id,
			Name:      id,
			Status:    StatusReady,
			Files:     []FileRecord{},
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
	m.logger.Info().Int("projects", len(m.projects)).Msg("Loaded existing projects")
	return nil
}

// resolve validates a project-relative path and returns its absolute
// location under the project directory.
func (m *Manager) resolve(id, path string) (string, error) {
	m.mu.RLock()
	_, ok := m.projects[id]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("project %q not found", id)
	}

	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", path)
	}

	base, err := filepath.Abs(filepath.Join(m.root, id))
	if err != nil {
		return "", fmt.Errorf("invalid project directory: %w", err)
	}
	full, err := filepath.Abs(filepath.Join(base, path))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if full != base && !strings.HasPrefix(full+string(filepath.Separator), base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}
	return full, nil
}

func (m *Manager) lockFor(full string) *sync.Mutex {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	lock, ok := m.fileLocks[full]
	if !ok {
		lock = &sync.Mutex{}
		m.fileLocks[full] = lock
	}
	return lock
}

func (m *Manager) releaseLock(full string) {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	delete(m.fileLocks, full)
}

func snapshot(p *Project) *Project {
	out := *p
	out.Files = append([]FileRecord(nil), p.Files...)
	return &out
}
