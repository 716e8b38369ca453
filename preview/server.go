// Package preview serves one project's files over HTTP for live preview.
// HTML responses get an auto-refresh script; a polling watcher tracks the
// newest file mtime so the page can reload itself when files change.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const refreshScript = `
<script>
// Auto-refresh when files change
(function() {
    let lastCheck = Date.now();
    setInterval(async () => {
        try {
            const response = await fetch('/__refresh_check?t=' + lastCheck);
            const data = await response.json();
            if (data.refresh) {
                location.reload();
            }
            lastCheck = Date.now();
        } catch (e) {}
    }, 2000);
})();
</script>
`

const watchInterval = time.Second

// Status describes the preview server state.
type Status struct {
	Running   bool   `json:"running"`
	ProjectID string `json:"project_id,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Server previews one project at a time on a dedicated port.
type Server struct {
	root   string // Workspace root; projects live in root/<id>
	port   int
	logger zerolog.Logger

	mu        sync.Mutex
	projectID string
	dir       string
	boundPort int
	httpSrv   *http.Server
	watchStop chan struct{}

	mtimeMu    sync.Mutex
	latestMod  time.Time
	watcherErr error
}

// NewServer creates a preview server for projects under root.
func NewServer(root string, port int, logger zerolog.Logger) *Server {
	return &Server{
		root:   root,
		port:   port,
		logger: logger.With().Str("component", "preview_server").Logger(),
	}
}

// Start begins serving the given project and returns its preview URL.
// Starting while another project is active is an error; use Switch.
func (s *Server) Start(projectID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return "", fmt.Errorf("preview already running for project %q", s.projectID)
	}

	dir := filepath.Join(s.root, projectID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("project directory %q not found", projectID)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /__refresh_check", s.handleRefreshCheck)
	mux.HandleFunc("GET /", s.handleFile)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on preview port: %w", err)
	}
	// Port 0 resolves to an ephemeral port; report the real one.
	s.boundPort = ln.Addr().(*net.TCPAddr).Port

	s.projectID = projectID
	s.dir = dir
	s.httpSrv = srv
	s.watchStop = make(chan struct{})
	s.mtimeMu.Lock()
	s.latestMod = time.Now()
	s.mtimeMu.Unlock()

	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error().Err(serveErr).Msg("Preview server stopped unexpectedly")
		}
	}()
	go s.watch(dir, s.watchStop)

	url := fmt.Sprintf("http://localhost:%d", s.boundPort)
	s.logger.Info().Str("project", projectID).Str("url", url).Msg("Preview started")
	return url, nil
}

// Stop shuts the preview server down. Stopping an idle server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if s.httpSrv == nil {
		return nil
	}

	close(s.watchStop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)

	s.logger.Info().Str("project", s.projectID).Msg("Preview stopped")
	s.httpSrv = nil
	s.projectID = ""
	s.dir = ""
	s.watchStop = nil
	return err
}

// Switch stops the current preview (if any) and starts one for projectID.
func (s *Server) Switch(projectID string) (string, error) {
	s.mu.Lock()
	if err := s.stopLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.mu.Unlock()
	return s.Start(projectID)
}

// Status reports whether a preview is running and for which project.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv == nil {
		return Status{}
	}
	return Status{
		Running:   true,
		ProjectID: s.projectID,
		URL:       fmt.Sprintf("http://localhost:%d", s.boundPort),
	}
}

// handleFile serves a project file with the traversal guard, index.html
// defaulting and refresh-script injection for HTML.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	dir := s.dir
	s.mu.Unlock()
	if dir == "" {
		http.Error(w, "no active preview", http.StatusServiceUnavailable)
		return
	}

	reqPath := r.URL.Path
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	full, err := securePath(dir, reqPath)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || info.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	content, err := os.ReadFile(full) //#nosec G304 -- path validated by securePath
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if strings.HasPrefix(contentType, "text/html") {
		content = injectRefreshScript(content)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(content) //nolint:errcheck
}

// handleRefreshCheck reports whether any file changed after the client's
// last check (unix millis in the t parameter).
func (s *Server) handleRefreshCheck(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if t := r.URL.Query().Get("t"); t != "" {
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mtimeMu.Lock()
	latest := s.latestMod
	s.mtimeMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(map[string]bool{ //nolint:errcheck
		"refresh": latest.UnixMilli() > since,
	})
}

// watch polls the project directory for the newest mtime until stop closes.
func (s *Server) watch(dir string, stop chan struct{}) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			latest := newestMod(dir)
			s.mtimeMu.Lock()
			if latest.After(s.latestMod) {
				s.latestMod = latest
			}
			s.mtimeMu.Unlock()
		}
	}
}

func newestMod(dir string) time.Time {
	var latest time.Time
	filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error { //nolint:errcheck
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}

// securePath resolves a URL path inside base, rejecting traversal.
func securePath(base, reqPath string) (string, error) {
	clean := filepath.Clean("/" + reqPath)
	full := filepath.Join(base, clean)
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside preview directory: %s", reqPath)
	}
	return absFull, nil
}

// injectRefreshScript inserts the auto-refresh script before </body>, or
// appends it when the tag is missing.
func injectRefreshScript(content []byte) []byte {
	html := string(content)
	if strings.Contains(html, "</body>") {
		return []byte(strings.Replace(html, "</body>", refreshScript+"</body>", 1))
	}
	return append(content, []byte(refreshScript)...)
}
