package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store writes per-run prompt/response/graph/error artifacts. It is
// content-agnostic and intentionally forgiving: write failures are logged and
// swallowed so diagnostics can never fail an indexing run. Concurrent runs
// collide only at the directory level; filenames carry a timestamp plus a
// random suffix.
type Store struct {
	dir   string
	runID string

	once sync.Once
	ok   bool
}

// NewStore creates a store rooted at dir for a fresh run id.
func NewStore(dir string) *Store {
	return &Store{dir: dir, runID: time.Now().UTC().Format("20060102T150405") + "_" + uuid.NewString()[:8]}
}

// RunID identifies this run's artifact directory.
func (s *Store) RunID() string { return s.runID }

// Dir returns the run's artifact directory.
func (s *Store) Dir() string { return filepath.Join(s.dir, s.runID) }

func (s *Store) ensureDir() bool {
	s.once.Do(func() {
		if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
			log.Warn().Err(err).Str("dir", s.Dir()).Msg("artifact_dir_create_failed")
			return
		}
		s.ok = true
	})
	return s.ok
}

// WritePrompt persists the rendered prompt for one chunk.
func (s *Store) WritePrompt(name, content string) {
	s.write("prompt", name, "md", content)
}

// WriteResponse persists the raw model response for one chunk.
func (s *Store) WriteResponse(name, content string) {
	s.write("response", name, "txt", content)
}

// WriteGraph persists a serialized view of the extracted graph.
func (s *Store) WriteGraph(name, content string) {
	s.write("graph", name, "json", content)
}

// WriteError persists a failure artifact: the error text plus whatever raw
// payload triggered it.
func (s *Store) WriteError(name string, err error, raw string) {
	content := fmt.Sprintf("error: %v\n\n--- raw ---\n%s\n", err, raw)
	s.write("error", name, "log", content)
}

func (s *Store) write(kind, name, ext, content string) {
	if s == nil || !s.ensureDir() {
		return
	}
	name = sanitizeName(name)
	file := fmt.Sprintf("%s_%s_%s_%s.%s",
		time.Now().UTC().Format("150405.000"), uuid.NewString()[:8], kind, name, ext)
	path := filepath.Join(s.Dir(), file)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("artifact_write_failed")
	}
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "artifact"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
