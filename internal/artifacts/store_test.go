package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWritesArtifacts(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	s.WritePrompt("chunk_001", "system: extract")
	s.WriteResponse("chunk_001", `{"entities":[]}`)
	s.WriteError("chunk_002", errors.New("boom"), "raw payload")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	kinds := map[string]bool{}
	for _, e := range entries {
		switch {
		case strings.Contains(e.Name(), "_prompt_"):
			kinds["prompt"] = true
		case strings.Contains(e.Name(), "_response_"):
			kinds["response"] = true
		case strings.Contains(e.Name(), "_error_"):
			kinds["error"] = true
			b, err := os.ReadFile(filepath.Join(s.Dir(), e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(b), "boom")
			assert.Contains(t, string(b), "raw payload")
		}
	}
	assert.Len(t, kinds, 3)
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	// rooting the store at a file path makes MkdirAll fail
	root := t.TempDir()
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	s := NewStore(filepath.Join(blocked, "sub"))
	assert.NotPanics(t, func() { s.WritePrompt("p", "content") })
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	assert.NotPanics(t, func() { s.WriteGraph("g", "{}") })
}
