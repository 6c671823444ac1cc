package extract

import (
	"fmt"
	"os"
	"strings"
)

// Scratch is a request-scoped working directory under a shared root.
// Each request gets its own directory, so concurrent requests never share files.
type Scratch struct {
	Dir string
}

// AcquireScratch creates root if needed and a fresh job-<id>-* directory inside it.
func AcquireScratch(root, id string) (*Scratch, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "job-"+safeID(id)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Release removes the directory and everything left in it.
func (s *Scratch) Release() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

func safeID(id string) string {
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}
