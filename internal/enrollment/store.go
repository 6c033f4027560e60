// Package enrollment provides read-only access to the directory of
// enrolled reference face images. Each image file holds one identity;
// the filename stem is the identity code. Enrollment itself (adding or
// removing images) is owned by an external provisioning process.
package enrollment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Reference is one enrolled identity backed by a still image on disk.
type Reference struct {
	Code string // identity code, derived from the filename stem
	Path string // absolute or store-relative path to the image file
}

// Bytes reads the reference image from disk.
func (r Reference) Bytes() ([]byte, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference image for %s: %w", r.Code, err)
	}
	return data, nil
}

// Store enumerates reference images from a directory.
type Store struct {
	dir string
}

// NewStore creates a store over the given directory. The directory must
// exist; it is not created here because enrollment owns it.
func NewStore(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("faces directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("faces path %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// List enumerates the enrolled references, sorted lexicographically by
// identity code. Sorting makes the scan order reproducible regardless
// of filesystem enumeration order.
func (s *Store) List() ([]Reference, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list faces directory: %w", err)
	}

	var refs []Reference
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !hasImageExtension(name) {
			continue
		}
		code := strings.TrimSuffix(name, filepath.Ext(name))
		if code == "" {
			continue
		}
		refs = append(refs, Reference{
			Code: code,
			Path: filepath.Join(s.dir, name),
		})
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Code < refs[j].Code
	})

	return refs, nil
}

// Codes returns just the identity codes of the enrolled references.
func (s *Store) Codes() ([]string, error) {
	refs, err := s.List()
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(refs))
	for _, ref := range refs {
		codes = append(codes, ref.Code)
	}
	return codes, nil
}

func hasImageExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
