// Package local allocates output paths inside the local download directory.
package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config captures the parameters for the local output store.
type Config struct {
	// BaseDir is the directory finished files are written to.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store hands out collision-free destination paths under BaseDir.
type Store struct {
	baseDir string
}

// New creates the store, creating BaseDir when missing and verifying that it
// is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".clipdl_writable")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// BaseDir returns the output directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// ResolveDestination returns the first free path for title+extension. The
// plain name is tried first, then "title (2)", "title (3)" and so on. Calling
// it again without writing the file returns the same path.
func (s *Store) ResolveDestination(title string, extension string) (string, error) {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	base := SanitizeFileName(title)

	candidate := filepath.Join(s.baseDir, base+extension)
	for n := 2; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat destination: %w", err)
		}
		candidate = filepath.Join(s.baseDir, fmt.Sprintf("%s (%d)%s", base, n, extension))
	}
}

// Remove deletes a file previously handed out by ResolveDestination. A
// missing file is not an error.
func (s *Store) Remove(path string) error {
	clean := filepath.Clean(path)
	if !strings.HasPrefix(clean, s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside %q", path, s.baseDir)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove destination: %w", err)
	}
	return nil
}

var (
	unsafeRuns    = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f\x7f]+`)
	reservedNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\.|$)`)
)

// SanitizeFileName turns a free-form title into a name that is safe on
// common filesystems.
func SanitizeFileName(title string) string {
	name := strings.TrimSpace(title)
	name = unsafeRuns.ReplaceAllString(name, "_")
	if strings.HasPrefix(name, ".") {
		name = "_" + name[1:]
	}
	name = reservedNames.ReplaceAllString(name, "_")
	if name == "" {
		return "untitled"
	}
	return name
}
